package mnemonic

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		wantWords int
		wantError bool
	}{
		{"16 bytes (12 words)", 16, 12, false},
		{"20 bytes (15 words)", 20, 15, false},
		{"24 bytes (18 words)", 24, 18, false},
		{"28 bytes (21 words)", 28, 21, false},
		{"32 bytes (24 words)", 32, 24, false},
		{"Invalid: 8 bytes", 8, 0, true},
		{"Invalid: 33 bytes", 33, 0, true},
		{"Invalid: 17 bytes", 17, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := bytes.Repeat([]byte{0xa5}, tt.size)
			phrase, err := Encode(data)
			if tt.wantError {
				assert.ErrorIs(t, err, ErrUnsupportedLength)
				assert.False(t, Supports(tt.size))
				return
			}

			require.NoError(t, err)
			assert.True(t, Supports(tt.size))
			assert.Len(t, strings.Fields(phrase), tt.wantWords)
			assert.True(t, ValidateWordCount(tt.wantWords))
			assert.True(t, IsMnemonic(phrase))

			decoded, err := Decode(phrase)
			require.NoError(t, err)
			assert.Equal(t, data, decoded)
		})
	}
}

func TestKnownVector(t *testing.T) {
	zero := make([]byte, 16)
	phrase, err := Encode(zero)
	require.NoError(t, err)
	assert.Equal(t, "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about", phrase)

	data, err := Decode("  ABANDON abandon abandon abandon abandon abandon\tabandon abandon abandon abandon abandon about\n")
	require.NoError(t, err)
	assert.Equal(t, zero, data)
}

func TestDecodeInvalid(t *testing.T) {
	_, err := Decode("invalid invalid invalid invalid invalid invalid invalid invalid invalid invalid invalid invalid")
	assert.Error(t, err)

	_, err = Decode("abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon")
	assert.Error(t, err)
	assert.False(t, IsMnemonic("801abcdef"))
}

func TestFingerprint(t *testing.T) {
	phrase := "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

	fp, err := Fingerprint(phrase, "")
	require.NoError(t, err)
	assert.Equal(t, "73c5da0a", fp)

	again, err := Fingerprint("  ABANDON abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon About ", "")
	require.NoError(t, err)
	assert.Equal(t, fp, again)

	other, err := Fingerprint(phrase, "TREZOR")
	require.NoError(t, err)
	assert.Len(t, other, 8)
	assert.NotEqual(t, fp, other)

	_, err = Fingerprint("not a phrase", "")
	assert.Error(t, err)
}
