package shamir

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Davincible/sharecrypt/pkg/crypto/gf"
)

// constReader yields the same byte forever, giving a fixed polynomial.
type constReader byte

func (c constReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(c)
	}
	return len(p), nil
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestSplitAndCombine(t *testing.T) {
	tests := []struct {
		name      string
		secret    []byte
		shares    int
		threshold int
		bits      int
		padLength int
	}{
		{
			name:      "Simple secret 3 of 5",
			secret:    []byte("my secret data"),
			shares:    5,
			threshold: 3,
		},
		{
			name:      "256-bit key 2 of 3",
			secret:    bytes.Repeat([]byte{0x42}, 32),
			shares:    3,
			threshold: 2,
		},
		{
			name:      "Large secret 5 of 7",
			secret:    bytes.Repeat([]byte("test"), 256),
			shares:    7,
			threshold: 5,
		},
		{
			name:      "Leading zero bytes survive",
			secret:    []byte{0x00, 0x00, 0x01, 0xff},
			shares:    4,
			threshold: 2,
		},
		{
			name:      "Three bit field",
			secret:    []byte("tiny field"),
			shares:    7,
			threshold: 4,
			bits:      3,
		},
		{
			name:      "Twelve bit field no padding multiple",
			secret:    []byte("twelve"),
			shares:    20,
			threshold: 6,
			bits:      12,
			padLength: 1,
		},
		{
			name:      "Empty secret",
			secret:    []byte{},
			shares:    3,
			threshold: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Config{
				Shares:    tt.shares,
				Threshold: tt.threshold,
				Bits:      tt.bits,
				PadLength: tt.padLength,
			}

			shares, err := Split(tt.secret, config)
			require.NoError(t, err)
			assert.Len(t, shares, tt.shares)

			for i, share := range shares {
				assert.NotEmpty(t, share.Data)
				assert.Equal(t, i+1, share.ID)
				assert.NoError(t, share.Validate())
			}

			reconstructed, err := Combine(shares[:tt.threshold])
			require.NoError(t, err)
			assert.Equal(t, tt.secret, reconstructed)

			reconstructed2, err := Combine(shares[tt.shares-tt.threshold:])
			require.NoError(t, err)
			assert.Equal(t, tt.secret, reconstructed2)

			all, err := Combine(shares)
			require.NoError(t, err)
			assert.Equal(t, tt.secret, all)
		})
	}
}

func TestEverySubsetReconstructs(t *testing.T) {
	secret := []byte("subset invariance")
	shares, err := Split(secret, Config{Shares: 6, Threshold: 3})
	require.NoError(t, err)

	count := 0
	for a := 0; a < len(shares); a++ {
		for b := a + 1; b < len(shares); b++ {
			for c := b + 1; c < len(shares); c++ {
				got, err := Combine([]Share{shares[c], shares[a], shares[b]})
				require.NoError(t, err)
				assert.Equal(t, secret, got)
				count++
			}
		}
	}
	assert.Equal(t, 20, count)
}

func TestKnownShares(t *testing.T) {
	shares, err := SplitHex("41", Config{
		Shares:    3,
		Threshold: 2,
		Bits:      8,
		Rand:      constReader(7),
	})
	require.NoError(t, err)
	require.Len(t, shares, 3)

	// f(x) = chunk + 7x for each of the sixteen 8-bit chunks of "1"||0x41
	// padded to 128 bits.
	assert.Equal(t, "801"+strings.Repeat("07", 14)+"0646", shares[0].String())
	assert.Equal(t, "802"+strings.Repeat("0e", 14)+"0f4f", shares[1].String())

	for _, pair := range [][]Share{
		{shares[0], shares[1]},
		{shares[0], shares[2]},
		{shares[1], shares[2]},
	} {
		got, err := CombineHex(pair)
		require.NoError(t, err)
		assert.Equal(t, "41", got)
	}
}

func TestExampleSecretA(t *testing.T) {
	shares, err := SplitHex("41", Config{Shares: 3, Threshold: 2, Bits: 8})
	require.NoError(t, err)

	for i, s := range shares {
		parsed, err := ParseShare(s.String())
		require.NoError(t, err)
		assert.Equal(t, 8, parsed.Bits)
		assert.Equal(t, i+1, parsed.ID)
	}

	got, err := CombineHex([]Share{shares[2], shares[0]})
	require.NoError(t, err)
	assert.Equal(t, "41", got)
}

func TestBelowThresholdDoesNotReconstruct(t *testing.T) {
	secret := []byte("below threshold")
	shares, err := Split(secret, Config{
		Shares:    5,
		Threshold: 3,
		Rand:      constReader(7),
	})
	require.NoError(t, err)

	got, err := Combine(shares[:2])
	require.NoError(t, err)
	assert.NotEqual(t, secret, got)
}

func TestCombineDeduplicatesIDs(t *testing.T) {
	secret := []byte("dedupe")
	shares, err := Split(secret, Config{Shares: 4, Threshold: 3})
	require.NoError(t, err)

	// The second copy of share 1 is dropped; ids 1, 2 and 4 still give
	// three distinct points.
	withDup := []Share{shares[0], shares[1], shares[0], shares[3]}
	got, err := Combine(withDup)
	require.NoError(t, err)
	assert.Equal(t, secret, got)
}

func TestDuplicateDoesNotCountTowardsThreshold(t *testing.T) {
	secret := []byte("dedupe")
	shares, err := Split(secret, Config{Shares: 4, Threshold: 3, Rand: constReader(7)})
	require.NoError(t, err)

	twoDistinct, err := Combine(shares[:2])
	require.NoError(t, err)

	got, err := Combine([]Share{shares[0], shares[1], shares[0]})
	require.NoError(t, err)
	assert.Equal(t, twoDistinct, got)
	assert.NotEqual(t, secret, got)
}

func TestCombineMismatchedBits(t *testing.T) {
	a, err := Split([]byte("x"), Config{Shares: 3, Threshold: 2, Bits: 8})
	require.NoError(t, err)
	b, err := Split([]byte("x"), Config{Shares: 3, Threshold: 2, Bits: 10})
	require.NoError(t, err)

	_, err = Combine([]Share{a[0], b[1]})
	assert.ErrorIs(t, err, ErrMismatchedShares)
}

func TestCombineInvalidShares(t *testing.T) {
	secret := []byte("test secret")
	shares, err := Split(secret, Config{Shares: 5, Threshold: 3})
	require.NoError(t, err)

	_, err = Combine(nil)
	assert.ErrorIs(t, err, ErrNoShares)

	invalid := []Share{{Bits: 8, ID: 1, Data: ""}, shares[1], shares[2]}
	_, err = Combine(invalid)
	assert.ErrorIs(t, err, ErrMalformedShare)

	invalid = []Share{{Bits: 8, ID: 0, Data: shares[0].Data}, shares[1], shares[2]}
	_, err = Combine(invalid)
	assert.ErrorIs(t, err, ErrMalformedShare)

	_, err = CombineAt(shares, 256)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestNewShare(t *testing.T) {
	secret := []byte("derive another share")
	shares, err := Split(secret, Config{Shares: 5, Threshold: 3})
	require.NoError(t, err)

	derived, err := NewShare(5, shares[:3])
	require.NoError(t, err)
	assert.Equal(t, shares[4], derived)

	fresh, err := NewShare(42, shares[1:4])
	require.NoError(t, err)
	assert.Equal(t, 42, fresh.ID)

	got, err := Combine([]Share{fresh, shares[0], shares[4]})
	require.NoError(t, err)
	assert.Equal(t, secret, got)

	_, err = NewShare(0, shares)
	assert.ErrorIs(t, err, ErrInvalidParameter)
	_, err = NewShare(256, shares)
	assert.ErrorIs(t, err, ErrInvalidParameter)
	_, err = NewShare(1, nil)
	assert.ErrorIs(t, err, ErrNoShares)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name      string
		config    Config
		wantError bool
	}{
		{
			name:   "Valid config",
			config: Config{Shares: 5, Threshold: 3},
		},
		{
			name:   "Valid maximum for eight bits",
			config: Config{Shares: 255, Threshold: 255},
		},
		{
			name:   "More shares with wider field",
			config: Config{Shares: 1000, Threshold: 2, Bits: 10},
		},
		{
			name:      "Shares too small",
			config:    Config{Shares: 1, Threshold: 1},
			wantError: true,
		},
		{
			name:      "Threshold too small",
			config:    Config{Shares: 5, Threshold: 1},
			wantError: true,
		},
		{
			name:      "Threshold greater than shares",
			config:    Config{Shares: 3, Threshold: 5},
			wantError: true,
		},
		{
			name:      "Shares exceed field",
			config:    Config{Shares: 256, Threshold: 100},
			wantError: true,
		},
		{
			name:      "Bits out of range",
			config:    Config{Shares: 3, Threshold: 2, Bits: 21},
			wantError: true,
		},
		{
			name:      "Negative pad length",
			config:    Config{Shares: 3, Threshold: 2, PadLength: -1},
			wantError: true,
		},
		{
			name:      "Pad length too large",
			config:    Config{Shares: 3, Threshold: 2, PadLength: 1025},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantError {
				assert.ErrorIs(t, err, ErrInvalidParameter)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	err := (&Config{Shares: 3, Threshold: 2, Bits: 2}).Validate()
	assert.ErrorIs(t, err, gf.ErrInvalidBits)
}

func TestSplitRejectsBadInput(t *testing.T) {
	_, err := SplitHex("xyz", Config{Shares: 3, Threshold: 2})
	assert.ErrorIs(t, err, ErrInvalidParameter)

	_, err = Split([]byte("s"), Config{Shares: 3, Threshold: 2, Rand: failingReader{}})
	assert.Error(t, err)
}

func TestRandomHex(t *testing.T) {
	for _, bits := range []int{2, 7, 8, 128, 257} {
		h, err := RandomHex(bits, nil)
		require.NoError(t, err)
		assert.Len(t, h, (bits+3)/4)
		assert.NotEqual(t, strings.Repeat("0", len(h)), h)
	}

	h, err := RandomHex(7, constReader(0xff))
	require.NoError(t, err)
	assert.Equal(t, "7f", h)

	_, err = RandomHex(1, nil)
	assert.ErrorIs(t, err, ErrInvalidParameter)
	_, err = RandomHex(65537, nil)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func BenchmarkSplit(b *testing.B) {
	secret := bytes.Repeat([]byte{0x42}, 32)
	config := Config{Shares: 5, Threshold: 3}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Split(secret, config); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCombine(b *testing.B) {
	secret := bytes.Repeat([]byte{0x42}, 32)
	shares, err := Split(secret, Config{Shares: 5, Threshold: 3})
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Combine(shares[:3]); err != nil {
			b.Fatal(err)
		}
	}
}
