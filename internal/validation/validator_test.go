package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Davincible/sharecrypt/pkg/crypto/secretsharing"
)

func TestValidateHex(t *testing.T) {
	tests := []struct {
		input   string
		hexOK   bool
		bytesOK bool
	}{
		{"41", true, true},
		{"abc", true, false},
		{"  DEADbeef \n", true, true},
		{"", false, false},
		{"xyz", false, false},
		{"12 34", false, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.hexOK, ValidateHex(tt.input) == nil, "ValidateHex(%q)", tt.input)
		assert.Equal(t, tt.bytesOK, ValidateHexBytes(tt.input) == nil, "ValidateHexBytes(%q)", tt.input)
	}
}

func TestValidateMnemonic(t *testing.T) {
	valid := "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	assert.NoError(t, ValidateMnemonic(valid))
	assert.Error(t, ValidateMnemonic(""))
	assert.Error(t, ValidateMnemonic("abandon abandon"))
	assert.Error(t, ValidateMnemonic("abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon"))
}

func TestValidateSplitParams(t *testing.T) {
	tests := []struct {
		name      string
		scheme    secretsharing.SchemeType
		parties   int
		threshold int
		bits      int
		wantErr   bool
	}{
		{"shamir default bits", secretsharing.SchemeShamir, 5, 3, 0, false},
		{"shamir at field limit", secretsharing.SchemeShamir, 7, 2, 3, false},
		{"shamir over field limit", secretsharing.SchemeShamir, 8, 2, 3, true},
		{"shamir wide field", secretsharing.SchemeShamir, 1000, 500, 10, false},
		{"bits out of range", secretsharing.SchemeRobust, 3, 2, 21, true},
		{"threshold above parties", secretsharing.SchemeVault, 3, 4, 0, true},
		{"vault limit", secretsharing.SchemeVault, 256, 2, 0, true},
		{"threshold one", secretsharing.SchemeSSSA, 3, 1, 0, true},
		{"additive", secretsharing.SchemeAdditive, 2, 2, 0, false},
		{"additive three parties", secretsharing.SchemeAdditive, 3, 2, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSplitParams(tt.scheme, tt.parties, tt.threshold, tt.bits)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePassphrase(t *testing.T) {
	assert.NoError(t, ValidatePassphrase("correct horse battery staple"))
	assert.NoError(t, ValidatePassphrase(""))
	assert.Error(t, ValidatePassphrase("nul\x00byte"))
	assert.Error(t, ValidatePassphrase(string(make([]byte, 257))))
}

func TestValidatePartyDir(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, ValidatePartyDir(dir))
	assert.Error(t, ValidatePartyDir(filepath.Join(dir, "missing")))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "share"), []byte("8010707"), 0600))
	assert.NoError(t, ValidatePartyDir(dir))
	assert.Error(t, ValidatePartyDir(filepath.Join(dir, "share")))
}

func TestSplitLines(t *testing.T) {
	input := "  first\r\n\r\n# comment\n second  \rthird\n"
	assert.Equal(t, []string{"first", "second", "third"}, SplitLines(input))
	assert.Empty(t, SplitLines("   \n\n"))
}
