package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/Davincible/sharecrypt/pkg/crypto/mnemonic"
	"github.com/Davincible/sharecrypt/pkg/crypto/secretsharing"
	"github.com/Davincible/sharecrypt/pkg/crypto/shamir"
)

var hexPattern = regexp.MustCompile(`^[0-9a-fA-F]+$`)

// ValidateHex accepts a non-empty hex string of any length.
func ValidateHex(input string) error {
	input = strings.TrimSpace(input)
	if len(input) == 0 {
		return fmt.Errorf("hex string cannot be empty")
	}

	if !hexPattern.MatchString(input) {
		return fmt.Errorf("invalid hex characters")
	}

	return nil
}

// ValidateHexBytes is ValidateHex for whole bytes.
func ValidateHexBytes(input string) error {
	if err := ValidateHex(input); err != nil {
		return err
	}
	if len(strings.TrimSpace(input))%2 != 0 {
		return fmt.Errorf("hex string must have even length")
	}
	return nil
}

func ValidateMnemonic(words string) error {
	words = strings.TrimSpace(words)
	if words == "" {
		return fmt.Errorf("mnemonic cannot be empty")
	}

	wordCount := len(strings.Fields(words))
	if !mnemonic.ValidateWordCount(wordCount) {
		return fmt.Errorf("mnemonic must have 12, 15, 18, 21, or 24 words (got %d)", wordCount)
	}

	if !mnemonic.IsMnemonic(words) {
		return fmt.Errorf("mnemonic has an unknown word or a bad checksum")
	}

	return nil
}

// ValidateSplitParams applies the per-scheme party limits.
func ValidateSplitParams(scheme secretsharing.SchemeType, parties, threshold, bits int) error {
	if scheme == secretsharing.SchemeAdditive {
		if parties != 2 || threshold != 2 {
			return fmt.Errorf("additive sharing is always 2 of 2 (got %d of %d)", threshold, parties)
		}
		return nil
	}

	maxParties := 255
	switch scheme {
	case secretsharing.SchemeShamir, secretsharing.SchemeRobust:
		if bits == 0 {
			bits = 8
		}
		if bits < 3 || bits > 20 {
			return fmt.Errorf("bits must be between 3 and 20 (got %d)", bits)
		}
		maxParties = shamir.MaxShares(bits)
	case secretsharing.SchemeSSSA:
		maxParties = 1024
	}

	if parties < 2 || parties > maxParties {
		return fmt.Errorf("parties must be between 2 and %d (got %d)", maxParties, parties)
	}

	if threshold < 2 || threshold > parties {
		return fmt.Errorf("threshold must be between 2 and %d (got %d)", parties, threshold)
	}

	return nil
}

func ValidatePassphrase(passphrase string) error {
	if len(passphrase) > 256 {
		return fmt.Errorf("passphrase too long (max 256 characters)")
	}

	for i, ch := range passphrase {
		if ch == 0 {
			return fmt.Errorf("passphrase contains null character at position %d", i)
		}
		if ch == utf8.RuneError {
			return fmt.Errorf("passphrase contains invalid UTF-8 at position %d", i)
		}
	}

	return nil
}

// ValidatePartyDir checks that dir is a directory holding a share file.
func ValidatePartyDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("party directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	if _, err := os.Stat(filepath.Join(dir, secretsharing.ShareAttachment)); err != nil {
		return fmt.Errorf("%s has no %q file", dir, secretsharing.ShareAttachment)
	}
	return nil
}

// SanitizeInput trims each line and normalises line endings.
func SanitizeInput(input string) string {
	input = strings.TrimSpace(input)

	input = strings.ReplaceAll(input, "\r\n", "\n")
	input = strings.ReplaceAll(input, "\r", "\n")

	lines := strings.Split(input, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}

	return strings.Join(lines, "\n")
}

// SplitLines returns the non-empty sanitized lines of input.
func SplitLines(input string) []string {
	var out []string
	for _, line := range strings.Split(SanitizeInput(input), "\n") {
		if line != "" && !strings.HasPrefix(line, "#") {
			out = append(out, line)
		}
	}
	return out
}
