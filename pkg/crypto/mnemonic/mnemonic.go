// Package mnemonic renders fixed-size byte shares as BIP-39 word lists so they
// can be written down or read aloud.
package mnemonic

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
)

const (
	MinBytes = 16
	MaxBytes = 32
)

var ErrUnsupportedLength = errors.New("mnemonic: data must be 16 to 32 bytes in multiples of 4")

// Supports reports whether data of length n can be encoded.
func Supports(n int) bool {
	return n >= MinBytes && n <= MaxBytes && n%4 == 0
}

// Encode returns the BIP-39 phrase for data.
func Encode(data []byte) (string, error) {
	if !Supports(len(data)) {
		return "", fmt.Errorf("%w: got %d", ErrUnsupportedLength, len(data))
	}

	phrase, err := bip39.NewMnemonic(data)
	if err != nil {
		return "", fmt.Errorf("failed to generate mnemonic from data: %w", err)
	}
	return phrase, nil
}

// Decode returns the bytes behind a phrase, validating its checksum.
func Decode(phrase string) ([]byte, error) {
	phrase = Normalize(phrase)
	data, err := bip39.EntropyFromMnemonic(phrase)
	if err != nil {
		return nil, fmt.Errorf("invalid mnemonic: %w", err)
	}
	return data, nil
}

// IsMnemonic reports whether s is a valid phrase.
func IsMnemonic(s string) bool {
	return bip39.IsMnemonicValid(Normalize(s))
}

// Normalize lowercases the phrase and collapses whitespace.
func Normalize(phrase string) string {
	return strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
}

// Fingerprint returns the BIP-32 master key fingerprint of the wallet the
// phrase and passphrase seed, as shown by hardware wallets. It identifies a
// recovered phrase without revealing it.
func Fingerprint(phrase, passphrase string) (string, error) {
	phrase = Normalize(phrase)
	if !bip39.IsMnemonicValid(phrase) {
		return "", fmt.Errorf("invalid mnemonic: %w", bip39.ErrInvalidMnemonic)
	}

	seed := bip39.NewSeed(phrase, passphrase)
	defer clear(seed)

	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return "", fmt.Errorf("failed to derive master key: %w", err)
	}
	// A child records its parent's fingerprint.
	child, err := master.NewChildKey(0)
	if err != nil {
		return "", fmt.Errorf("failed to derive child key: %w", err)
	}
	return hex.EncodeToString(child.FingerPrint), nil
}

func ValidateWordCount(count int) bool {
	validCounts := []int{12, 15, 18, 21, 24}
	for _, valid := range validCounts {
		if count == valid {
			return true
		}
	}
	return false
}
