// Package additive implements two-party XOR secret sharing: a one-time pad
// whose ciphertext and key are the two shares.
package additive

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// MaxBurst bounds a single read from the random source.
const MaxBurst = 65536

var (
	ErrInsufficientShares  = errors.New("additive: there are no other shares to combine with")
	ErrAmbiguousShareCount = errors.New("additive: exactly two shares are accepted")
	ErrMismatchedShares    = errors.New("additive: shares differ in length")
)

// Shares holds the two halves of a split secret.
type Shares struct {
	Ciphertext []byte
	Key        []byte
}

// Slice returns the shares in distribution order.
func (s Shares) Slice() [][]byte {
	return [][]byte{s.Ciphertext, s.Key}
}

// Split draws a random key as long as secret and returns secret XOR key with
// the key. r defaults to crypto/rand.Reader.
func Split(secret []byte, r io.Reader) (Shares, error) {
	if r == nil {
		r = rand.Reader
	}

	key := make([]byte, len(secret))
	for off := 0; off < len(key); off += MaxBurst {
		end := min(off+MaxBurst, len(key))
		if _, err := io.ReadFull(r, key[off:end]); err != nil {
			return Shares{}, fmt.Errorf("failed to generate key: %w", err)
		}
	}

	ciphertext := make([]byte, len(secret))
	for i := range secret {
		ciphertext[i] = secret[i] ^ key[i]
	}

	return Shares{Ciphertext: ciphertext, Key: key}, nil
}

// Combine XORs exactly two shares. Order does not matter.
func Combine(shares ...[]byte) ([]byte, error) {
	switch {
	case len(shares) <= 1:
		return nil, fmt.Errorf("%w: got %d", ErrInsufficientShares, len(shares))
	case len(shares) > 2:
		return nil, fmt.Errorf("%w: got %d", ErrAmbiguousShareCount, len(shares))
	}

	a, b := shares[0], shares[1]
	if len(a) != len(b) {
		return nil, fmt.Errorf("%w: %d and %d bytes", ErrMismatchedShares, len(a), len(b))
	}

	secret := make([]byte, len(a))
	for i := range a {
		secret[i] = a[i] ^ b[i]
	}
	return secret, nil
}
