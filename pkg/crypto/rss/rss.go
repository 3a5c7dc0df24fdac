// Package rss implements robust secret sharing: Shamir shares authenticated
// pairwise with PolyQ32 tags so that corrupted shares are voted out before
// reconstruction.
package rss

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Davincible/sharecrypt/pkg/crypto/shamir"
	"github.com/Davincible/sharecrypt/pkg/crypto/uhash"
)

const (
	DefaultNumKeys = 3

	// MaxBits keeps the share's width digit a hex character so the whole
	// share string can be hashed.
	MaxBits = 15
)

// Pair identifies a directed authentication relation. The key stored for a
// pair lets Verifier check Owner's share, and the tag is what Owner presents.
// Party numbers are 1-based.
type Pair struct {
	Owner    int
	Verifier int
}

type Config struct {
	Parties   int
	Threshold int
	// NumKeys is the number of keys and tags per pair. Zero means DefaultNumKeys.
	NumKeys int
	// Bits selects GF(2^Bits) for the underlying shares. Zero means 8.
	Bits      int
	PadLength int
	Rand      io.Reader
}

func (c *Config) numKeys() int {
	if c.NumKeys == 0 {
		return DefaultNumKeys
	}
	return c.NumKeys
}

func (c *Config) shamirConfig() shamir.Config {
	return shamir.Config{
		Shares:    c.Parties,
		Threshold: c.Threshold,
		Bits:      c.Bits,
		PadLength: c.PadLength,
		Rand:      c.Rand,
	}
}

func (c *Config) Validate() error {
	if c.NumKeys < 0 {
		return fmt.Errorf("%w: number of keys must be positive, got %d", ErrInvalidParameter, c.NumKeys)
	}
	if c.Bits > MaxBits {
		return fmt.Errorf("%w: robust sharing supports at most %d bits, got %d", ErrInvalidParameter, MaxBits, c.Bits)
	}
	sc := c.shamirConfig()
	if err := sc.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}
	return nil
}

// Set is everything needed to verify and reconstruct: one share string per
// party (Shares[i] belongs to party i+1) and the pairwise keys and tags.
type Set struct {
	NumKeys int
	Shares  []string
	Keys    map[Pair][]uint32
	Tags    map[Pair][]uint32
}

// Parties is the number of parties in the set.
func (s *Set) Parties() int { return len(s.Shares) }

// Generate splits secret and authenticates every share towards every other
// party with NumKeys independent PolyQ32 tags.
//
// Tags cover only the whole 32-hex-character blocks of a share string,
// counted from its first character. The last len(share) % 32 characters of
// share data are not authenticated: with the default 8-bit field that is the
// final three hex characters. A change confined to them passes
// VerifyAndReconstruct and silently alters the reconstructed secret.
func Generate(secret []byte, cfg Config) (*Set, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	shares, err := shamir.Split(secret, cfg.shamirConfig())
	if err != nil {
		return nil, err
	}

	r := cfg.Rand
	if r == nil {
		r = rand.Reader
	}

	numKeys := cfg.numKeys()
	set := &Set{
		NumKeys: numKeys,
		Shares:  make([]string, len(shares)),
		Keys:    make(map[Pair][]uint32, len(shares)*(len(shares)-1)),
		Tags:    make(map[Pair][]uint32, len(shares)*(len(shares)-1)),
	}
	for i, s := range shares {
		set.Shares[i] = s.String()
	}

	for owner := 1; owner <= len(shares); owner++ {
		for verifier := 1; verifier <= len(shares); verifier++ {
			if owner == verifier {
				continue
			}
			pair := Pair{Owner: owner, Verifier: verifier}

			keys, err := randomKeys(r, numKeys)
			if err != nil {
				return nil, fmt.Errorf("failed to generate keys for %d-%d: %w", owner, verifier, err)
			}
			tags, err := uhash.Tags(keys, set.Shares[owner-1])
			if err != nil {
				return nil, fmt.Errorf("failed to tag share %d: %w", owner, err)
			}
			set.Keys[pair] = keys
			set.Tags[pair] = tags
		}
	}

	return set, nil
}

func randomKeys(r io.Reader, n int) ([]uint32, error) {
	buf := make([]byte, 4*n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	keys := make([]uint32, n)
	for i := range keys {
		keys[i] = binary.BigEndian.Uint32(buf[4*i:])
	}
	return keys, nil
}
