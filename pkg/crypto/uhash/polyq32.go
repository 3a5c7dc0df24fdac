// Package uhash implements PolyQ32, a keyed polynomial universal hash over the
// prime field Z_p with p = 2^32 - 5.
package uhash

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/bits"
)

const (
	// Prime is the largest prime below 2^32.
	Prime uint64 = 1<<32 - 5

	// BlockSize is the number of hex characters consumed per word.
	BlockSize = 32

	marker uint64 = 1<<32 - 6
	offset uint64 = 5
)

var ErrMalformedMessage = errors.New("uhash: message is not hex encoded")

// PolyQ32 hashes msg, a hex string read as consecutive 32-character (128-bit)
// words, under key. A trailing partial word is ignored. Words that do not fit
// below p-1 are hashed as a marker followed by the word shifted down by 5.
func PolyQ32(key uint32, msg string) (uint32, error) {
	k := uint64(key)
	y := uint64(1)

	n := len(msg) / BlockSize
	var block [16]byte
	for i := 0; i < n; i++ {
		if _, err := hex.Decode(block[:], []byte(msg[i*BlockSize:(i+1)*BlockSize])); err != nil {
			return 0, fmt.Errorf("%w: block %d: %v", ErrMalformedMessage, i, err)
		}

		hi, lo := binary.BigEndian.Uint64(block[:8]), binary.BigEndian.Uint64(block[8:])
		if hi != 0 || lo >= Prime-1 {
			y = (k*y + marker) % Prime
			y = (k*y + reduce(hi, lo)) % Prime
			continue
		}
		y = (k*y + lo) % Prime
	}

	return uint32(y), nil
}

// Tags hashes msg once per key.
func Tags(keys []uint32, msg string) ([]uint32, error) {
	tags := make([]uint32, len(keys))
	for i, k := range keys {
		t, err := PolyQ32(k, msg)
		if err != nil {
			return nil, err
		}
		tags[i] = t
	}
	return tags, nil
}

// reduce returns ((hi<<64 | lo) - offset) mod p. The word is at least p-1, so
// the subtraction never goes negative.
func reduce(hi, lo uint64) uint64 {
	lo, borrow := bits.Sub64(lo, offset, 0)
	hi -= borrow
	return bits.Rem64(hi, lo, Prime)
}
