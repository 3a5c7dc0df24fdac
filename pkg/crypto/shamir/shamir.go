// Package shamir implements threshold secret sharing over GF(2^b) with the
// share encoding used by secrets.js, so shares interoperate with that library.
package shamir

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/Davincible/sharecrypt/pkg/crypto/gf"
)

const (
	DefaultPadLength = 128
	MaxPadLength     = 1024
)

type Config struct {
	Shares    int
	Threshold int
	// Bits selects GF(2^Bits). Zero means gf.DefaultBits.
	Bits int
	// PadLength left-pads the encoded secret to a multiple of this many bits.
	// Zero means DefaultPadLength.
	PadLength int
	// Rand defaults to crypto/rand.Reader.
	Rand io.Reader
}

func (c *Config) bits() int {
	if c.Bits == 0 {
		return gf.DefaultBits
	}
	return c.Bits
}

func (c *Config) padLength() int {
	if c.PadLength == 0 {
		return DefaultPadLength
	}
	return c.PadLength
}

func (c *Config) random() io.Reader {
	if c.Rand == nil {
		return rand.Reader
	}
	return c.Rand
}

func (c *Config) Validate() error {
	bits := c.bits()
	if bits < gf.MinBits || bits > gf.MaxBits {
		return fmt.Errorf("%w: %w: got %d", ErrInvalidParameter, gf.ErrInvalidBits, bits)
	}
	maxShares := MaxShares(bits)
	if c.Shares < 2 || c.Shares > maxShares {
		return fmt.Errorf("%w: number of shares must be an integer between 2 and %d, got %d",
			ErrInvalidParameter, maxShares, c.Shares)
	}
	if c.Threshold < 2 {
		return fmt.Errorf("%w: threshold must be at least 2, got %d", ErrInvalidParameter, c.Threshold)
	}
	if c.Threshold > c.Shares {
		return fmt.Errorf("%w: threshold (%d) cannot be greater than shares (%d)",
			ErrInvalidParameter, c.Threshold, c.Shares)
	}
	if c.PadLength < 0 || c.PadLength > MaxPadLength {
		return fmt.Errorf("%w: zero-pad length must be an integer between 0 and %d, got %d",
			ErrInvalidParameter, MaxPadLength, c.PadLength)
	}
	return nil
}

// Split shares secret among cfg.Shares parties, any cfg.Threshold of which can
// recover it.
func Split(secret []byte, cfg Config) ([]Share, error) {
	return SplitHex(hex.EncodeToString(secret), cfg)
}

// SplitHex is Split for a secret that is already hex encoded.
func SplitHex(secretHex string, cfg Config) ([]Share, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if !isHex(secretHex) {
		return nil, fmt.Errorf("%w: secret must be hex encoded", ErrInvalidParameter)
	}

	bits := cfg.bits()
	field, err := gf.ForBits(bits)
	if err != nil {
		return nil, err
	}

	// A leading 1 bit preserves leading zeros of the secret across the round trip.
	encoded, _ := new(big.Int).SetString("1"+secretHex, 16)
	width := 4*len(secretHex) + 1
	pad := cfg.padLength()
	width = (width + pad - 1) / pad * pad
	chunks := unpackChunks(encoded, width, bits)

	ys := make([][]uint32, cfg.Shares)
	for j := range ys {
		ys[j] = make([]uint32, len(chunks))
	}

	coeffs := make([]uint32, cfg.Threshold)
	for k, chunk := range chunks {
		coeffs[0] = chunk
		for i := 1; i < cfg.Threshold; i++ {
			if coeffs[i], err = randomElement(cfg.random(), bits); err != nil {
				return nil, fmt.Errorf("failed to draw coefficient: %w", err)
			}
		}
		for j := 0; j < cfg.Shares; j++ {
			ys[j][k] = field.Horner(uint32(j+1), coeffs)
		}
	}
	for i := range coeffs {
		coeffs[i] = 0
	}

	shares := make([]Share, cfg.Shares)
	for j := range shares {
		shares[j] = Share{
			Bits: bits,
			ID:   j + 1,
			Data: toHex(packChunks(ys[j], bits), len(chunks)*bits),
		}
	}
	return shares, nil
}

// Combine reconstructs the secret from shares. Supplying fewer shares than the
// split threshold yields an unrelated value, not an error.
func Combine(shares []Share) ([]byte, error) {
	secretHex, err := CombineAt(shares, 0)
	if err != nil {
		return nil, err
	}
	if len(secretHex)%2 == 1 {
		secretHex = "0" + secretHex
	}
	secret, err := hex.DecodeString(secretHex)
	if err != nil {
		return nil, fmt.Errorf("failed to decode secret: %w", err)
	}
	return secret, nil
}

// CombineHex reconstructs the hex-encoded secret.
func CombineHex(shares []Share) (string, error) {
	return CombineAt(shares, 0)
}

// CombineAt interpolates the shares at x = at. At zero it returns the secret as
// hex; at a share id it returns that share's data.
func CombineAt(shares []Share, at int) (string, error) {
	if len(shares) == 0 {
		return "", ErrNoShares
	}

	bits := shares[0].Bits
	for i, s := range shares {
		if err := s.Validate(); err != nil {
			return "", fmt.Errorf("share %d: %w", i+1, err)
		}
		if s.Bits != bits {
			return "", fmt.Errorf("%w: share %d uses %d bits, expected %d", ErrMismatchedShares, i+1, s.Bits, bits)
		}
	}
	if at < 0 || at > MaxShares(bits) {
		return "", fmt.Errorf("%w: evaluation point must be between 0 and %d, got %d",
			ErrInvalidParameter, MaxShares(bits), at)
	}

	field, err := gf.ForBits(bits)
	if err != nil {
		return "", err
	}

	var xs []uint32
	var columns [][]uint32
	seen := make(map[int]bool, len(shares))
	for _, s := range shares {
		if seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		xs = append(xs, uint32(s.ID))

		data, _ := new(big.Int).SetString(s.Data, 16)
		columns = append(columns, unpackChunks(data, 4*len(s.Data), bits))
	}

	numChunks := 0
	for _, c := range columns {
		numChunks = max(numChunks, len(c))
	}

	// Shares with less data contribute zero for the missing chunks.
	result := make([]uint32, numChunks)
	ys := make([]uint32, len(xs))
	for k := range result {
		for i, c := range columns {
			ys[i] = 0
			if k < len(c) {
				ys[i] = c[k]
			}
		}
		result[k] = field.Lagrange(uint32(at), xs, ys)
	}

	value := packChunks(result, bits)
	width := numChunks * bits
	if at != 0 {
		return toHex(value, width), nil
	}

	if value.Sign() == 0 {
		return toHex(value, width), nil
	}
	top := value.BitLen() - 1
	value.SetBit(value, top, 0)
	return toHex(value, top), nil
}

// NewShare derives the share with the given id from at least a threshold of
// existing shares, without reconstructing the secret.
func NewShare(id int, shares []Share) (Share, error) {
	if len(shares) == 0 {
		return Share{}, ErrNoShares
	}
	bits := shares[0].Bits
	if id < 1 || id > MaxShares(bits) {
		return Share{}, fmt.Errorf("%w: share id must be an integer between 1 and %d, got %d",
			ErrInvalidParameter, MaxShares(bits), id)
	}

	data, err := CombineAt(shares, id)
	if err != nil {
		return Share{}, err
	}
	return Share{Bits: bits, ID: id, Data: data}, nil
}

// RandomHex returns a non-zero random value of the given bit length as hex.
func RandomHex(bits int, r io.Reader) (string, error) {
	if bits < 2 || bits > 65536 {
		return "", fmt.Errorf("%w: number of bits must be an integer between 2 and 65536, got %d",
			ErrInvalidParameter, bits)
	}
	if r == nil {
		r = rand.Reader
	}

	buf := make([]byte, (bits+7)/8)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		if extra := len(buf)*8 - bits; extra > 0 {
			buf[0] &= 0xff >> extra
		}
		v := new(big.Int).SetBytes(buf)
		if v.Sign() != 0 {
			return toHex(v, bits), nil
		}
	}
}

// randomElement draws a uniformly random non-zero element of GF(2^bits).
func randomElement(r io.Reader, bits int) (uint32, error) {
	var buf [3]byte
	b := buf[:(bits+7)/8]
	mask := uint32(1)<<bits - 1
	for {
		if _, err := io.ReadFull(r, b); err != nil {
			return 0, err
		}
		var v uint32
		for _, c := range b {
			v = v<<8 | uint32(c)
		}
		if v &= mask; v != 0 {
			return v, nil
		}
	}
}

// unpackChunks splits the low width bits of v into ceil(width/bits) values,
// least significant first.
func unpackChunks(v *big.Int, width, bits int) []uint32 {
	n := (width + bits - 1) / bits
	chunks := make([]uint32, n)
	for k := range chunks {
		var c uint32
		for b := bits - 1; b >= 0; b-- {
			c = c<<1 | uint32(v.Bit(k*bits+b))
		}
		chunks[k] = c
	}
	return chunks
}

func packChunks(chunks []uint32, bits int) *big.Int {
	v := new(big.Int)
	for k, c := range chunks {
		for b := 0; b < bits; b++ {
			if c>>b&1 == 1 {
				v.SetBit(v, k*bits+b, 1)
			}
		}
	}
	return v
}

// toHex renders the low width bits of v as zero-padded lowercase hex.
func toHex(v *big.Int, width int) string {
	digits := (width + 3) / 4
	if digits == 0 {
		return ""
	}
	s := v.Text(16)
	if len(s) < digits {
		s = strings.Repeat("0", digits-len(s)) + s
	}
	return s
}
