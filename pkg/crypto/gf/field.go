// Package gf implements arithmetic in the binary extension fields GF(2^b) for
// 3 <= b <= 20 using precomputed log and exp tables.
package gf

import (
	"errors"
	"fmt"
)

const (
	MinBits     = 3
	MaxBits     = 20
	DefaultBits = 8
)

var ErrInvalidBits = errors.New("gf: number of bits must be an integer between 3 and 20")

// primitives[b] holds the low-order terms of a primitive polynomial of degree b.
var primitives = [MaxBits + 1]uint32{
	0, 0, 1, 3, 3, 5, 3, 3, 29, 17, 9, 5, 83, 27, 43, 3, 45, 9, 39, 39, 9,
}

// Field is an immutable GF(2^b) instance. It is safe for concurrent use.
type Field struct {
	bits int
	size uint32
	max  uint32
	logs []uint32
	exps []uint32
}

// New builds the tables for GF(2^bits).
func New(bits int) (*Field, error) {
	if bits < MinBits || bits > MaxBits {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBits, bits)
	}

	size := uint32(1) << bits
	f := &Field{
		bits: bits,
		size: size,
		max:  size - 1,
		logs: make([]uint32, size),
		exps: make([]uint32, size),
	}

	// Generate successive powers of x, reducing by the primitive
	// polynomial whenever the degree reaches bits.
	x := uint32(1)
	for i := uint32(0); i < f.max; i++ {
		f.exps[i] = x
		f.logs[x] = i
		x <<= 1
		if x >= size {
			x ^= primitives[bits]
			x &= f.max
		}
	}
	f.exps[f.max] = f.exps[0]

	return f, nil
}

func (f *Field) Bits() int { return f.bits }

// Size is the number of field elements, 2^bits.
func (f *Field) Size() uint32 { return f.size }

// Max is the largest element and the order of the multiplicative group.
func (f *Field) Max() uint32 { return f.max }

// Primitive returns the reduction constant used for this width.
func (f *Field) Primitive() uint32 { return primitives[f.bits] }

// Log returns the discrete logarithm of x. x must be non-zero.
func (f *Field) Log(x uint32) uint32 { return f.logs[x] }

// Exp returns the generator raised to i, for 0 <= i <= Max.
func (f *Field) Exp(i uint32) uint32 { return f.exps[i] }

func (f *Field) Add(x, y uint32) uint32 { return x ^ y }

func (f *Field) Mul(x, y uint32) uint32 {
	if x == 0 || y == 0 {
		return 0
	}
	return f.exps[(f.logs[x]+f.logs[y])%f.max]
}

// Div returns x / y. y must be non-zero.
func (f *Field) Div(x, y uint32) uint32 {
	if x == 0 {
		return 0
	}
	return f.exps[(f.logs[x]+f.max-f.logs[y])%f.max]
}

// Contains reports whether x is an element of the field.
func (f *Field) Contains(x uint32) bool { return x < f.size }

// Horner evaluates the polynomial with the given coefficients at x. coeffs[0]
// is the constant term.
func (f *Field) Horner(x uint32, coeffs []uint32) uint32 {
	var fx uint32
	for i := len(coeffs) - 1; i >= 0; i-- {
		fx = f.Mul(x, fx) ^ coeffs[i]
	}
	return fx
}

// Lagrange interpolates the polynomial through the points (xs[i], ys[i]) and
// evaluates it at at. A term whose y is zero contributes nothing, and a term
// is skipped entirely when at coincides with another point's x.
func (f *Field) Lagrange(at uint32, xs, ys []uint32) uint32 {
	var sum uint32
	for i := range xs {
		if ys[i] == 0 {
			continue
		}

		product := f.logs[ys[i]]
		skip := false
		for j := range xs {
			if i == j {
				continue
			}
			if at == xs[j] {
				skip = true
				break
			}
			product = (product + f.logs[at^xs[j]] + f.max - f.logs[xs[i]^xs[j]]) % f.max
		}
		if skip {
			continue
		}

		sum ^= f.exps[product]
	}
	return sum
}
