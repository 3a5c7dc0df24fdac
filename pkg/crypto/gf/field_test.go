package gf

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsOutOfRangeBits(t *testing.T) {
	for _, bits := range []int{-1, 0, 1, 2, 21, 32} {
		t.Run(fmt.Sprintf("bits=%d", bits), func(t *testing.T) {
			f, err := New(bits)
			assert.Nil(t, f)
			assert.ErrorIs(t, err, ErrInvalidBits)
		})
	}
}

func TestTablesAreInverse(t *testing.T) {
	for bits := MinBits; bits <= MaxBits; bits++ {
		if testing.Short() && bits > 16 {
			continue
		}
		t.Run(fmt.Sprintf("bits=%d", bits), func(t *testing.T) {
			f, err := New(bits)
			require.NoError(t, err)
			assert.Equal(t, uint32(1)<<bits, f.Size())
			assert.Equal(t, f.Size()-1, f.Max())

			for x := uint32(1); x <= f.Max(); x++ {
				if f.Exp(f.Log(x)) != x {
					t.Fatalf("exp(log(%d)) = %d", x, f.Exp(f.Log(x)))
				}
			}
			for i := uint32(0); i < f.Max(); i++ {
				if f.Log(f.Exp(i)) != i {
					t.Fatalf("log(exp(%d)) = %d", i, f.Log(f.Exp(i)))
				}
			}
		})
	}
}

func TestKnownTableEntries(t *testing.T) {
	f, err := New(8)
	require.NoError(t, err)

	assert.Equal(t, uint32(1), f.Exp(0))
	assert.Equal(t, uint32(2), f.Exp(1))
	assert.Equal(t, uint32(128), f.Exp(7))
	// x^8 = x^4 + x^3 + x^2 + 1 under the default polynomial
	assert.Equal(t, uint32(29), f.Exp(8))
	assert.Equal(t, uint32(0), f.Log(1))
	assert.Equal(t, uint32(29), f.Primitive())
}

func TestMulDiv(t *testing.T) {
	f, err := New(8)
	require.NoError(t, err)

	assert.Equal(t, uint32(0), f.Mul(0, 17))
	assert.Equal(t, uint32(0), f.Mul(17, 0))
	assert.Equal(t, uint32(17), f.Mul(1, 17))

	for x := uint32(1); x < f.Size(); x++ {
		for _, y := range []uint32{1, 2, 3, 29, 200, 255} {
			p := f.Mul(x, y)
			assert.Equal(t, p, f.Mul(y, x))
			assert.Equal(t, x, f.Div(p, y))
		}
	}
	assert.Equal(t, uint32(6), f.Add(3, 5))
}

func TestHornerAndLagrange(t *testing.T) {
	f, err := New(8)
	require.NoError(t, err)

	coeffs := []uint32{0x41, 0x07, 0xc3}
	xs := []uint32{1, 2, 3}
	ys := make([]uint32, len(xs))
	for i, x := range xs {
		ys[i] = f.Horner(x, coeffs)
	}

	assert.Equal(t, coeffs[0], f.Horner(0, coeffs))
	assert.Equal(t, coeffs[0], f.Lagrange(0, xs, ys))

	// Evaluating at a known point returns that point's y.
	for i, x := range xs {
		assert.Equal(t, ys[i], f.Lagrange(x, xs, ys))
	}

	// A fourth point on the same curve interpolates identically.
	assert.Equal(t, f.Horner(9, coeffs), f.Lagrange(9, xs, ys))
}

func TestForBitsSharesInstances(t *testing.T) {
	var wg sync.WaitGroup
	fields := make([]*Field, 16)
	for i := range fields {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f, err := ForBits(10)
			assert.NoError(t, err)
			fields[i] = f
		}(i)
	}
	wg.Wait()

	for _, f := range fields {
		assert.Same(t, fields[0], f)
	}

	_, err := ForBits(2)
	assert.ErrorIs(t, err, ErrInvalidBits)
}

func BenchmarkMul(b *testing.B) {
	f, _ := New(8)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.Mul(uint32(i)&0xff, 0x53)
	}
}

func BenchmarkNew16(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = New(16)
	}
}
