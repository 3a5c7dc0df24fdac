package additive

import (
	"bytes"
	"crypto/rand"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingReader records the size of every read.
type countingReader struct {
	r     io.Reader
	reads []int
}

func (c *countingReader) Read(p []byte) (int, error) {
	c.reads = append(c.reads, len(p))
	return c.r.Read(p)
}

func TestSplitAndCombine(t *testing.T) {
	tests := []struct {
		name   string
		secret []byte
	}{
		{"empty", []byte{}},
		{"single byte", []byte{0x41}},
		{"text", []byte("meet me at the usual place")},
		{"binary", bytes.Repeat([]byte{0x00, 0xff, 0x5a}, 100)},
		{"larger than one burst", bytes.Repeat([]byte("x"), MaxBurst*2+17)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shares, err := Split(tt.secret, nil)
			require.NoError(t, err)
			assert.Len(t, shares.Ciphertext, len(tt.secret))
			assert.Len(t, shares.Key, len(tt.secret))

			got, err := Combine(shares.Slice()...)
			require.NoError(t, err)
			assert.Equal(t, tt.secret, got)

			got, err = Combine(shares.Key, shares.Ciphertext)
			require.NoError(t, err)
			assert.Equal(t, tt.secret, got)
		})
	}
}

func TestSplitReadsInBursts(t *testing.T) {
	r := &countingReader{r: rand.Reader}
	secret := make([]byte, MaxBurst*2+100)

	_, err := Split(secret, r)
	require.NoError(t, err)
	for _, n := range r.reads {
		assert.LessOrEqual(t, n, MaxBurst)
	}
}

func TestCombineShareCount(t *testing.T) {
	share := []byte{1, 2, 3}

	_, err := Combine()
	assert.ErrorIs(t, err, ErrInsufficientShares)

	_, err = Combine(share)
	assert.ErrorIs(t, err, ErrInsufficientShares)

	_, err = Combine(share, share, share)
	assert.ErrorIs(t, err, ErrAmbiguousShareCount)
	assert.NotErrorIs(t, err, ErrInsufficientShares)

	_, err = Combine(share, []byte{1})
	assert.ErrorIs(t, err, ErrMismatchedShares)
}

func TestSplitFailsWithoutEntropy(t *testing.T) {
	_, err := Split([]byte("secret"), bytes.NewReader([]byte{1, 2}))
	assert.Error(t, err)
}

func BenchmarkSplit(b *testing.B) {
	secret := make([]byte, 4096)
	for i := 0; i < b.N; i++ {
		if _, err := Split(secret, nil); err != nil {
			b.Fatal(err)
		}
	}
}
