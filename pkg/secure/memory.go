// Package secure holds helpers for keeping secrets, shares and keys out of
// memory once they are no longer needed.
package secure

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"runtime"
	"sync"
)

// ErrDestroyed is returned by Use once the buffer has been destroyed.
var ErrDestroyed = errors.New("secure: buffer destroyed")

// Buffer owns a secret until Destroy wipes it. The zero value is an empty,
// usable buffer.
type Buffer struct {
	mu        sync.RWMutex
	data      []byte
	destroyed bool
}

// Guard moves data into a new Buffer. The caller's slice is wiped.
func Guard(data []byte) *Buffer {
	b := &Buffer{data: make([]byte, len(data))}
	copy(b.data, data)
	Zero(data)
	return b
}

// Use calls fn with the guarded bytes in place. fn must not retain the slice.
func (b *Buffer) Use(fn func([]byte) error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.destroyed {
		return ErrDestroyed
	}
	return fn(b.data)
}

func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}

// Destroy wipes the buffer. Calling it more than once is harmless.
func (b *Buffer) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()

	Zero(b.data)
	b.data = nil
	b.destroyed = true
}

func Zero(b []byte) {
	clear(b)
	runtime.KeepAlive(b)
}

func ConstantTimeCompare(x, y []byte) bool {
	if len(x) != len(y) {
		return false
	}
	return subtle.ConstantTimeCompare(x, y) == 1
}

// RandomBytes returns size bytes from crypto/rand.
func RandomBytes(size int) ([]byte, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}
