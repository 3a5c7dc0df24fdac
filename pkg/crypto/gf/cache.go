package gf

import "sync"

var cache [MaxBits + 1]struct {
	once  sync.Once
	field *Field
}

// ForBits returns the shared Field for the given width, building its tables on
// first use.
func ForBits(bits int) (*Field, error) {
	if bits < MinBits || bits > MaxBits {
		return New(bits)
	}

	slot := &cache[bits]
	slot.once.Do(func() {
		// New cannot fail for an in-range width.
		slot.field, _ = New(bits)
	})
	return slot.field, nil
}
