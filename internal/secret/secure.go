// Package secret keeps credentials out of swap and encrypts them at rest.
package secret

import (
	"runtime"
	"sync"
)

// Bytes holds sensitive data in locked memory until Destroy zeroes it.
type Bytes struct {
	data   []byte
	locked bool
	mu     sync.Mutex
}

// FromString copies s into locked memory.
func FromString(s string) *Bytes {
	return FromSlice([]byte(s))
}

// FromSlice copies data into locked memory. The caller still owns data.
func FromSlice(data []byte) *Bytes {
	b := &Bytes{data: make([]byte, len(data))}
	copy(b.data, data)

	// Locking is best effort; unprivileged processes may be refused.
	b.locked = mlock(b.data)

	runtime.SetFinalizer(b, func(s *Bytes) {
		s.Destroy()
	})
	return b
}

// String returns a copy of the data, or "" once destroyed.
func (b *Bytes) String() string {
	if b == nil {
		return ""
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.data)
}

// Len returns the length of the data.
func (b *Bytes) Len() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// IsLocked reports whether the memory is mlocked.
func (b *Bytes) IsLocked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.locked
}

// Destroy zeroes and unlocks the memory. Safe to call more than once and on nil.
func (b *Bytes) Destroy() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.data == nil {
		return
	}
	Zero(b.data)
	if b.locked {
		munlock(b.data)
		b.locked = false
	}
	b.data = nil
	runtime.SetFinalizer(b, nil)
}

// Zero overwrites data with zeros.
func Zero(data []byte) {
	for i := range data {
		data[i] = 0
	}
}
