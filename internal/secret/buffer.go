// Package secret keeps master secrets and derived keys in memory that is
// zeroed on release.
//
// On Linux the backing memory is an anonymous mmap region locked against
// swap and excluded from core dumps. When the kernel refuses the lock
// (RLIMIT_MEMLOCK, containers) or on other platforms the buffer falls back
// to an ordinary heap slice that is still zeroed on Close.
package secret

import (
	"errors"
	"runtime"
	"sync"
)

// ErrEmpty is returned when a buffer would hold no bytes.
var ErrEmpty = errors.New("secret: buffer must not be empty")

// Buffer holds sensitive bytes. It must not be copied after creation.
// Any access after Close panics.
type Buffer struct {
	mu     sync.Mutex
	data   []byte
	locked bool
	closed bool
}

// New allocates a zero-filled buffer of the given size.
func New(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, ErrEmpty
	}
	if data, ok := allocLocked(size); ok {
		return &Buffer{data: data, locked: true}, nil
	}
	return &Buffer{data: make([]byte, size)}, nil
}

// NewFromBytes copies source into a new buffer and zeroes source in place.
func NewFromBytes(source []byte) (*Buffer, error) {
	if len(source) == 0 {
		return nil, ErrEmpty
	}
	b, err := New(len(source))
	if err != nil {
		return nil, err
	}
	copy(b.data, source)
	Wipe(source)
	return b, nil
}

// Bytes returns the secret. The slice aliases the buffer; do not retain it past Close.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		panic("secret: read from closed buffer")
	}
	return b.data
}

// Len reports the buffer size, or zero after Close.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Locked reports whether the memory is pinned outside the Go heap.
func (b *Buffer) Locked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.locked
}

// Closed reports whether Close has run.
func (b *Buffer) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Close zeroes the contents and releases the memory. Close is idempotent.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	Wipe(b.data)
	var err error
	if b.locked {
		err = freeLocked(b.data)
	}
	b.data = nil
	return err
}

// Wipe overwrites buf with zeros.
func Wipe(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
	runtime.KeepAlive(buf)
}
