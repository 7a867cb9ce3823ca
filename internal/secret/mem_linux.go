//go:build linux

package secret

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func allocLocked(size int) ([]byte, bool) {
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, false
	}
	if err := unix.Mlock(data); err != nil {
		_ = unix.Munmap(data)
		return nil, false
	}
	// Not every kernel supports MADV_DONTDUMP; the lock alone still keeps it out of swap.
	_ = unix.Madvise(data, unix.MADV_DONTDUMP)
	return data, true
}

func freeLocked(data []byte) error {
	var first error
	if err := unix.Munlock(data); err != nil {
		first = fmt.Errorf("secret: munlock: %w", err)
	}
	if err := unix.Munmap(data); err != nil && first == nil {
		first = fmt.Errorf("secret: munmap: %w", err)
	}
	return first
}
