//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd && !dragonfly

package store

// AcquireLock is a no-op where flock is unavailable.
func AcquireLock(path string) (Lock, error) {
	return NoLock(), nil
}
