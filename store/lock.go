package store

import "errors"

// ErrLocked is returned when another process holds the vault lock.
var ErrLocked = errors.New("vault is locked by another process")

// Lock is an advisory exclusive lock guarding one vault path.
type Lock interface {
	Release() error
}

// LockPath returns the lock file used for the vault at path.
func LockPath(path string) string {
	return path + ".lock"
}

type noopLock struct{}

func (noopLock) Release() error { return nil }

// NoLock returns a Lock that guards nothing.
func NoLock() Lock { return noopLock{} }
