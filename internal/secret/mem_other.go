//go:build !linux

package secret

func allocLocked(size int) ([]byte, bool) { return nil, false }

func freeLocked(data []byte) error { return nil }
