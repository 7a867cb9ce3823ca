package krypto

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// DeriveSubkey expands key into n bytes of HKDF-SHA256 output bound to info.
func DeriveSubkey(key, salt, info []byte, n int) ([]byte, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("%w: hkdf input key is empty", ErrInvalidInput)
	}
	if n <= 0 {
		return nil, fmt.Errorf("%w: invalid hkdf length", ErrInvalidInput)
	}

	out := make([]byte, n)
	if _, err := io.ReadFull(hkdf.New(sha256.New, key, salt, info), out); err != nil {
		return nil, fmt.Errorf("hkdf expand: %w", err)
	}
	return out, nil
}
