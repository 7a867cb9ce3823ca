package vault

import (
	"errors"

	"github.com/Hussein-Mazeh/credvault/krypto"
)

// Sentinel errors for credential store and document operations.
var (
	ErrInvalidInput = krypto.ErrInvalidInput
	ErrIntegrity    = krypto.ErrIntegrity
	ErrNotFound     = errors.New("entry not found")
	ErrCorrupt      = errors.New("vault data is corrupt")
)
