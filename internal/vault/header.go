package vault

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Hussein-Mazeh/credvault/krypto"
)

// FormatVersion is the only document version this package reads and writes.
const FormatVersion = 1

// KDFConfig describes the key-derivation parameters stored in the vault header.
type KDFConfig struct {
	Name        string `json:"name"`
	Iterations  int    `json:"iterations,omitempty"`
	MemoryMB    uint32 `json:"memoryMB,omitempty"`
	Time        uint32 `json:"time,omitempty"`
	Parallelism uint8  `json:"parallelism,omitempty"`
	KeyLen      int    `json:"keyLen"`
}

// Params converts the stored config into derivation parameters.
func (k KDFConfig) Params() krypto.KDFParams {
	return krypto.KDFParams{
		Name:        k.Name,
		Iterations:  k.Iterations,
		MemoryMB:    k.MemoryMB,
		Time:        k.Time,
		Parallelism: k.Parallelism,
		KeyLen:      k.KeyLen,
	}
}

// KDFConfigFrom records p in header form, dropping fields p.Name does not use.
func KDFConfigFrom(p krypto.KDFParams) KDFConfig {
	cfg := KDFConfig{Name: p.Name, KeyLen: p.KeyLen}
	switch p.Name {
	case krypto.KDFArgon2id:
		cfg.MemoryMB = p.MemoryMB
		cfg.Time = p.Time
		cfg.Parallelism = p.Parallelism
	default:
		cfg.Iterations = p.Iterations
	}
	return cfg
}

// Header is the non-secret metadata persisted with every vault.
// The salt is fixed for the lifetime of the vault and only replaced by a
// full re-encryption of every entry.
type Header struct {
	Version   int
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
	Salt      []byte
	KDF       KDFConfig
	Cipher    string
}

// NewHeader creates metadata for a fresh vault with a random salt and id.
func NewHeader(params krypto.KDFParams, cipherName string) (Header, error) {
	if err := params.Validate(); err != nil {
		return Header{}, err
	}
	if cipherName == "" {
		cipherName = krypto.CipherAESGCM
	}
	if !krypto.SupportedCipher(cipherName) {
		return Header{}, fmt.Errorf("%w: unsupported cipher %q", ErrInvalidInput, cipherName)
	}

	salt, err := krypto.NewRandomSalt(krypto.SaltSize)
	if err != nil {
		return Header{}, err
	}

	now := time.Now().UTC()
	return Header{
		Version:   FormatVersion,
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		Salt:      salt,
		KDF:       KDFConfigFrom(params),
		Cipher:    cipherName,
	}, nil
}

// Validate reports ErrCorrupt when the header cannot describe a usable vault.
func (h Header) Validate() error {
	if h.Version != FormatVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrCorrupt, h.Version)
	}
	if len(h.Salt) < krypto.SaltSize {
		return fmt.Errorf("%w: salt is %d bytes, need at least %d", ErrCorrupt, len(h.Salt), krypto.SaltSize)
	}
	if err := h.KDF.Params().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if !krypto.SupportedCipher(h.Cipher) {
		return fmt.Errorf("%w: unsupported cipher %q", ErrCorrupt, h.Cipher)
	}
	return nil
}
