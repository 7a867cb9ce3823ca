package krypto

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// KDFPBKDF2 selects PBKDF2-HMAC-SHA256.
	KDFPBKDF2 = "pbkdf2-sha256"
	// KDFArgon2id selects the memory-hard Argon2id function.
	KDFArgon2id = "argon2id"

	// SaltSize is the minimum (and generated) salt length in bytes.
	SaltSize = 16
	// KeySize is the derived key length used by the vault ciphers.
	KeySize = 32

	// MinPBKDF2Iterations is the floor enforced on every PBKDF2 derivation.
	MinPBKDF2Iterations = 100000
	// DefaultPBKDF2Iterations is used when a new vault is created.
	DefaultPBKDF2Iterations = 600000
)

var (
	// ErrInvalidInput reports malformed arguments to a key derivation or cipher call.
	ErrInvalidInput = errors.New("invalid input")
	// ErrIntegrity reports that authenticated decryption failed.
	ErrIntegrity = errors.New("integrity check failed")
)

// KDFParams names a key-derivation function and its work factor.
// Only the fields relevant to Name are consulted.
type KDFParams struct {
	Name        string
	Iterations  int
	MemoryMB    uint32
	Time        uint32
	Parallelism uint8
	KeyLen      int
}

// DefaultPBKDF2Params returns the parameters new vaults are created with.
func DefaultPBKDF2Params() KDFParams {
	return KDFParams{
		Name:       KDFPBKDF2,
		Iterations: DefaultPBKDF2Iterations,
		KeyLen:     KeySize,
	}
}

// DefaultArgon2Params returns sane defaults for deriving a 256-bit key.
func DefaultArgon2Params() KDFParams {
	return KDFParams{
		Name:        KDFArgon2id,
		MemoryMB:    64,
		Time:        3,
		Parallelism: 1,
		KeyLen:      KeySize,
	}
}

// Validate checks the parameters without deriving anything.
func (p KDFParams) Validate() error {
	if p.KeyLen <= 0 {
		return fmt.Errorf("%w: key length must be positive", ErrInvalidInput)
	}
	switch p.Name {
	case KDFPBKDF2:
		if p.Iterations < MinPBKDF2Iterations {
			return fmt.Errorf("%w: pbkdf2 requires at least %d iterations, got %d", ErrInvalidInput, MinPBKDF2Iterations, p.Iterations)
		}
	case KDFArgon2id:
		if p.MemoryMB == 0 {
			return fmt.Errorf("%w: memory parameter must be positive", ErrInvalidInput)
		}
		if p.Time == 0 {
			return fmt.Errorf("%w: time parameter must be positive", ErrInvalidInput)
		}
		if p.Parallelism == 0 {
			return fmt.Errorf("%w: parallelism must be positive", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unsupported kdf %q", ErrInvalidInput, p.Name)
	}
	return nil
}

// DeriveKey derives key material from secret and salt with the function named by p.
// The result is a pure function of its inputs.
func DeriveKey(secret, salt []byte, p KDFParams) ([]byte, error) {
	if err := checkSecretAndSalt(secret, salt); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	switch p.Name {
	case KDFArgon2id:
		return argon2.IDKey(secret, salt, p.Time, p.MemoryMB*1024, p.Parallelism, uint32(p.KeyLen)), nil
	default:
		return pbkdf2.Key(secret, salt, p.Iterations, p.KeyLen, sha256.New), nil
	}
}

// DerivePBKDF2 derives a key with PBKDF2-HMAC-SHA256.
func DerivePBKDF2(secret, salt []byte, iterations, keyLen int) ([]byte, error) {
	return DeriveKey(secret, salt, KDFParams{Name: KDFPBKDF2, Iterations: iterations, KeyLen: keyLen})
}

// DeriveArgon2id derives a key using Argon2id with the provided cost parameters.
func DeriveArgon2id(secret, salt []byte, memoryMB, time uint32, parallelism uint8, keyLen int) ([]byte, error) {
	return DeriveKey(secret, salt, KDFParams{
		Name:        KDFArgon2id,
		MemoryMB:    memoryMB,
		Time:        time,
		Parallelism: parallelism,
		KeyLen:      keyLen,
	})
}

func checkSecretAndSalt(secret, salt []byte) error {
	if len(secret) == 0 {
		return fmt.Errorf("%w: master secret is required", ErrInvalidInput)
	}
	if len(salt) < SaltSize {
		return fmt.Errorf("%w: salt must be at least %d bytes, got %d", ErrInvalidInput, SaltSize, len(salt))
	}
	return nil
}

// NewRandomSalt returns a cryptographically secure random salt of length n bytes.
// Lengths below SaltSize are raised to SaltSize.
func NewRandomSalt(n int) ([]byte, error) {
	if n < SaltSize {
		n = SaltSize
	}
	salt := make([]byte, n)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}
