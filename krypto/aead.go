package krypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// CipherAESGCM is AES-256 in Galois/Counter Mode with a 12-byte nonce.
	CipherAESGCM = "aes-256-gcm"
	// CipherXChaCha20 is XChaCha20-Poly1305 with a 24-byte nonce.
	CipherXChaCha20 = "xchacha20-poly1305"
)

// Cipher seals and opens byte strings under a single key.
// Sealed blobs are laid out as nonce || ciphertext || tag.
type Cipher interface {
	Name() string
	Seal(plaintext, aad []byte) ([]byte, error)
	Open(blob, aad []byte) ([]byte, error)
}

type aeadCipher struct {
	name string
	aead cipher.AEAD
}

// NewCipher builds the named AEAD over a 32-byte key.
func NewCipher(name string, key []byte) (Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: cipher requires a %d-byte key, got %d", ErrInvalidInput, KeySize, len(key))
	}

	var (
		aead cipher.AEAD
		err  error
	)
	switch name {
	case CipherAESGCM, "":
		name = CipherAESGCM
		var block cipher.Block
		block, err = aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("create cipher: %w", err)
		}
		aead, err = cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("create gcm: %w", err)
		}
	case CipherXChaCha20:
		aead, err = chacha20poly1305.NewX(key)
		if err != nil {
			return nil, fmt.Errorf("create xchacha20-poly1305: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported cipher %q", ErrInvalidInput, name)
	}

	return &aeadCipher{name: name, aead: aead}, nil
}

// SupportedCipher reports whether name is a cipher NewCipher understands.
func SupportedCipher(name string) bool {
	return name == CipherAESGCM || name == CipherXChaCha20
}

func (c *aeadCipher) Name() string { return c.name }

// Seal encrypts plaintext under a fresh random nonce.
func (c *aeadCipher) Seal(plaintext, aad []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	blob := make([]byte, nonceSize, nonceSize+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(blob); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return c.aead.Seal(blob, blob[:nonceSize], plaintext, aad), nil
}

// Open authenticates and decrypts a blob produced by Seal.
func (c *aeadCipher) Open(blob, aad []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	if len(blob) < nonceSize+c.aead.Overhead() {
		return nil, fmt.Errorf("%w: sealed blob too short", ErrIntegrity)
	}

	plaintext, err := c.aead.Open(nil, blob[:nonceSize], blob[nonceSize:], aad)
	if err != nil {
		return nil, ErrIntegrity
	}
	return plaintext, nil
}

// Encrypt seals plaintext with AES-256-GCM under key.
func Encrypt(key, plaintext []byte) ([]byte, error) {
	c, err := NewCipher(CipherAESGCM, key)
	if err != nil {
		return nil, err
	}
	return c.Seal(plaintext, nil)
}

// Decrypt opens an AES-256-GCM blob produced by Encrypt.
func Decrypt(key, blob []byte) ([]byte, error) {
	c, err := NewCipher(CipherAESGCM, key)
	if err != nil {
		return nil, err
	}
	return c.Open(blob, nil)
}
