package vault

import (
	"fmt"

	"github.com/Hussein-Mazeh/credvault/internal/secret"
	"github.com/Hussein-Mazeh/credvault/krypto"
)

const entryAADPrefix = "credvault/entry/v1:"

// EntryKeyInfo is the HKDF info string that separates the entry-sealing key
// from the raw KDF output.
const EntryKeyInfo = "entry-key-v1"

// entryAAD binds a sealed password to the site it was stored under, so a
// blob copied onto another entry fails authentication.
func entryAAD(site string) []byte {
	return []byte(entryAADPrefix + site)
}

// SealPassword encrypts a plaintext password for the given site.
//
// Args:
//
//	c: cipher keyed with the session's entry key.
//	site: site identifier, authenticated as associated data.
//	plaintext: secret to store.
//
// Returns:
//
//	blob: nonce || ciphertext || tag.
//	err: non-nil when nonce generation fails.
func SealPassword(c krypto.Cipher, site, plaintext string) ([]byte, error) {
	pt := []byte(plaintext)
	defer secret.Wipe(pt)

	blob, err := c.Seal(pt, entryAAD(site))
	if err != nil {
		return nil, fmt.Errorf("encrypt entry password: %w", err)
	}
	return blob, nil
}

// OpenPassword authenticates and decrypts a blob produced by SealPassword.
// A wrong key, tampered blob or mismatched site all yield ErrIntegrity.
func OpenPassword(c krypto.Cipher, site string, blob []byte) (string, error) {
	pt, err := c.Open(blob, entryAAD(site))
	if err != nil {
		return "", fmt.Errorf("decrypt entry password: %w", err)
	}
	defer secret.Wipe(pt)
	return string(pt), nil
}
