package krypto_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hussein-Mazeh/credvault/krypto"
)

func fastPBKDF2() krypto.KDFParams {
	return krypto.KDFParams{Name: krypto.KDFPBKDF2, Iterations: krypto.MinPBKDF2Iterations, KeyLen: krypto.KeySize}
}

func fastArgon2() krypto.KDFParams {
	return krypto.KDFParams{Name: krypto.KDFArgon2id, MemoryMB: 8, Time: 1, Parallelism: 1, KeyLen: krypto.KeySize}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	salt := bytes.Repeat([]byte{0x42}, krypto.SaltSize)

	for _, params := range []krypto.KDFParams{fastPBKDF2(), fastArgon2()} {
		t.Run(params.Name, func(t *testing.T) {
			first, err := krypto.DeriveKey([]byte("correct-horse"), salt, params)
			require.NoError(t, err)
			second, err := krypto.DeriveKey([]byte("correct-horse"), salt, params)
			require.NoError(t, err)

			assert.Len(t, first, krypto.KeySize)
			assert.Equal(t, first, second)
		})
	}
}

func TestDeriveKeyIndependentInputs(t *testing.T) {
	saltA := bytes.Repeat([]byte{0x01}, krypto.SaltSize)
	saltB := bytes.Repeat([]byte{0x02}, krypto.SaltSize)
	params := fastPBKDF2()

	base, err := krypto.DeriveKey([]byte("secret"), saltA, params)
	require.NoError(t, err)

	otherSecret, err := krypto.DeriveKey([]byte("Secret"), saltA, params)
	require.NoError(t, err)
	otherSalt, err := krypto.DeriveKey([]byte("secret"), saltB, params)
	require.NoError(t, err)

	assert.NotEqual(t, base, otherSecret)
	assert.NotEqual(t, base, otherSalt)
}

func TestDerivePBKDF2MatchesDeriveKey(t *testing.T) {
	salt := []byte("0123456789abcdef")
	a, err := krypto.DerivePBKDF2([]byte("password"), salt, krypto.MinPBKDF2Iterations, 32)
	require.NoError(t, err)
	b, err := krypto.DeriveKey([]byte("password"), salt, fastPBKDF2())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDeriveKeyRejectsInvalidInput(t *testing.T) {
	goodSalt := make([]byte, krypto.SaltSize)

	tests := []struct {
		name   string
		secret []byte
		salt   []byte
		params krypto.KDFParams
	}{
		{"empty secret", nil, goodSalt, fastPBKDF2()},
		{"short salt", []byte("pw"), make([]byte, krypto.SaltSize-1), fastPBKDF2()},
		{"too few iterations", []byte("pw"), goodSalt, krypto.KDFParams{Name: krypto.KDFPBKDF2, Iterations: 99999, KeyLen: 32}},
		{"zero key length", []byte("pw"), goodSalt, krypto.KDFParams{Name: krypto.KDFPBKDF2, Iterations: krypto.MinPBKDF2Iterations}},
		{"unknown kdf", []byte("pw"), goodSalt, krypto.KDFParams{Name: "md5", KeyLen: 32}},
		{"argon2 zero memory", []byte("pw"), goodSalt, krypto.KDFParams{Name: krypto.KDFArgon2id, Time: 1, Parallelism: 1, KeyLen: 32}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := krypto.DeriveKey(tc.secret, tc.salt, tc.params)
			assert.ErrorIs(t, err, krypto.ErrInvalidInput)
		})
	}
}

func TestNewRandomSalt(t *testing.T) {
	a, err := krypto.NewRandomSalt(0)
	require.NoError(t, err)
	assert.Len(t, a, krypto.SaltSize)

	b, err := krypto.NewRandomSalt(32)
	require.NoError(t, err)
	assert.Len(t, b, 32)

	c, err := krypto.NewRandomSalt(krypto.SaltSize)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestDeriveSubkey(t *testing.T) {
	key := bytes.Repeat([]byte{7}, 32)

	a, err := krypto.DeriveSubkey(key, []byte("salt"), []byte("entry-key-v1"), 32)
	require.NoError(t, err)
	b, err := krypto.DeriveSubkey(key, []byte("salt"), []byte("entry-key-v1"), 32)
	require.NoError(t, err)
	c, err := krypto.DeriveSubkey(key, []byte("salt"), []byte("other"), 32)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, key, a)

	_, err = krypto.DeriveSubkey(nil, nil, nil, 32)
	assert.ErrorIs(t, err, krypto.ErrInvalidInput)
	_, err = krypto.DeriveSubkey(key, nil, nil, 0)
	assert.ErrorIs(t, err, krypto.ErrInvalidInput)
}
