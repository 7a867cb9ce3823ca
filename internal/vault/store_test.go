package vault_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hussein-Mazeh/credvault/internal/vault"
	"github.com/Hussein-Mazeh/credvault/krypto"
)

func newCipher(t *testing.T, b byte) krypto.Cipher {
	t.Helper()
	c, err := krypto.NewCipher(krypto.CipherAESGCM, bytes.Repeat([]byte{b}, krypto.KeySize))
	require.NoError(t, err)
	return c
}

func testHeader(t *testing.T) vault.Header {
	t.Helper()
	h, err := vault.NewHeader(krypto.KDFParams{Name: krypto.KDFPBKDF2, Iterations: krypto.MinPBKDF2Iterations, KeyLen: 32}, krypto.CipherAESGCM)
	require.NoError(t, err)
	return h
}

func TestPutGet(t *testing.T) {
	s := vault.NewStore(newCipher(t, 1))
	require.NoError(t, s.Put("example.com", "alice", "s3cret"))

	got, err := s.Get("example.com")
	require.NoError(t, err)
	assert.Equal(t, vault.Credential{Site: "example.com", Username: "alice", Password: "s3cret"}, got)
	assert.True(t, s.Dirty())
}

func TestPutOverwrites(t *testing.T) {
	s := vault.NewStore(newCipher(t, 1))
	require.NoError(t, s.Put("x", "u1", "p1"))
	first := s.Entries()[0]

	require.NoError(t, s.Put("x", "u2", "p2"))

	got, err := s.Get("x")
	require.NoError(t, err)
	assert.Equal(t, "u2", got.Username)
	assert.Equal(t, "p2", got.Password)
	assert.Equal(t, 1, s.Len())

	second := s.Entries()[0]
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.NotEqual(t, first.Password, second.Password)
}

func TestPutSamePasswordYieldsDifferentBlobs(t *testing.T) {
	s := vault.NewStore(newCipher(t, 1))
	require.NoError(t, s.Put("x", "u", "same"))
	a := s.Entries()[0].Password
	require.NoError(t, s.Put("x", "u", "same"))
	b := s.Entries()[0].Password
	assert.NotEqual(t, a, b)
}

func TestGetErrors(t *testing.T) {
	s := vault.NewStore(newCipher(t, 1))

	_, err := s.Get("missing.com")
	assert.ErrorIs(t, err, vault.ErrNotFound)

	_, err = s.Get("")
	assert.ErrorIs(t, err, vault.ErrInvalidInput)

	assert.ErrorIs(t, s.Put("", "u", "p"), vault.ErrInvalidInput)
}

func TestPutRejectsInvalidUTF8(t *testing.T) {
	s := vault.NewStore(newCipher(t, 1))

	assert.ErrorIs(t, s.Put("bank\xff.com", "bob", "hunter2"), vault.ErrInvalidInput)
	assert.ErrorIs(t, s.Put("bank.com", "bob\xfe", "hunter2"), vault.ErrInvalidInput)
	assert.Zero(t, s.Len())
	assert.False(t, s.Dirty())

	require.NoError(t, s.Put("bänk.com", "bøb", "hunter2\xff"))
	data, err := s.Serialize(testHeader(t))
	require.NoError(t, err)
	back, _, err := vault.Deserialize(newCipher(t, 1), data)
	require.NoError(t, err)
	cred, err := back.Get("bänk.com")
	require.NoError(t, err)
	assert.Equal(t, "bøb", cred.Username)
	assert.Equal(t, "hunter2\xff", cred.Password)
}

func TestGetWithWrongKeyIsIntegrityError(t *testing.T) {
	s := vault.NewStore(newCipher(t, 1))
	require.NoError(t, s.Put("bank.com", "bob", "hunter2"))

	other, err := vault.LoadStore(newCipher(t, 2), s.Entries())
	require.NoError(t, err)

	_, err = other.Get("bank.com")
	assert.ErrorIs(t, err, vault.ErrIntegrity)
	assert.NotErrorIs(t, err, vault.ErrNotFound)
}

func TestSwappedBlobIsIntegrityError(t *testing.T) {
	s := vault.NewStore(newCipher(t, 1))
	require.NoError(t, s.Put("a.com", "u", "pa"))
	require.NoError(t, s.Put("b.com", "u", "pb"))

	entries := s.Entries()
	entries[0].Password, entries[1].Password = entries[1].Password, entries[0].Password

	swapped, err := vault.LoadStore(newCipher(t, 1), entries)
	require.NoError(t, err)

	_, err = swapped.Get("a.com")
	assert.ErrorIs(t, err, vault.ErrIntegrity)
}

func TestDelete(t *testing.T) {
	s := vault.NewStore(newCipher(t, 1))
	require.NoError(t, s.Put("x", "u", "p"))
	s.MarkClean()

	require.NoError(t, s.Delete("x"))
	assert.True(t, s.Dirty())
	assert.Zero(t, s.Len())

	_, err := s.Get("x")
	assert.ErrorIs(t, err, vault.ErrNotFound)
	assert.ErrorIs(t, s.Delete("x"), vault.ErrNotFound)
}

func TestListIsLexicographic(t *testing.T) {
	s := vault.NewStore(newCipher(t, 1))
	for _, site := range []string{"zeta.io", "alpha.com", "Mid.org", "beta.net"} {
		require.NoError(t, s.Put(site, "u", "p"))
	}
	assert.Equal(t, []string{"Mid.org", "alpha.com", "beta.net", "zeta.io"}, s.List())
}

func TestSerializeRoundTrip(t *testing.T) {
	c := newCipher(t, 5)
	s := vault.NewStore(c)
	want := map[string]vault.Credential{
		"bank.com":    {Site: "bank.com", Username: "bob", Password: "hunter2"},
		"example.com": {Site: "example.com", Username: "alice", Password: "s3cret"},
		"empty.pw":    {Site: "empty.pw", Username: "", Password: ""},
	}
	for _, cred := range want {
		require.NoError(t, s.Put(cred.Site, cred.Username, cred.Password))
	}
	h := testHeader(t)

	data, err := s.Serialize(h)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hunter2")
	assert.Contains(t, string(data), "bob")

	restored, header, err := vault.Deserialize(c, data)
	require.NoError(t, err)
	assert.Equal(t, h.ID, header.ID)
	assert.Equal(t, h.Salt, header.Salt)
	assert.Equal(t, s.List(), restored.List())
	assert.False(t, restored.Dirty())

	for site, cred := range want {
		got, err := restored.Get(site)
		require.NoError(t, err)
		assert.Equal(t, cred, got)
	}
}

func TestRekey(t *testing.T) {
	old := newCipher(t, 1)
	next := newCipher(t, 2)
	s := vault.NewStore(old)
	require.NoError(t, s.Put("a.com", "u", "pa"))
	require.NoError(t, s.Put("b.com", "u", "pb"))
	s.MarkClean()

	require.NoError(t, s.Rekey(next))
	assert.True(t, s.Dirty())

	got, err := s.Get("b.com")
	require.NoError(t, err)
	assert.Equal(t, "pb", got.Password)

	stale, err := vault.LoadStore(old, s.Entries())
	require.NoError(t, err)
	_, err = stale.Get("a.com")
	assert.ErrorIs(t, err, vault.ErrIntegrity)
}

func TestRekeyLeavesStoreUntouchedOnFailure(t *testing.T) {
	good := newCipher(t, 1)
	s := vault.NewStore(good)
	require.NoError(t, s.Put("a.com", "u", "pa"))

	broken, err := vault.LoadStore(newCipher(t, 9), s.Entries())
	require.NoError(t, err)
	before := broken.Entries()

	err = broken.Rekey(newCipher(t, 3))
	assert.ErrorIs(t, err, vault.ErrIntegrity)
	assert.Equal(t, before, broken.Entries())
}

func TestLoadStoreRejectsDuplicates(t *testing.T) {
	_, err := vault.LoadStore(newCipher(t, 1), []vault.Entry{{Site: "a", Password: []byte{1}}, {Site: "a", Password: []byte{2}}})
	assert.ErrorIs(t, err, vault.ErrCorrupt)
}
