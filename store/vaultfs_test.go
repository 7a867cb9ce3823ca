package store_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hussein-Mazeh/credvault/internal/vault"
	"github.com/Hussein-Mazeh/credvault/krypto"
	"github.com/Hussein-Mazeh/credvault/store"
)

func testDocument(t *testing.T) vault.Document {
	t.Helper()
	h, err := vault.NewHeader(krypto.KDFParams{Name: krypto.KDFPBKDF2, Iterations: krypto.MinPBKDF2Iterations, KeyLen: 32}, "")
	require.NoError(t, err)
	return vault.Document{
		Header:  h,
		Entries: []vault.Entry{{Site: "bank.com", Username: "bob", Password: []byte("sealed-blob-bytes")}},
	}
}

func TestFileBackendLoadMissing(t *testing.T) {
	b, err := store.NewFileBackend(filepath.Join(t.TempDir(), "vault.json"))
	require.NoError(t, err)

	_, err = b.Load()
	assert.ErrorIs(t, err, store.ErrVaultNotFound)
}

func TestFileBackendSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "vault.json")
	b, err := store.NewFileBackend(path)
	require.NoError(t, err)

	doc := testDocument(t)
	require.NoError(t, b.Save(doc))

	info, err := os.Stat(path)
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	loaded, err := b.Load()
	require.NoError(t, err)
	assert.Equal(t, doc.Header.ID, loaded.Header.ID)
	assert.Equal(t, doc.Header.Salt, loaded.Header.Salt)
	require.Len(t, loaded.Entries, 1)
	assert.Equal(t, doc.Entries[0].Password, loaded.Entries[0].Password)

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFileBackendCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	b, err := store.NewFileBackend(path)
	require.NoError(t, err)
	_, err = b.Load()
	assert.ErrorIs(t, err, vault.ErrCorrupt)
}

func TestWriteFileAtomicFailureKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault.json")
	require.NoError(t, store.WriteFileAtomic(path, []byte("old contents")))

	// A directory squatting on the target makes the final rename fail.
	blocked := filepath.Join(dir, "blocked")
	require.NoError(t, os.MkdirAll(filepath.Join(blocked, "child"), 0o700))

	err := store.WriteFileAtomic(blocked, []byte("new contents"))
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old contents", string(data))

	matches, err := filepath.Glob(filepath.Join(dir, ".*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.DirExists(t, filepath.Join(blocked, "child"))
}

func TestWriteFileAtomicReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.json")
	require.NoError(t, store.WriteFileAtomic(path, []byte("one")))
	require.NoError(t, store.WriteFileAtomic(path, []byte("two")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))
}

func TestResolveKind(t *testing.T) {
	assert.Equal(t, store.KindFile, store.ResolveKind("vault.json", store.KindAuto))
	assert.Equal(t, store.KindSQLite, store.ResolveKind("vault.db", ""))
	assert.Equal(t, store.KindSQLite, store.ResolveKind("v.SQLite3", store.KindAuto))
	assert.Equal(t, store.KindSQLite, store.ResolveKind("vault.json", store.KindSQLite))
}

func TestOpen(t *testing.T) {
	b, err := store.Open(filepath.Join(t.TempDir(), "vault.json"), store.KindAuto)
	require.NoError(t, err)
	assert.Equal(t, store.KindFile, b.Kind())

	_, err = store.Open(filepath.Join(t.TempDir(), "vault.json"), "s3")
	assert.ErrorIs(t, err, store.ErrUnknownBackend)

	_, err = store.Open("", store.KindFile)
	assert.Error(t, err)
}
