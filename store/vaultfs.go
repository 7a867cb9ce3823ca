package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Hussein-Mazeh/credvault/internal/vault"
)

// FileBackend stores the vault as a single JSON document.
type FileBackend struct {
	path string
}

// NewFileBackend binds a backend to path. Nothing is created until Save.
func NewFileBackend(path string) (*FileBackend, error) {
	if path == "" {
		return nil, errors.New("vault path not specified")
	}
	return &FileBackend{path: path}, nil
}

func (b *FileBackend) Path() string { return b.path }
func (b *FileBackend) Kind() string { return KindFile }
func (b *FileBackend) Close() error { return nil }

// Load reads and decodes the vault file.
func (b *FileBackend) Load() (vault.Document, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return vault.Document{}, ErrVaultNotFound
		}
		return vault.Document{}, fmt.Errorf("read vault: %w", err)
	}
	return vault.DecodeDocument(data)
}

// Save encodes doc and atomically replaces the vault file.
func (b *FileBackend) Save(doc vault.Document) error {
	data, err := vault.EncodeDocument(doc)
	if err != nil {
		return err
	}
	return WriteFileAtomic(b.path, data)
}

// WriteFileAtomic writes data to a temp file beside path and renames it
// over path, so readers see either the old or the new contents.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create vault directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp vault: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp vault: %w", err)
	}

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp vault: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp vault: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp vault: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace vault: %w", err)
	}

	syncDir(dir)
	return nil
}

// syncDir flushes the rename to disk where the platform allows it.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	d.Close()
}
