package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Hussein-Mazeh/credvault/internal/vault"
)

// Backend kinds accepted by Open.
const (
	KindAuto   = "auto"
	KindFile   = "file"
	KindSQLite = "sqlite"
)

var (
	// ErrVaultNotFound is returned by Load when no vault exists at the path yet.
	ErrVaultNotFound = errors.New("vault not found")
	// ErrUnknownBackend is returned by Open for an unregistered kind.
	ErrUnknownBackend = errors.New("unknown vault backend")
)

// Backend persists whole vault documents. Save must replace the stored
// document atomically: after a failed Save the previous document is intact.
type Backend interface {
	Load() (vault.Document, error)
	Save(doc vault.Document) error
	Path() string
	Kind() string
	Close() error
}

// Opener constructs a backend for path.
type Opener func(path string) (Backend, error)

var (
	openersMu sync.RWMutex
	openers   = map[string]Opener{
		KindFile: func(path string) (Backend, error) { return NewFileBackend(path) },
	}
)

// Register makes a backend kind available to Open.
func Register(kind string, open Opener) {
	openersMu.Lock()
	defer openersMu.Unlock()
	openers[kind] = open
}

// ResolveKind maps KindAuto onto a concrete kind from the file extension.
func ResolveKind(path, kind string) string {
	if kind != "" && kind != KindAuto {
		return kind
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return KindSQLite
	default:
		return KindFile
	}
}

// Open returns the backend for path.
func Open(path, kind string) (Backend, error) {
	if path == "" {
		return nil, errors.New("vault path not specified")
	}
	kind = ResolveKind(path, kind)

	openersMu.RLock()
	open, ok := openers[kind]
	openersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, kind)
	}
	return open(path)
}
