package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Hussein-Mazeh/credvault/internal/vault"
	"github.com/Hussein-Mazeh/credvault/store"
)

// EntryRow represents a credential row retrieved from storage.
type EntryRow struct {
	Site          string
	Username      string
	EncryptedPass []byte
	CreatedAt     string
	UpdatedAt     string
}

// Backend keeps a vault in a SQLite database with one row per entry.
// The database is opened lazily so Load on a missing file does not create it.
type Backend struct {
	path string
	db   *DB
}

// NewBackend binds a SQLite backend to path.
func NewBackend(path string) (*Backend, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	return &Backend{path: path}, nil
}

func (b *Backend) Path() string { return b.path }
func (b *Backend) Kind() string { return store.KindSQLite }

// Close releases the database handle if one was opened.
func (b *Backend) Close() error {
	err := Close(b.db)
	b.db = nil
	return err
}

func (b *Backend) handle() (*DB, error) {
	if b.db != nil {
		return b.db, nil
	}
	d, err := Open(b.path)
	if err != nil {
		return nil, err
	}
	if err := Migrate(d); err != nil {
		Close(d)
		return nil, err
	}
	b.db = d
	return d, nil
}

// Load reads the header row and every entry.
func (b *Backend) Load() (vault.Document, error) {
	if _, err := os.Stat(b.path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return vault.Document{}, store.ErrVaultNotFound
		}
		return vault.Document{}, fmt.Errorf("stat vault database: %w", err)
	}

	d, err := b.handle()
	if err != nil {
		return vault.Document{}, fmt.Errorf("%w: %v", vault.ErrCorrupt, err)
	}

	hdr, err := loadHeader(d)
	if err != nil {
		return vault.Document{}, err
	}
	rows, err := ListEntries(d)
	if err != nil {
		return vault.Document{}, fmt.Errorf("%w: %v", vault.ErrCorrupt, err)
	}

	doc := vault.Document{Header: hdr, Entries: make([]vault.Entry, 0, len(rows))}
	for _, r := range rows {
		e, err := r.entry()
		if err != nil {
			return vault.Document{}, err
		}
		doc.Entries = append(doc.Entries, e)
	}
	return doc, nil
}

func loadHeader(d *DB) (vault.Header, error) {
	var (
		hdr              vault.Header
		kdf              string
		created, updated string
	)
	err := d.sql.QueryRow(
		`SELECT version, vault_id, salt, kdf, cipher, created_at, updated_at FROM vault_meta WHERE id = 1`,
	).Scan(&hdr.Version, &hdr.ID, &hdr.Salt, &kdf, &hdr.Cipher, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return hdr, fmt.Errorf("%w: vault metadata missing", vault.ErrCorrupt)
		}
		return hdr, fmt.Errorf("%w: select vault metadata: %v", vault.ErrCorrupt, err)
	}

	if err := json.Unmarshal([]byte(kdf), &hdr.KDF); err != nil {
		return hdr, fmt.Errorf("%w: decode kdf config: %v", vault.ErrCorrupt, err)
	}
	if hdr.CreatedAt, err = parseTime(created); err != nil {
		return hdr, err
	}
	if hdr.UpdatedAt, err = parseTime(updated); err != nil {
		return hdr, err
	}
	if err := hdr.Validate(); err != nil {
		return hdr, err
	}
	return hdr, nil
}

// ListEntries returns every entry row ordered by site.
func ListEntries(d *DB) ([]EntryRow, error) {
	if d == nil || d.sql == nil {
		return nil, fmt.Errorf("database handle is nil")
	}

	rows, err := d.sql.Query(
		`SELECT site, username, encrypted_pass, created_at, updated_at
		 FROM entries
		 ORDER BY site`,
	)
	if err != nil {
		return nil, fmt.Errorf("select entries: %w", err)
	}
	defer rows.Close()

	var results []EntryRow
	for rows.Next() {
		var r EntryRow
		if err := rows.Scan(&r.Site, &r.Username, &r.EncryptedPass, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan entry row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entry rows: %w", err)
	}
	return results, nil
}

func (r EntryRow) entry() (vault.Entry, error) {
	if len(r.EncryptedPass) == 0 {
		return vault.Entry{}, fmt.Errorf("%w: entry %q has no password blob", vault.ErrCorrupt, r.Site)
	}
	created, err := parseTime(r.CreatedAt)
	if err != nil {
		return vault.Entry{}, err
	}
	updated, err := parseTime(r.UpdatedAt)
	if err != nil {
		return vault.Entry{}, err
	}
	return vault.Entry{
		Site:      r.Site,
		Username:  r.Username,
		Password:  r.EncryptedPass,
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}

// Save replaces the stored snapshot inside a single transaction.
func (b *Backend) Save(doc vault.Document) error {
	kdf, err := json.Marshal(doc.Header.KDF)
	if err != nil {
		return fmt.Errorf("encode kdf config: %w", err)
	}

	d, err := b.handle()
	if err != nil {
		return err
	}

	tx, err := d.sql.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO vault_meta (id, version, vault_id, salt, kdf, cipher, created_at, updated_at)
		 VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   version = excluded.version, vault_id = excluded.vault_id, salt = excluded.salt,
		   kdf = excluded.kdf, cipher = excluded.cipher,
		   created_at = excluded.created_at, updated_at = excluded.updated_at`,
		doc.Header.Version, doc.Header.ID, doc.Header.Salt, string(kdf), doc.Header.Cipher,
		formatTime(doc.Header.CreatedAt), formatTime(doc.Header.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert vault metadata: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM entries`); err != nil {
		return fmt.Errorf("clear entries: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO entries (site, username, encrypted_pass, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range doc.Entries {
		if e.Site == "" {
			return fmt.Errorf("%w: entry without site", vault.ErrInvalidInput)
		}
		if _, err := stmt.Exec(e.Site, e.Username, e.Password, formatTime(e.CreatedAt), formatTime(e.UpdatedAt)); err != nil {
			return fmt.Errorf("insert entry %q: %w", e.Site, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit vault: %w", err)
	}
	return EnsurePerm0600(b.path)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad timestamp %q", vault.ErrCorrupt, s)
	}
	return t, nil
}
