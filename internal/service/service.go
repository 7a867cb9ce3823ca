// Package service is the composition root of pm: a Session owns the key
// material, the credential store and the storage backend of one unlocked vault.
package service

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Hussein-Mazeh/credvault/auth"
	"github.com/Hussein-Mazeh/credvault/internal/secret"
	"github.com/Hussein-Mazeh/credvault/internal/vault"
	"github.com/Hussein-Mazeh/credvault/krypto"
	"github.com/Hussein-Mazeh/credvault/store"

	// registers the sqlite backend with store.Open
	_ "github.com/Hussein-Mazeh/credvault/internal/db"
)

// Options controls how Unlock opens a vault. KDF and Cipher only apply
// when the vault does not exist yet.
type Options struct {
	Backend string
	KDF     krypto.KDFParams
	Cipher  string
	Lock    bool
	Logger  *zap.Logger
}

// DefaultOptions returns PBKDF2 with the default work factor, AES-256-GCM,
// backend picked from the file extension and locking enabled.
func DefaultOptions() Options {
	return Options{
		Backend: store.KindAuto,
		KDF:     krypto.DefaultPBKDF2Params(),
		Cipher:  krypto.CipherAESGCM,
		Lock:    true,
	}
}

// Session is one unlocked vault. It is not safe for concurrent use by
// multiple goroutines beyond what Close tolerates.
type Session struct {
	mu sync.Mutex

	path    string
	backend store.Backend
	lock    store.Lock
	log     *zap.Logger

	header vault.Header
	store  *vault.Store
	master *secret.Buffer
	key    *secret.Buffer
	isNew  bool
	closed bool

	// verified is set once a stored entry opened under key
	verified bool
}

// Info summarises the unlocked vault without exposing secrets.
type Info struct {
	ID           string
	Path         string
	Backend      string
	KDF          vault.KDFConfig
	Cipher       string
	Entries      int
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Dirty        bool
	New          bool
	MemoryLocked bool
}

// Unlock opens the vault at path with masterSecret, creating an empty vault
// in memory when none exists. masterSecret is zeroed before Unlock returns.
//
// A present but undecodable vault fails with ErrUnlock. A wrong secret is not
// detected here; it surfaces as ErrIntegrity on the first RetrieveEntry,
// AddEntry or DeleteEntry.
func Unlock(masterSecret []byte, path string, opts Options) (*Session, error) {
	const op = "unlock"
	defer secret.Wipe(masterSecret)

	if len(masterSecret) == 0 {
		return nil, newError(op, ErrInvalidInput, errors.New("master secret is required"))
	}
	if opts.KDF.Name == "" {
		opts.KDF = krypto.DefaultPBKDF2Params()
	}
	if opts.KDF.KeyLen == 0 {
		opts.KDF.KeyLen = krypto.KeySize
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	s := &Session{path: path, lock: store.NoLock(), log: log}
	ok := false
	defer func() {
		if !ok {
			s.release()
		}
	}()

	if opts.Lock {
		l, err := store.AcquireLock(path)
		if err != nil {
			return nil, newError(op, ErrUnlock, err)
		}
		s.lock = l
	}

	backend, err := store.Open(path, opts.Backend)
	if err != nil {
		return nil, newError(op, ErrUnlock, err)
	}
	s.backend = backend

	doc, err := backend.Load()
	switch {
	case errors.Is(err, store.ErrVaultNotFound):
		h, herr := vault.NewHeader(opts.KDF, opts.Cipher)
		if herr != nil {
			return nil, newError(op, ErrInvalidInput, herr)
		}
		doc = vault.Document{Header: h}
		s.isNew = true
	case err != nil:
		return nil, newError(op, ErrUnlock, err)
	}
	s.header = doc.Header

	c, keyBuf, err := entryCipher(masterSecret, s.header)
	if err != nil {
		return nil, newError(op, ErrUnlock, err)
	}
	s.key = keyBuf

	st, err := vault.LoadStore(c, doc.Entries)
	if err != nil {
		return nil, newError(op, ErrUnlock, err)
	}
	s.store = st

	master, err := secret.NewFromBytes(masterSecret)
	if err != nil {
		return nil, newError(op, ErrInvalidInput, err)
	}
	s.master = master

	ok = true
	log.Info("vault unlocked",
		zap.String("path", path),
		zap.String("vault_id", s.header.ID),
		zap.String("backend", backend.Kind()),
		zap.Int("entries", st.Len()),
		zap.Bool("new", s.isNew),
		zap.Bool("mlock", keyBuf.Locked()),
	)
	return s, nil
}

// entryCipher derives the vault key from secret and h, then the entry
// subkey, and returns a cipher keyed with the subkey held in a secret.Buffer.
func entryCipher(masterSecret []byte, h vault.Header) (krypto.Cipher, *secret.Buffer, error) {
	key, err := krypto.DeriveKey(masterSecret, h.Salt, h.KDF.Params())
	if err != nil {
		return nil, nil, fmt.Errorf("derive key: %w", err)
	}
	defer secret.Wipe(key)

	sub, err := krypto.DeriveSubkey(key, h.Salt, []byte(vault.EntryKeyInfo), krypto.KeySize)
	if err != nil {
		return nil, nil, fmt.Errorf("derive entry key: %w", err)
	}
	buf, err := secret.NewFromBytes(sub)
	if err != nil {
		return nil, nil, err
	}

	c, err := krypto.NewCipher(h.Cipher, buf.Bytes())
	if err != nil {
		buf.Close()
		return nil, nil, err
	}
	return c, buf, nil
}

func (s *Session) check(op string) error {
	if s.closed {
		return newError(op, ErrClosed, nil)
	}
	return nil
}

// VerifyKey opens one stored entry to confirm the session key matches the
// vault. A vault without entries cannot be checked and always passes.
func (s *Session) VerifyKey() error {
	const op = "verify"
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(op); err != nil {
		return err
	}
	return s.verifyKey(op)
}

func (s *Session) verifyKey(op string) error {
	if s.verified {
		return nil
	}
	sites := s.store.List()
	if len(sites) == 0 {
		return nil
	}
	if _, err := s.store.Get(sites[0]); err != nil {
		if errors.Is(err, ErrIntegrity) {
			s.log.Warn("master secret does not open the vault", zap.String("vault_id", s.header.ID))
		}
		return classify(op, err)
	}
	s.verified = true
	return nil
}

// AddEntry stores or replaces the credential for site. It fails with
// ErrIntegrity when the session key does not open the existing entries.
func (s *Session) AddEntry(site, username, password string) error {
	const op = "add"
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(op); err != nil {
		return err
	}
	if err := s.verifyKey(op); err != nil {
		return err
	}
	if err := s.store.Put(site, username, password); err != nil {
		return classify(op, err)
	}
	s.log.Debug("entry stored", zap.String("site", site))
	return nil
}

// RetrieveEntry decrypts the credential stored for site.
func (s *Session) RetrieveEntry(site string) (vault.Credential, error) {
	const op = "get"
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(op); err != nil {
		return vault.Credential{}, err
	}
	cred, err := s.store.Get(site)
	if err != nil {
		if errors.Is(err, ErrIntegrity) {
			s.log.Warn("entry failed authentication", zap.String("site", site), zap.String("vault_id", s.header.ID))
		}
		return vault.Credential{}, classify(op, err)
	}
	s.verified = true
	return cred, nil
}

// DeleteEntry removes the credential for site, after the same key check
// as AddEntry.
func (s *Session) DeleteEntry(site string) error {
	const op = "delete"
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(op); err != nil {
		return err
	}
	if err := s.verifyKey(op); err != nil {
		return err
	}
	if err := s.store.Delete(site); err != nil {
		return classify(op, err)
	}
	s.log.Debug("entry deleted", zap.String("site", site))
	return nil
}

// ListEntries returns the stored site identifiers in lexicographic order.
func (s *Session) ListEntries() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("list"); err != nil {
		return nil, err
	}
	return s.store.List(), nil
}

// GeneratePassword returns a CSPRNG password of the given length.
func (s *Session) GeneratePassword(length int, useSymbols bool) (string, error) {
	const op = "generate"
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(op); err != nil {
		return "", err
	}
	pw, err := auth.GeneratePassword(length, useSymbols)
	if err != nil {
		return "", newError(op, ErrInvalidInput, err)
	}
	return pw, nil
}

// Persist writes the vault through the backend. On failure the stored vault
// is left as it was and the session keeps its unsaved changes.
func (s *Session) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("persist"); err != nil {
		return err
	}
	return s.persist()
}

func (s *Session) persist() error {
	h := s.header
	h.UpdatedAt = time.Now().UTC()
	if err := s.backend.Save(vault.Document{Header: h, Entries: s.store.Entries()}); err != nil {
		s.log.Error("persist failed", zap.String("path", s.path), zap.Error(err))
		return newError("persist", ErrPersist, err)
	}
	s.header = h
	s.store.MarkClean()
	s.isNew = false
	s.log.Info("vault persisted",
		zap.String("path", s.path),
		zap.String("vault_id", s.header.ID),
		zap.Int("entries", s.store.Len()),
	)
	return nil
}

// ChangeMaster re-encrypts every entry under a key derived from newSecret
// and a fresh salt, then persists. newSecret is zeroed. If any step fails
// the session keeps the previous key and entries.
func (s *Session) ChangeMaster(newSecret []byte) error {
	const op = "passwd"
	defer secret.Wipe(newSecret)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(op); err != nil {
		return err
	}
	if len(newSecret) == 0 {
		return newError(op, ErrInvalidInput, errors.New("new master secret is required"))
	}

	salt, err := krypto.NewRandomSalt(krypto.SaltSize)
	if err != nil {
		return newError(op, ErrInvalidInput, err)
	}
	next := s.header
	next.Salt = salt

	c, keyBuf, err := entryCipher(newSecret, next)
	if err != nil {
		return newError(op, ErrInvalidInput, err)
	}

	prevHeader, prevCipher := s.header, s.store.Cipher()
	if err := s.store.Rekey(c); err != nil {
		keyBuf.Close()
		return classify(op, err)
	}
	s.header = next

	if err := s.persist(); err != nil {
		if rerr := s.store.Rekey(prevCipher); rerr != nil {
			s.log.Error("rollback after failed rekey", zap.Error(rerr))
		}
		s.header = prevHeader
		keyBuf.Close()
		return err
	}

	master, err := secret.NewFromBytes(newSecret)
	if err != nil {
		keyBuf.Close()
		return newError(op, ErrInvalidInput, err)
	}
	s.key.Close()
	s.master.Close()
	s.key, s.master = keyBuf, master

	s.log.Info("master secret changed", zap.String("vault_id", s.header.ID), zap.Int("entries", s.store.Len()))
	return nil
}

// VerifyMaster reports whether candidate equals the secret the session was
// unlocked with. candidate is zeroed.
func (s *Session) VerifyMaster(candidate []byte) (bool, error) {
	defer secret.Wipe(candidate)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("verify"); err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(candidate, s.master.Bytes()) == 1, nil
}

// Dirty reports unsaved changes. A closed session reports false.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.store.Dirty()
}

// Entries returns the sealed entries for inspection; no blob is opened.
func (s *Session) Entries() ([]vault.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("entries"); err != nil {
		return nil, err
	}
	return s.store.Entries(), nil
}

// Info returns the header summary of the vault.
func (s *Session) Info() (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("info"); err != nil {
		return Info{}, err
	}
	return Info{
		ID:           s.header.ID,
		Path:         s.path,
		Backend:      s.backend.Kind(),
		KDF:          s.header.KDF,
		Cipher:       s.header.Cipher,
		Entries:      s.store.Len(),
		CreatedAt:    s.header.CreatedAt,
		UpdatedAt:    s.header.UpdatedAt,
		Dirty:        s.store.Dirty(),
		New:          s.isNew,
		MemoryLocked: s.key.Locked(),
	}, nil
}

// Close zeroes the key material, releases the lock and closes the backend.
// Unsaved changes are discarded. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.store != nil && s.store.Dirty() {
		s.log.Warn("closing with unsaved changes", zap.String("path", s.path))
	}
	err := s.release()
	s.log.Info("vault closed", zap.String("path", s.path))
	return err
}

func (s *Session) release() error {
	var errs []error
	if s.key != nil {
		errs = append(errs, s.key.Close())
	}
	if s.master != nil {
		errs = append(errs, s.master.Close())
	}
	if s.backend != nil {
		errs = append(errs, s.backend.Close())
	}
	if s.lock != nil {
		errs = append(errs, s.lock.Release())
	}
	s.store = nil
	return errors.Join(errs...)
}
