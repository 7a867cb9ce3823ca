package vault

import (
	"fmt"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/Hussein-Mazeh/credvault/krypto"
)

// Credential is the decrypted view of an entry.
type Credential struct {
	Site     string
	Username string
	Password string
}

// Store maps site identifiers to sealed entries. It is not safe for
// concurrent use; a session owns exactly one Store.
type Store struct {
	cipher  krypto.Cipher
	entries map[string]Entry
	dirty   bool
	now     func() time.Time
}

// NewStore returns an empty store sealing with c.
func NewStore(c krypto.Cipher) *Store {
	return &Store{
		cipher:  c,
		entries: make(map[string]Entry),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// LoadStore builds a store from already-sealed entries. Blobs are not
// opened here, so a wrong key only surfaces on Get.
func LoadStore(c krypto.Cipher, entries []Entry) (*Store, error) {
	s := NewStore(c)
	for _, e := range entries {
		if e.Site == "" {
			return nil, fmt.Errorf("%w: entry without site", ErrCorrupt)
		}
		if _, dup := s.entries[e.Site]; dup {
			return nil, fmt.Errorf("%w: duplicate site %q", ErrCorrupt, e.Site)
		}
		s.entries[e.Site] = e
	}
	return s, nil
}

// Put seals password and stores it under site, replacing any previous entry.
func (s *Store) Put(site, username, password string) error {
	if site == "" {
		return fmt.Errorf("%w: site identifier is required", ErrInvalidInput)
	}
	if !utf8.ValidString(site) || !utf8.ValidString(username) {
		return fmt.Errorf("%w: site and username must be valid UTF-8", ErrInvalidInput)
	}

	blob, err := SealPassword(s.cipher, site, password)
	if err != nil {
		return err
	}

	now := s.now()
	created := now
	if prev, ok := s.entries[site]; ok {
		created = prev.CreatedAt
	}
	s.entries[site] = Entry{
		Site:      site,
		Username:  username,
		Password:  blob,
		CreatedAt: created,
		UpdatedAt: now,
	}
	s.dirty = true
	return nil
}

// Get decrypts the entry stored under site.
func (s *Store) Get(site string) (Credential, error) {
	if site == "" {
		return Credential{}, fmt.Errorf("%w: site identifier is required", ErrInvalidInput)
	}
	e, ok := s.entries[site]
	if !ok {
		return Credential{}, fmt.Errorf("%q: %w", site, ErrNotFound)
	}

	pw, err := OpenPassword(s.cipher, site, e.Password)
	if err != nil {
		return Credential{}, fmt.Errorf("%q: %w", site, err)
	}
	return Credential{Site: site, Username: e.Username, Password: pw}, nil
}

// Delete removes the entry stored under site.
func (s *Store) Delete(site string) error {
	if site == "" {
		return fmt.Errorf("%w: site identifier is required", ErrInvalidInput)
	}
	if _, ok := s.entries[site]; !ok {
		return fmt.Errorf("%q: %w", site, ErrNotFound)
	}
	delete(s.entries, site)
	s.dirty = true
	return nil
}

// List returns every site identifier in lexicographic order.
func (s *Store) List() []string {
	sites := make([]string, 0, len(s.entries))
	for site := range s.entries {
		sites = append(sites, site)
	}
	sort.Strings(sites)
	return sites
}

// Len reports the number of stored entries.
func (s *Store) Len() int { return len(s.entries) }

// Entries returns a copy of every sealed entry ordered by site.
func (s *Store) Entries() []Entry {
	out := make([]Entry, 0, len(s.entries))
	for _, site := range s.List() {
		e := s.entries[site]
		e.Password = append([]byte(nil), e.Password...)
		out = append(out, e)
	}
	return out
}

// Cipher returns the cipher entries are sealed with.
func (s *Store) Cipher() krypto.Cipher { return s.cipher }

// Rekey re-encrypts every entry under next. Either every entry moves to
// next or the store is left untouched.
func (s *Store) Rekey(next krypto.Cipher) error {
	resealed := make(map[string]Entry, len(s.entries))
	for site, e := range s.entries {
		pw, err := OpenPassword(s.cipher, site, e.Password)
		if err != nil {
			return fmt.Errorf("rekey %q: %w", site, err)
		}
		blob, err := SealPassword(next, site, pw)
		if err != nil {
			return fmt.Errorf("rekey %q: %w", site, err)
		}
		e.Password = blob
		resealed[site] = e
	}

	s.cipher = next
	s.entries = resealed
	s.dirty = true
	return nil
}

// Dirty reports whether the store changed since the last MarkClean.
func (s *Store) Dirty() bool { return s.dirty }

// MarkClean records that the current contents have been persisted.
func (s *Store) MarkClean() { s.dirty = false }

// Serialize renders the store and h in the vault file format. Only sealed
// passwords are written; sites and usernames are stored in the clear.
func (s *Store) Serialize(h Header) ([]byte, error) {
	return EncodeDocument(Document{Header: h, Entries: s.Entries()})
}

// Deserialize parses data and builds a store sealing with c.
func Deserialize(c krypto.Cipher, data []byte) (*Store, Header, error) {
	doc, err := DecodeDocument(data)
	if err != nil {
		return nil, Header{}, err
	}
	s, err := LoadStore(c, doc.Entries)
	if err != nil {
		return nil, Header{}, err
	}
	return s, doc.Header, nil
}
