package vault

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"
	"unicode/utf8"
)

// Entry is one stored credential. Site and Username are kept in the clear;
// Password is a sealed blob (nonce || ciphertext || tag).
type Entry struct {
	Site      string
	Username  string
	Password  []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Document is the durable aggregate: header plus every entry.
type Document struct {
	Header  Header
	Entries []Entry
}

// fileDocument is the on-disk JSON layout. []byte fields are base64 encoded
// by encoding/json, and the entries map is written with sorted keys.
type fileDocument struct {
	Version   int                  `json:"version"`
	ID        string               `json:"id"`
	CreatedAt time.Time            `json:"createdAt"`
	UpdatedAt time.Time            `json:"updatedAt"`
	Salt      []byte               `json:"salt"`
	KDF       KDFConfig            `json:"kdf"`
	Cipher    string               `json:"cipher"`
	Entries   map[string]fileEntry `json:"entries"`
}

type fileEntry struct {
	Username  string    `json:"username"`
	Password  []byte    `json:"password"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EncodeDocument renders doc in the vault file format.
func EncodeDocument(doc Document) ([]byte, error) {
	out := fileDocument{
		Version:   doc.Header.Version,
		ID:        doc.Header.ID,
		CreatedAt: doc.Header.CreatedAt,
		UpdatedAt: doc.Header.UpdatedAt,
		Salt:      doc.Header.Salt,
		KDF:       doc.Header.KDF,
		Cipher:    doc.Header.Cipher,
		Entries:   make(map[string]fileEntry, len(doc.Entries)),
	}
	for _, e := range doc.Entries {
		if e.Site == "" {
			return nil, fmt.Errorf("%w: entry without site", ErrInvalidInput)
		}
		// json.Marshal would silently rewrite invalid bytes as U+FFFD
		if !utf8.ValidString(e.Site) || !utf8.ValidString(e.Username) {
			return nil, fmt.Errorf("%w: entry %q is not valid UTF-8", ErrInvalidInput, e.Site)
		}
		if _, dup := out.Entries[e.Site]; dup {
			return nil, fmt.Errorf("%w: duplicate site %q", ErrInvalidInput, e.Site)
		}
		out.Entries[e.Site] = fileEntry{
			Username:  e.Username,
			Password:  e.Password,
			CreatedAt: e.CreatedAt,
			UpdatedAt: e.UpdatedAt,
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode vault: %w", err)
	}
	return append(data, '\n'), nil
}

// DecodeDocument parses the vault file format. Any structural problem is
// reported as ErrCorrupt; the key is never checked here.
func DecodeDocument(data []byte) (Document, error) {
	var in fileDocument
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if dec.More() {
		return Document{}, fmt.Errorf("%w: trailing data after vault document", ErrCorrupt)
	}

	doc := Document{
		Header: Header{
			Version:   in.Version,
			ID:        in.ID,
			CreatedAt: in.CreatedAt,
			UpdatedAt: in.UpdatedAt,
			Salt:      in.Salt,
			KDF:       in.KDF,
			Cipher:    in.Cipher,
		},
		Entries: make([]Entry, 0, len(in.Entries)),
	}
	if err := doc.Header.Validate(); err != nil {
		return Document{}, err
	}

	for site, e := range in.Entries {
		if site == "" {
			return Document{}, fmt.Errorf("%w: entry without site", ErrCorrupt)
		}
		if len(e.Password) == 0 {
			return Document{}, fmt.Errorf("%w: entry %q has no password blob", ErrCorrupt, site)
		}
		doc.Entries = append(doc.Entries, Entry{
			Site:      site,
			Username:  e.Username,
			Password:  e.Password,
			CreatedAt: e.CreatedAt,
			UpdatedAt: e.UpdatedAt,
		})
	}
	sort.Slice(doc.Entries, func(i, j int) bool { return doc.Entries[i].Site < doc.Entries[j].Site })
	return doc, nil
}
