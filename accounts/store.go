package accounts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/n1ntencube/CubicLauncher/auth"
	"github.com/n1ntencube/CubicLauncher/events"
	"github.com/n1ntencube/CubicLauncher/internal/lockset"
	"github.com/n1ntencube/CubicLauncher/logging"
)

var ErrNotFound = errors.New("accounts: account not found")

// Record is one persisted identity: {"profile": ..., "mc": ...}.
type Record = auth.Identity

// Listing is the result of List. Current is empty when no account is selected.
type Listing struct {
	Current  string
	Accounts []Record
}

// document is the on-disk shape; current is null when unset.
type document struct {
	Current  *string  `json:"current"`
	Accounts []Record `json:"accounts"`
}

type Config struct {
	Path   string
	Locks  *lockset.Set
	Events events.Emitter
	Logger logging.Logger
}

// Store persists accounts in a single JSON file. Every operation is a
// read-modify-write under the lock for that file path.
type Store struct {
	path   string
	locks  *lockset.Set
	events events.Emitter
	log    logging.Logger
}

func NewStore(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("accounts: path is required")
	}

	if cfg.Locks == nil {
		cfg.Locks = lockset.New()
	}

	if cfg.Events == nil {
		cfg.Events = events.Discard
	}

	return &Store{
		path:   cfg.Path,
		locks:  cfg.Locks,
		events: cfg.Events,
		log:    logging.With(cfg.Logger),
	}, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) List() (Listing, error) {
	defer s.locks.Lock(s.path)()

	doc, err := s.read()
	if err != nil {
		return Listing{}, err
	}

	return doc.listing(), nil
}

// Upsert replaces the record with the same profile id, or appends it, and
// makes it current.
func (s *Store) Upsert(rec Record) error {
	if rec.Profile.ID == "" {
		return fmt.Errorf("accounts: record has no profile id")
	}

	return s.update(func(doc *document) error {
		replaced := false
		for i := range doc.Accounts {
			if doc.Accounts[i].Profile.ID == rec.Profile.ID {
				doc.Accounts[i] = rec
				replaced = true
				break
			}
		}

		if !replaced {
			doc.Accounts = append(doc.Accounts, rec)
		}

		id := rec.Profile.ID
		doc.Current = &id
		return nil
	})
}

func (s *Store) SetCurrent(id string) error {
	return s.update(func(doc *document) error {
		if doc.index(id) < 0 {
			return ErrNotFound
		}

		doc.Current = &id
		return nil
	})
}

// Remove deletes id. When it was current, the first remaining account
// becomes current, or none if the list is empty. Removing an unknown id is a no-op.
func (s *Store) Remove(id string) error {
	return s.update(func(doc *document) error {
		i := doc.index(id)
		if i < 0 {
			return nil
		}

		doc.Accounts = append(doc.Accounts[:i], doc.Accounts[i+1:]...)

		if doc.Current != nil && *doc.Current == id {
			doc.Current = nil
			if len(doc.Accounts) > 0 {
				next := doc.Accounts[0].Profile.ID
				doc.Current = &next
			}
		}

		return nil
	})
}

// LoadCurrent returns the current record, or nil when none is selected.
func (s *Store) LoadCurrent() (*Record, error) {
	defer s.locks.Lock(s.path)()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}

	if doc.Current == nil {
		return nil, nil
	}

	i := doc.index(*doc.Current)
	if i < 0 {
		return nil, nil
	}

	rec := doc.Accounts[i]
	return &rec, nil
}

func (s *Store) update(fn func(*document) error) error {
	release := s.locks.Lock(s.path)

	doc, err := s.read()
	if err != nil {
		release()
		return err
	}

	if err := fn(&doc); err != nil {
		release()
		return err
	}

	if err := writeJSON(s.path, doc); err != nil {
		release()
		return err
	}
	release()

	listing := doc.listing()
	_ = s.events.Emit(events.AccountsChanged{Base: events.Now(), Current: listing.Current, Count: len(listing.Accounts)})

	return nil
}

func (s *Store) read() (document, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return document{Accounts: []Record{}}, nil
	}
	if err != nil {
		return document{}, fmt.Errorf("accounts: read %s: %w", s.path, err)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return document{}, fmt.Errorf("accounts: decode %s: %w", s.path, err)
	}

	if doc.Accounts == nil {
		doc.Accounts = []Record{}
	}

	return doc, nil
}

func (d document) index(id string) int {
	for i, rec := range d.Accounts {
		if rec.Profile.ID == id {
			return i
		}
	}

	return -1
}

func (d document) listing() Listing {
	l := Listing{Accounts: append([]Record(nil), d.Accounts...)}
	if d.Current != nil {
		l.Current = *d.Current
	}

	return l
}

// writeJSON replaces path atomically. Files hold bearer tokens and are
// created owner-only.
func writeJSON(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("accounts: create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("accounts: write %s: %w", path, err)
	}

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("accounts: write %s: %w", path, err)
	}

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("accounts: write %s: %w", path, err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("accounts: write %s: %w", path, err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("accounts: write %s: %w", path, err)
	}

	return nil
}
