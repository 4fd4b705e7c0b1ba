package accounts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/n1ntencube/CubicLauncher/internal/lockset"
)

// Session is the "current session" file: the identity the launcher plays
// with, independent of the account list.
type Session struct {
	path  string
	locks *lockset.Set
}

func NewSession(path string, locks *lockset.Set) *Session {
	if locks == nil {
		locks = lockset.New()
	}

	return &Session{path: path, locks: locks}
}

func (s *Session) Save(rec Record) error {
	defer s.locks.Lock(s.path)()

	return writeJSON(s.path, rec)
}

// Load returns nil when no session is saved.
func (s *Session) Load() (*Record, error) {
	defer s.locks.Lock(s.path)()

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("accounts: read session: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("accounts: decode session: %w", err)
	}

	if rec.Profile.ID == "" {
		return nil, nil
	}

	return &rec, nil
}

func (s *Session) Clear() error {
	defer s.locks.Lock(s.path)()

	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("accounts: clear session: %w", err)
	}

	return nil
}
