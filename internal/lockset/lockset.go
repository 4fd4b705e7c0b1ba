package lockset

import (
	"path/filepath"
	"sync"
)

// Set hands out one mutex per resource key. Keys are file system paths and
// are cleaned so "a/../b" and "b" share a lock.
type Set struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New() *Set {
	return &Set{locks: make(map[string]*sync.Mutex)}
}

func (s *Set) get(key string) *sync.Mutex {
	if abs, err := filepath.Abs(key); err == nil {
		key = abs
	}
	key = filepath.Clean(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}

	return m
}

// Lock acquires the lock for key and returns its release func.
func (s *Set) Lock(key string) func() {
	m := s.get(key)
	m.Lock()

	return m.Unlock
}

// TryLock acquires the lock for key only if it is free.
func (s *Set) TryLock(key string) (func(), bool) {
	m := s.get(key)
	if !m.TryLock() {
		return nil, false
	}

	return m.Unlock, true
}
