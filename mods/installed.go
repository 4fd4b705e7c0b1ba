package mods

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var (
	ErrInvalidName = errors.New("mods: invalid mod name")
	ErrNotFound    = errors.New("mods: mod not installed")
)

type Mod struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

// List returns the jar files in dir sorted by name. A missing dir is an
// empty list.
func List(dir string) ([]Mod, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return []Mod{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mods: list %s: %w", dir, err)
	}

	out := make([]Mod, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !isJar(e.Name()) {
			continue
		}

		info, err := e.Info()
		if err != nil {
			continue
		}

		out = append(out, Mod{Name: e.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out, nil
}

// ValidName reports whether name is a bare jar file name that stays inside
// the mods dir on every platform.
func ValidName(name string) bool {
	switch name {
	case "", ".", "..":
		return false
	}

	return filepath.Base(name) == name && !strings.ContainsAny(name, `/\`) && isJar(name)
}

// Remove deletes one installed mod. The name must pass ValidName.
func Remove(dir, name string) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	err := os.Remove(filepath.Join(dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("mods: remove %s: %w", name, err)
	}

	return nil
}

func isJar(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".jar")
}
