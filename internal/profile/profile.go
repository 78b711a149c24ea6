// Package profile persists the chosen display name and color between sessions.
// The id is deliberately not stored: every session joins with a fresh one.
package profile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/omochice/relay-chat/pkg/protocol"
)

// Profile is the persisted part of an identity.
type Profile struct {
	Name string `yaml:"name"`
	// Color is a #rrggbb override. Empty means derive it from the session id.
	Color string `yaml:"color,omitempty"`
}

// Apply returns id with the saved name and color applied.
func (p Profile) Apply(id protocol.Identity) (protocol.Identity, error) {
	id = id.WithName(p.Name)
	if p.Color == "" {
		return id, nil
	}
	c, err := protocol.ParseColor(p.Color)
	if err != nil {
		return id, fmt.Errorf("profile: %w", err)
	}
	return id.WithColor(c), nil
}

// Store reads and writes a profile file. A Store with an empty path is
// disabled: Load finds nothing and Save does nothing.
type Store struct {
	path string
}

// NewStore returns a store for the file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the file location.
func (s *Store) Path() string { return s.path }

// Load reads the profile. ok is false when no profile has been saved yet.
func (s *Store) Load() (p Profile, ok bool, err error) {
	if s.path == "" {
		return Profile{}, false, nil
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Profile{}, false, nil
	}
	if err != nil {
		return Profile{}, false, fmt.Errorf("failed to read profile: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, false, fmt.Errorf("failed to parse profile %s: %w", s.path, err)
	}
	return p, true, nil
}

// Save writes p, replacing any previous profile atomically.
func (s *Store) Save(p Profile) error {
	if s.path == "" {
		return nil
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create profile dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".profile-*")
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write profile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}
