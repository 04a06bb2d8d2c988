// Package connections manages saved connection profiles. Profiles are kept
// in a single JSON file under the application's config directory and
// addressed by generated IDs.
package connections

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/happydigua/recch/core/errors"
	"github.com/happydigua/recch/core/sqlbuild"
)

// Profile is one saved connection.
type Profile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Dialect  string `json:"dialect"`
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	User     string `json:"user,omitempty"`
	Password string `json:"password,omitempty"`
	Database string `json:"database,omitempty"`
	// Path is the database file for file-backed engines.
	Path string `json:"path,omitempty"`
}

// ParsedDialect returns the profile's statement dialect.
func (p Profile) ParsedDialect() sqlbuild.Dialect {
	return sqlbuild.ParseDialect(p.Dialect)
}

// Store reads and writes the profile file. All operations rewrite the file
// in full; the file is small and a partial in-place update is not worth the
// corruption risk.
type Store struct {
	path string

	mu       sync.Mutex
	profiles []Profile
	loaded   bool
}

// NewStore creates a store over the given file path. The file does not have
// to exist yet.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultPath returns the conventional profile file location under the
// user's config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "resolve config dir")
	}
	return filepath.Join(dir, "recch", "connections.json"), nil
}

func (s *Store) load() error {
	if s.loaded {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.profiles = nil
			s.loaded = true
			return nil
		}
		return errors.Wrapf(err, "read %s", s.path)
	}
	var profiles []Profile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return errors.Wrapf(err, "parse %s", s.path)
	}
	s.profiles = profiles
	s.loaded = true
	return nil
}

func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrap(err, "create config dir")
	}
	data, err := json.MarshalIndent(s.profiles, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode profiles")
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return errors.Wrapf(err, "write %s", s.path)
	}
	return nil
}

// List returns all saved profiles.
func (s *Store) List() ([]Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return nil, err
	}
	out := make([]Profile, len(s.profiles))
	copy(out, s.profiles)
	return out, nil
}

// Get returns the profile with the given ID.
func (s *Store) Get(id string) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return Profile{}, err
	}
	for _, p := range s.profiles {
		if p.ID == id {
			return p, nil
		}
	}
	return Profile{}, errors.NewNotFound("connection", id)
}

// Add saves a new profile and returns it with its generated ID.
func (s *Store) Add(p Profile) (Profile, error) {
	if p.Name == "" {
		return Profile{}, errors.NewValidation("name", "must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return Profile{}, err
	}
	p.ID = uuid.NewString()
	s.profiles = append(s.profiles, p)
	if err := s.save(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Update replaces the stored profile with the same ID.
func (s *Store) Update(p Profile) error {
	if p.ID == "" {
		return errors.NewValidation("id", "must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return err
	}
	for i := range s.profiles {
		if s.profiles[i].ID == p.ID {
			s.profiles[i] = p
			return s.save()
		}
	}
	return errors.NewNotFound("connection", p.ID)
}

// Delete removes the profile with the given ID.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return err
	}
	for i := range s.profiles {
		if s.profiles[i].ID == id {
			s.profiles = append(s.profiles[:i], s.profiles[i+1:]...)
			return s.save()
		}
	}
	return errors.NewNotFound("connection", id)
}
