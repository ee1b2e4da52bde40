package remote

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
)

// Store manages named connection profile persistence.
type Store struct {
	mu       sync.RWMutex
	filePath string
	profiles map[string]Profile
}

// NewStore creates a new profile store.
func NewStore(filePath string) *Store {
	return &Store{
		filePath: filePath,
		profiles: make(map[string]Profile),
	}
}

// Load loads profiles from the file.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			// No profiles file yet
			return nil
		}
		return err
	}

	return json.Unmarshal(data, &s.profiles)
}

// Save saves profiles to the file. Profiles hold credentials, so the file
// is written owner-only.
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := json.MarshalIndent(s.profiles, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.filePath, data, 0600)
}

// Get returns the profile saved under name.
func (s *Store) Get(name string) (Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[name]
	return p, ok
}

// Set saves a profile under name. The profile is validated first so the
// store never holds an unconnectable profile.
func (s *Store) Set(name string, p Profile) error {
	if name == "" {
		return fmt.Errorf("profile name required")
	}
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.profiles[name] = p
	s.mu.Unlock()

	return s.Save()
}

// Delete removes the profile saved under name.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	delete(s.profiles, name)
	s.mu.Unlock()

	return s.Save()
}

// Names returns the saved profile names in sorted order.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.profiles))
	for name := range s.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
