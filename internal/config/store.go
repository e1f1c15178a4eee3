package config

import (
	"sync"
)

// Store owns the active configuration snapshot. Load swaps the snapshot only
// on a successful parse; a failed reload leaves the previous snapshot active.
type Store struct {
	sync.Mutex
	path   string
	active *Config
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Load parses the file and, on success, publishes the new snapshot.
func (s *Store) Load() (*Config, error) {
	cfg, err := Load(s.path)
	if err != nil {
		return nil, err
	}

	s.Lock()
	defer s.Unlock()
	s.active = cfg
	return cfg, nil
}

// Active returns the current snapshot, or nil before the first Load.
func (s *Store) Active() *Config {
	s.Lock()
	defer s.Unlock()
	return s.active
}
