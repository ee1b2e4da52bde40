package config

import "sync/atomic"

// Store holds the live configuration for concurrent readers. Each reader
// takes a whole-Config snapshot per operation; a reload publishes a fresh
// Config in one atomic swap, so a snapshot handed out by Current is never
// written to afterwards.
type Store struct {
	v atomic.Pointer[Config]
}

// NewStore creates a store seeded with cfg.
func NewStore(cfg *Config) *Store {
	s := &Store{}
	s.v.Store(cfg)
	return s
}

// Current returns the live snapshot. Callers must not mutate it.
func (s *Store) Current() *Config {
	return s.v.Load()
}

// Swap publishes cfg as the new live snapshot.
func (s *Store) Swap(cfg *Config) {
	s.v.Store(cfg)
}
