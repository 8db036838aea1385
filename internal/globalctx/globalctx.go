// Package globalctx holds the key/value context shared between UI callers
// and operation strategies. It is safe for concurrent use; writes are not
// ordered relative to strategies that are already executing.
package globalctx

import (
	"maps"
	"sync"
)

// Well-known keys read by the built-in strategies.
const (
	KeySessionTemplate      = "sessionTemplate"
	KeyNotificationTemplate = "notificationTemplate"
	KeyApplicationTemplate  = "applicationTemplate"
	KeyPresenceStatus       = "presenceStatus"
	KeyMode                 = "mode"
	KeyWidth                = "width"
)

// Reader is the read-only view handed to strategies.
type Reader interface {
	Get(key string) (string, bool)
}

// Store is a synchronized string map.
type Store struct {
	mu     sync.RWMutex
	values map[string]string
}

// New creates an empty store.
func New() *Store {
	return &Store{values: make(map[string]string)}
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Get returns the value stored under key.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Delete removes key.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// Snapshot returns a copy of every stored pair.
func (s *Store) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values)
}
