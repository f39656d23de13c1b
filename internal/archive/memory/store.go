// Package memory provides an in-memory snapshot store for local development
// and tests.
package memory

import (
	"context"
	"sync"
)

// Store keeps snapshots in a mutex-guarded map.
type Store struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{objects: make(map[string][]byte)}
}

// Put stores a copy of the data under key.
func (s *Store) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	s.objects[key] = buf
	return nil
}

// Get returns the snapshot stored under key, if any.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	return data, ok
}

// Len reports the number of stored snapshots.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
