package enrich

import (
	"context"
	"sync"
)

// Store persists resolved audio attributes keyed by the primary (Spotify)
// track ID. Entries are append-only: the same ID always maps to the same
// externally-sourced value, so overwrites are harmless and nothing is ever
// invalidated.
type Store interface {
	// Get returns the stored attributes for the given IDs; IDs with no
	// entry are simply absent from the map.
	Get(ctx context.Context, ids []string) (map[string]Attributes, error)

	// Put stores the given attributes, overwriting existing entries.
	Put(ctx context.Context, attrs map[string]Attributes) error
}

// MemoryStore is a process-wide in-memory Store. It supports concurrent
// reads and inserts from overlapping enrichment fan-outs; entries live for
// the lifetime of the process.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Attributes
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]Attributes),
	}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, ids []string) (map[string]Attributes, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]Attributes, len(ids))
	for _, id := range ids {
		if attrs, ok := s.entries[id]; ok {
			result[id] = attrs
		}
	}
	return result, nil
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, attrs map[string]Attributes) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, a := range attrs {
		s.entries[id] = a
	}
	return nil
}

var _ Store = (*MemoryStore)(nil)
