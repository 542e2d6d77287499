// Package memory is an in-process entity store for tests and dry runs.
package memory

import (
	"context"
	"sync"

	"github.com/monorail-xyz/envio-stats-indexer/internal/stats"
)

type key struct {
	kind stats.Kind
	id   string
}

// Store keeps entity documents in a map guarded by a RWMutex
type Store struct {
	mu      sync.RWMutex
	entries map[key][]byte
}

var _ stats.Store = (*Store)(nil)

func New() *Store {
	return &Store{entries: make(map[key][]byte)}
}

func (s *Store) Get(_ context.Context, kind stats.Kind, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.entries[key{kind, id}]
	if !ok {
		return nil, stats.ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *Store) Set(_ context.Context, kind stats.Kind, id string, data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	s.entries[key{kind, id}] = buf
	s.mu.Unlock()
	return nil
}

// Count returns the number of stored entities of kind
func (s *Store) Count(kind stats.Kind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for k := range s.entries {
		if k.kind == kind {
			n++
		}
	}
	return n
}

// Close is a no-op so the memory store satisfies the backend lifecycle
func (s *Store) Close() error {
	return nil
}
