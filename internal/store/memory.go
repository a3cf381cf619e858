package store

import (
	"context"
	"sync"

	"github.com/podusowski/walkers/internal/tile"
)

// MemoryStore is a process-local Store. It never evicts; meant for tests and
// short-lived tools, not long sessions.
type MemoryStore struct {
	mu    sync.RWMutex
	tiles map[tile.ID][]byte
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tiles: make(map[tile.ID][]byte),
	}
}

func (s *MemoryStore) Get(_ context.Context, id tile.ID) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.tiles[id]
	return data, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, id tile.ID, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tiles[id] = data
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.tiles)
}
