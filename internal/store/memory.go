package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/clubsync/internal/common"
)

// MemoryStore is a process-local Store. A positive MaxBytes bounds the total
// size of stored values.
type MemoryStore struct {
	mu       sync.RWMutex
	data     map[string][]byte
	size     int
	maxBytes int
}

func NewMemoryStore(maxBytes int) *MemoryStore {
	return &MemoryStore{data: map[string][]byte{}, maxBytes: maxBytes}
}

func (s *MemoryStore) Read(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (s *MemoryStore) Write(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.size - len(s.data[key]) + len(value)
	if s.maxBytes > 0 && next > s.maxBytes {
		return fmt.Errorf("write %s (%d bytes, limit %d): %w", key, len(value), s.maxBytes, common.ErrQuotaExceeded)
	}
	s.data[key] = append([]byte(nil), value...)
	s.size = next
	return nil
}

// Len returns the number of keys held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
