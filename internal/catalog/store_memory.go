package catalog

import (
	"context"
	"sync"

	"licensenet/pkg/platform/sentinel"
)

// InMemory is the map-backed edition store used by unit tests.
type InMemory struct {
	mu       sync.RWMutex
	editions map[string]*Edition
}

func NewInMemory() *InMemory {
	return &InMemory{editions: make(map[string]*Edition)}
}

// Add registers an edition for handle resolution.
func (s *InMemory) Add(edition *Edition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *edition
	s.editions[edition.Handle] = &clone
}

func (s *InMemory) FindByHandle(_ context.Context, handle string) (*Edition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	edition, ok := s.editions[handle]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *edition
	return &clone, nil
}
