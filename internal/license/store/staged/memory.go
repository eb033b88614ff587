package staged

import (
	"context"
	"sync"

	"licensenet/internal/license/models"
	"licensenet/pkg/platform/sentinel"
)

// InMemory is the map-backed staged store used by unit tests.
type InMemory struct {
	mu     sync.Mutex
	staged map[string]*models.StagedLicense
}

func NewInMemory() *InMemory {
	return &InMemory{staged: make(map[string]*models.StagedLicense)}
}

func (s *InMemory) Create(_ context.Context, staged *models.StagedLicense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.staged[staged.Key]; ok {
		return sentinel.ErrConflict
	}
	clone := *staged
	clone.Data = append([]byte(nil), staged.Data...)
	s.staged[staged.Key] = &clone
	return nil
}

func (s *InMemory) FindByKey(_ context.Context, key string) (*models.StagedLicense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	staged, ok := s.staged[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *staged
	clone.Data = append([]byte(nil), staged.Data...)
	return &clone, nil
}

func (s *InMemory) DeleteByKey(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.staged[key]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.staged, key)
	return nil
}
