package history

import (
	"context"
	"sort"
	"sync"

	"licensenet/internal/license/models"
	id "licensenet/pkg/domain"
)

// InMemory is the map-backed history store used by unit tests.
type InMemory struct {
	mu      sync.RWMutex
	entries map[id.LicenseID][]models.HistoryEntry
}

func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[id.LicenseID][]models.HistoryEntry)}
}

func (s *InMemory) Append(_ context.Context, entry models.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.LicenseID] = append(s.entries[entry.LicenseID], entry)
	return nil
}

func (s *InMemory) ListByLicense(_ context.Context, licenseID id.LicenseID) ([]models.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := append([]models.HistoryEntry(nil), s.entries[licenseID]...)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, nil
}
