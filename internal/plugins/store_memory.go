package plugins

import (
	"context"
	"sync"

	id "licensenet/pkg/domain"
)

// InMemory is the map-backed plugin license store used by unit tests.
type InMemory struct {
	mu       sync.RWMutex
	licenses map[id.LicenseID][]*PluginLicense
}

func NewInMemory() *InMemory {
	return &InMemory{licenses: make(map[id.LicenseID][]*PluginLicense)}
}

// Add nests a plugin license under its parent license.
func (s *InMemory) Add(license *PluginLicense) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *license
	s.licenses[license.LicenseID] = append(s.licenses[license.LicenseID], &clone)
}

func (s *InMemory) FindByLicense(_ context.Context, licenseID id.LicenseID) ([]*PluginLicense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*PluginLicense
	for _, license := range s.licenses[licenseID] {
		clone := *license
		out = append(out, &clone)
	}
	return out, nil
}
