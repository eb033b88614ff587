package license

import (
	"context"
	"sort"
	"strings"
	"sync"

	"licensenet/internal/license/models"
	id "licensenet/pkg/domain"
	"licensenet/pkg/platform/sentinel"
)

// InMemory is the map-backed license store used by unit tests and local
// wiring. It mirrors the PostgresStore contract, including holding its lock
// across the Execute callback.
type InMemory struct {
	mu       sync.Mutex
	nextID   int64
	byID     map[id.LicenseID]*models.License
	orderIDs map[id.OrderID][]id.LicenseID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:     make(map[id.LicenseID]*models.License),
		orderIDs: make(map[id.OrderID][]id.LicenseID),
	}
}

func (s *InMemory) FindByID(_ context.Context, licenseID id.LicenseID) (*models.License, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	license, ok := s.byID[licenseID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyLicense(license), nil
}

func (s *InMemory) FindByKey(_ context.Context, key string) (*models.License, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	license := s.findByKeyLocked(key)
	if license == nil {
		return nil, sentinel.ErrNotFound
	}
	return copyLicense(license), nil
}

func (s *InMemory) FindByOwner(_ context.Context, ownerID id.AccountID) ([]*models.License, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var licenses []*models.License
	for _, license := range s.byID {
		if license.OwnerID != nil && *license.OwnerID == ownerID {
			licenses = append(licenses, copyLicense(license))
		}
	}
	sortLicenses(licenses)
	return licenses, nil
}

func (s *InMemory) FindByOrder(_ context.Context, orderID id.OrderID) ([]*models.License, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var licenses []*models.License
	for _, licenseID := range s.orderIDs[orderID] {
		if license, ok := s.byID[licenseID]; ok {
			licenses = append(licenses, copyLicense(license))
		}
	}
	sortLicenses(licenses)
	return licenses, nil
}

// AssociateOrder links a license to an order's line item, standing in for
// the commerce collaborator's association table.
func (s *InMemory) AssociateOrder(licenseID id.LicenseID, orderID id.OrderID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orderIDs[orderID] = append(s.orderIDs[orderID], licenseID)
}

func (s *InMemory) Create(_ context.Context, license *models.License) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findByKeyLocked(license.Key) != nil {
		return sentinel.ErrConflict
	}
	s.nextID++
	license.ID = id.LicenseID(s.nextID)
	s.byID[license.ID] = copyLicense(license)
	return nil
}

func (s *InMemory) Update(_ context.Context, license *models.License) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[license.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.byID[license.ID] = copyLicense(license)
	return nil
}

func (s *InMemory) Execute(_ context.Context, key string, apply func(*models.License) error) (*models.License, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	license := s.findByKeyLocked(key)
	if license == nil {
		return nil, sentinel.ErrNotFound
	}
	candidate := copyLicense(license)
	if err := apply(candidate); err != nil {
		return nil, err
	}
	s.byID[candidate.ID] = copyLicense(candidate)
	return candidate, nil
}

func (s *InMemory) AssignOwnerByEmail(_ context.Context, ownerID id.AccountID, email string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var affected int64
	for _, license := range s.byID {
		if license.OwnerID == nil && strings.EqualFold(license.Email, email) {
			owner := ownerID
			license.OwnerID = &owner
			affected++
		}
	}
	return affected, nil
}

func (s *InMemory) DeleteByKey(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	license := s.findByKeyLocked(key)
	if license == nil {
		return sentinel.ErrNotFound
	}
	delete(s.byID, license.ID)
	return nil
}

func (s *InMemory) findByKeyLocked(key string) *models.License {
	for _, license := range s.byID {
		if license.Key == key {
			return license
		}
	}
	return nil
}

func copyLicense(license *models.License) *models.License {
	clone := *license
	if license.OwnerID != nil {
		owner := *license.OwnerID
		clone.OwnerID = &owner
	}
	if license.Domain != nil {
		domain := *license.Domain
		clone.Domain = &domain
	}
	return &clone
}

func sortLicenses(licenses []*models.License) {
	sort.Slice(licenses, func(i, j int) bool { return licenses[i].ID < licenses[j].ID })
}
