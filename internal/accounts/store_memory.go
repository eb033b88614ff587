package accounts

import (
	"context"
	"strings"
	"sync"

	id "licensenet/pkg/domain"
	"licensenet/pkg/platform/sentinel"
)

// InMemory is the map-backed account store used by unit tests.
type InMemory struct {
	mu       sync.RWMutex
	accounts map[id.AccountID]*Account
}

func NewInMemory() *InMemory {
	return &InMemory{accounts: make(map[id.AccountID]*Account)}
}

// Add registers an account for lookups.
func (s *InMemory) Add(account *Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *account
	s.accounts[account.ID] = &clone
}

func (s *InMemory) FindByID(_ context.Context, accountID id.AccountID) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[accountID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *account
	return &clone, nil
}

func (s *InMemory) FindByEmail(_ context.Context, email string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, account := range s.accounts {
		if strings.EqualFold(account.Email, email) {
			clone := *account
			return &clone, nil
		}
	}
	return nil, sentinel.ErrNotFound
}
