package store

import (
	"sync"

	"auctionhouse/internal/domain"
)

// TraderStore is a thread-safe in-memory registry of traders and their
// private valuations.
type TraderStore struct {
	mu      sync.RWMutex
	traders map[string]*domain.Trader
}

// NewTraderStore creates an empty TraderStore.
func NewTraderStore() *TraderStore {
	return &TraderStore{
		traders: make(map[string]*domain.Trader),
	}
}

// Create registers a trader. It returns domain.ErrTraderAlreadyExists if
// the id is taken.
func (s *TraderStore) Create(t *domain.Trader) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.traders[t.TraderID]; ok {
		return domain.ErrTraderAlreadyExists
	}
	s.traders[t.TraderID] = t
	return nil
}

// Get retrieves a trader by id. It returns domain.ErrTraderNotFound if the
// trader does not exist.
func (s *TraderStore) Get(id string) (*domain.Trader, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.traders[id]
	if !ok {
		return nil, domain.ErrTraderNotFound
	}
	return t, nil
}

// Exists reports whether a trader is registered.
func (s *TraderStore) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.traders[id]
	return ok
}

// List returns all registered traders in unspecified order.
func (s *TraderStore) List() []*domain.Trader {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Trader, 0, len(s.traders))
	for _, t := range s.traders {
		out = append(out, t)
	}
	return out
}
