package store

import (
	"sync"

	"auctionhouse/internal/domain"
)

// TransactionStore is a thread-safe in-memory record of resolved
// transactions, indexed by market (append-only, submission order).
type TransactionStore struct {
	mu       sync.RWMutex
	byMarket map[string][]*domain.Transaction
}

// NewTransactionStore creates an empty TransactionStore.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		byMarket: make(map[string][]*domain.Transaction),
	}
}

// Record appends a resolved transaction to its market's history.
func (s *TransactionStore) Record(tx *domain.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byMarket[tx.MarketID] = append(s.byMarket[tx.MarketID], tx)
}

// ListByMarket returns the recorded transactions of a market in
// resolution order.
func (s *TransactionStore) ListByMarket(marketID string) []*domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txs := s.byMarket[marketID]
	out := make([]*domain.Transaction, len(txs))
	copy(out, txs)
	return out
}

// Reset discards a market's history. Called at session close.
func (s *TransactionStore) Reset(marketID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byMarket, marketID)
}
