package domain

import "time"

// TransactionState represents the settlement lifecycle of a transaction.
type TransactionState string

const (
	TransactionStatePending  TransactionState = "pending"
	TransactionStateExecuted TransactionState = "executed"
	TransactionStateRejected TransactionState = "rejected"
)

// Transaction pairs one ask shout with one bid shout at a clearing price.
//
// IDs are assigned per market from a monotonically increasing counter and
// are the sole identity used when matching settlement notifications against
// the pending FIFO queue.
type Transaction struct {
	ID         uint64
	MarketID   string
	Ask        *Shout
	Bid        *Shout
	Price      float64
	Quantity   int64
	State      TransactionState
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// Surplus returns the bid/ask price gap captured by the pair, scaled by
// the traded quantity.
func (t *Transaction) Surplus() float64 {
	return (t.Bid.Price - t.Ask.Price) * float64(t.Quantity)
}
