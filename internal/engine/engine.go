package engine

import (
	"auctionhouse/internal/domain"
)

// MatchedPair is one equal-quantity (bid, ask) pair drained from the
// matched partitions of a shout engine.
type MatchedPair struct {
	Bid *domain.Shout
	Ask *domain.Shout
}

// SplitRecord is one entry of an engine's flat split history: the shout
// with ParentSeq gave up Quantity units to a new sibling with ChildSeq.
// Both siblings carry the same shout ID.
type SplitRecord struct {
	ID        string
	ParentSeq uint64
	ChildSeq  uint64
	Quantity  int64
}

// ShoutEngine is the matching-engine contract. Implementations partition
// outstanding shouts into matched and unmatched sets and keep these
// invariants after every mutation:
//
//   - total matched-bid quantity equals total matched-ask quantity
//   - the lowest matched bid prices at or above the highest matched ask
//   - no unmatched shout could improve on a matched one
//
// Engines are not internally synchronized; the owning auctioneer serializes
// all access per market.
type ShoutEngine interface {
	// Insert admits a new shout. A shout whose ID is already resident and
	// unresolved is a programming error reported as ErrDuplicateShout.
	Insert(s *domain.Shout) error

	// Remove withdraws a resident shout and all of its split siblings,
	// repairing the matched/unmatched invariants.
	Remove(s *domain.Shout) error

	// MatchedPairs destructively drains the matched partitions pairwise.
	// Every returned pair has bid price ≥ ask price and equal quantities,
	// splitting the larger side where needed.
	MatchedPairs() []MatchedPair

	// Boundary accessors, O(1)-ish peeks. The boolean is false when the
	// partition is empty.
	HighestMatchedAsk() (*domain.Shout, bool)
	LowestMatchedBid() (*domain.Shout, bool)
	BestUnmatchedBid() (*domain.Shout, bool)
	BestUnmatchedAsk() (*domain.Shout, bool)

	// MatchedQuantity is the total quantity on each matched side.
	MatchedQuantity() int64

	// AscendBids and AscendAsks iterate all resident shouts of one side,
	// matched and unmatched, in ascending price order. The callback
	// returns false to stop.
	AscendBids(fn func(*domain.Shout) bool)
	AscendAsks(fn func(*domain.Shout) bool)

	// SplitHistory returns the split records accumulated since the last
	// Reset, oldest first.
	SplitHistory() []SplitRecord

	// Reset discards all resident shouts and split history.
	Reset()
}
