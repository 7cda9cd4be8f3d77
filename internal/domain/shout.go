package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Side indicates whether a shout is a bid (buy) or ask (sell).
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBid {
		return SideAsk
	}
	return SideBid
}

// ShoutState represents the lifecycle state of a shout.
//
// The legal progression is created → pending → placed → pending → matched,
// with rejected reachable from pending at either point, and
// placed → pending → placed being the rollback path when a proposed
// transaction is rejected by settlement.
type ShoutState string

const (
	ShoutStateCreated  ShoutState = "created"
	ShoutStatePending  ShoutState = "pending"
	ShoutStatePlaced   ShoutState = "placed"
	ShoutStateMatched  ShoutState = "matched"
	ShoutStateRejected ShoutState = "rejected"
)

// legalTransitions lists the allowed state transitions.
var legalTransitions = map[ShoutState][]ShoutState{
	ShoutStateCreated: {ShoutStatePending},
	ShoutStatePending: {ShoutStatePlaced, ShoutStateMatched, ShoutStateRejected},
	ShoutStatePlaced:  {ShoutStatePending},
}

// Shout is a one-sided priced offer to buy or sell a quantity of the good.
//
// A shout's ID is stable across splits: Split produces a sibling with the
// same ID, price and side. Seq is assigned by the matching engine on
// admission and breaks price ties deterministically (FIFO); each split
// sibling gets its own Seq.
type Shout struct {
	ID       string
	TraderID string
	MarketID string
	Side     Side
	Price    float64
	Quantity int64
	State    ShoutState
	Seq      uint64
}

// NewShout creates a shout in the created state with a fresh ID.
func NewShout(traderID, marketID string, side Side, price float64, quantity int64) *Shout {
	return &Shout{
		ID:       uuid.New().String(),
		TraderID: traderID,
		MarketID: marketID,
		Side:     side,
		Price:    price,
		Quantity: quantity,
		State:    ShoutStateCreated,
	}
}

// IsValid reports whether the shout is well-formed: quantity ≥ 1 and
// price ≥ 0.
func (s *Shout) IsValid() bool {
	return s.Quantity >= 1 && s.Price >= 0
}

// IsBid reports whether the shout is on the bid side.
func (s *Shout) IsBid() bool {
	return s.Side == SideBid
}

// Satisfies reports whether the two shouts are on opposite sides and
// their prices cross (bid price ≥ ask price).
func (s *Shout) Satisfies(other *Shout) bool {
	if s.Side == other.Side {
		return false
	}
	if s.IsBid() {
		return s.Price >= other.Price
	}
	return other.Price >= s.Price
}

// Split mutates the receiver down to quantity−excess and returns a new
// sibling shout holding the excess units, with the same ID, price, side
// and state. The sibling's Seq is zero until an engine admits it.
func (s *Shout) Split(excess int64) *Shout {
	if excess <= 0 || excess >= s.Quantity {
		panic(fmt.Sprintf("shout %s: split of %d units out of %d", s.ID, excess, s.Quantity))
	}
	s.Quantity -= excess
	return &Shout{
		ID:       s.ID,
		TraderID: s.TraderID,
		MarketID: s.MarketID,
		Side:     s.Side,
		Price:    s.Price,
		Quantity: excess,
		State:    s.State,
	}
}

// TransitionTo moves the shout to the given state, enforcing the lifecycle
// progression. It returns ErrIllegalShoutState for a transition the
// lifecycle does not allow.
func (s *Shout) TransitionTo(next ShoutState) error {
	for _, allowed := range legalTransitions[s.State] {
		if allowed == next {
			s.State = next
			return nil
		}
	}
	return fmt.Errorf("%w: %s → %s (shout %s)", ErrIllegalShoutState, s.State, next, s.ID)
}
