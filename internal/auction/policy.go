// Package auction composes a matching engine with pluggable accepting,
// pricing, clearing, quoting and charging policies, and drives the
// pending→executed/rejected transaction protocol against an external
// settlement authority.
package auction

import (
	"auctionhouse/internal/domain"
	"auctionhouse/internal/engine"
)

// AcceptingPolicy decides whether an incoming shout may enter the market.
type AcceptingPolicy interface {
	// Accept returns nil to admit the shout or a *domain.RejectionError
	// explaining the refusal. previous is the trader's currently active
	// shout in this market, nil when there is none.
	Accept(previous, incoming *domain.Shout, quote domain.MarketQuote) error
}

// PricingPolicy computes the clearing price for one matched pair. The
// returned price must lie inside [ask.Price, bid.Price].
type PricingPolicy interface {
	Price(pair engine.MatchedPair, quote domain.MarketQuote) float64
}

// ClearingCondition is consulted after every accepted shout to decide
// whether the auctioneer should clear now. Time-based clearing goes
// through the external scheduler instead.
type ClearingCondition interface {
	ShouldClear(e engine.ShoutEngine) bool
}

// QuotingPolicy derives the market quote from engine state.
type QuotingPolicy interface {
	Quote(e engine.ShoutEngine) domain.MarketQuote
}

// ChargingPolicy assesses the market's fees.
type ChargingPolicy interface {
	// ShoutCharge is levied on the submitter when a shout is placed.
	ShoutCharge(s *domain.Shout) float64
	// TransactionCharge is levied on each counterparty when a
	// transaction executes.
	TransactionCharge(tx *domain.Transaction) float64
}

// TransactionObserver is implemented by policies that learn from executed
// transactions; the auctioneer feeds every execution to all observing
// policies.
type TransactionObserver interface {
	ObserveTransaction(tx *domain.Transaction)
}

// ShoutObserver is implemented by policies that learn from admission
// outcomes.
type ShoutObserver interface {
	ObserveShout(s *domain.Shout, accepted bool)
}

// EventSink receives the outbound events a market emits.
type EventSink interface {
	Publish(ev domain.Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Publish(domain.Event) {}
