// Package analytics computes equilibrium and efficiency reports from a
// frozen matching-engine snapshot. Everything here is read-only and pure;
// callers take the market lock for the duration of the computation.
package analytics

import (
	"math"

	"auctionhouse/internal/engine"
)

// Equilibrium is the theoretical competitive-equilibrium report for one
// book snapshot: the price band inside which supply meets demand and the
// quantity that would trade there.
type Equilibrium struct {
	Found    bool
	MinPrice float64
	MaxPrice float64
	MidPrice float64
	Quantity int64
}

// ComputeEquilibrium derives the equilibrium band
// [max(highest matched ask, highest unmatched bid),
//
//	min(lowest unmatched ask, lowest matched bid)]
//
// using ±Inf sentinels for empty sides, and the equilibrium quantity from
// the engine's matched volume. No equilibrium exists when nothing is
// matched.
func ComputeEquilibrium(e engine.ShoutEngine) Equilibrium {
	lo := math.Inf(-1)
	hi := math.Inf(1)
	if s, ok := e.HighestMatchedAsk(); ok && s.Price > lo {
		lo = s.Price
	}
	if s, ok := e.BestUnmatchedBid(); ok && s.Price > lo {
		lo = s.Price
	}
	if s, ok := e.BestUnmatchedAsk(); ok && s.Price < hi {
		hi = s.Price
	}
	if s, ok := e.LowestMatchedBid(); ok && s.Price < hi {
		hi = s.Price
	}

	eq := Equilibrium{MinPrice: lo, MaxPrice: hi, Quantity: e.MatchedQuantity()}
	if eq.Quantity > 0 && lo <= hi && !math.IsInf(lo, -1) && !math.IsInf(hi, 1) {
		eq.Found = true
		eq.MidPrice = (lo + hi) / 2
	}
	return eq
}
