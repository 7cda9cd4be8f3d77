package auction

import (
	"math/rand"

	"auctionhouse/internal/engine"
)

// ContinuousClearing clears whenever the engine holds matched quantity,
// giving continuous double-auction semantics.
type ContinuousClearing struct{}

func (ContinuousClearing) ShouldClear(e engine.ShoutEngine) bool {
	return e.MatchedQuantity() > 0
}

// IntervalClearing clears on every n-th accepted shout, batching matches
// into clearing rounds.
type IntervalClearing struct {
	N int

	count int
}

func (p *IntervalClearing) ShouldClear(e engine.ShoutEngine) bool {
	if p.N <= 1 {
		return e.MatchedQuantity() > 0
	}
	p.count++
	if p.count < p.N {
		return false
	}
	p.count = 0
	return e.MatchedQuantity() > 0
}

// ProbabilisticClearing clears with probability P after each accepted
// shout. The RNG handle is injected at construction; policies never reach
// for a process-wide source.
type ProbabilisticClearing struct {
	P   float64
	RNG *rand.Rand
}

func (p *ProbabilisticClearing) ShouldClear(e engine.ShoutEngine) bool {
	if e.MatchedQuantity() == 0 {
		return false
	}
	return p.RNG.Float64() < p.P
}
