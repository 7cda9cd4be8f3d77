package engine

import (
	"math"

	"auctionhouse/internal/domain"
)

// ThetaShoutEngine interpolates between the competitive-equilibrium trade
// volume and the maximum matchable volume via a coefficient θ ∈ [−1, 1]:
//
//	θ ≤ 0: target quantity = round((1+θ) · Qe), scaling linearly from no
//	       trades at θ=−1 up to the equilibrium quantity at θ=0
//	θ > 0: target quantity = Qe + round(θ · (Qmax − Qe)), scaling linearly
//	       up to the volume-maximizing quantity at θ=1
//
// Targets at or below Qe are met by partitioning the price-sorted extremes
// inward; above Qe the volume-maximizing pairing is truncated to the
// target, keeping the highest bids trading.
type ThetaShoutEngine struct {
	bookEngine
	theta float64
}

// NewThetaShoutEngine creates an empty theta engine. Theta is clamped
// into [−1, 1].
func NewThetaShoutEngine(theta float64) *ThetaShoutEngine {
	e := &ThetaShoutEngine{theta: math.Max(-1, math.Min(1, theta))}
	e.bookEngine = newBookEngine(e.thetaPlan)
	e.replan()
	return e
}

// Theta returns the configured interpolation coefficient.
func (e *ThetaShoutEngine) Theta() float64 {
	return e.theta
}

func (e *ThetaShoutEngine) thetaPlan(bids, asks []*domain.Shout) []plannedPair {
	qe := equilibriumQuantity(bids, asks)
	if e.theta <= 0 {
		target := int64(math.Round((1 + e.theta) * float64(qe)))
		return extremesPlan(bids, asks, target)
	}
	full := maxVolumePlan(bids, asks)
	qmax := planQuantity(full)
	target := qe + int64(math.Round(e.theta*float64(qmax-qe)))
	if target <= qe {
		return extremesPlan(bids, asks, target)
	}
	return truncatePlan(full, target)
}

// extremesPlan pairs the highest bids with the lowest asks inward until
// target units are planned or the sides stop crossing.
func extremesPlan(bids, asks []*domain.Shout, target int64) []plannedPair {
	var pairs []plannedPair
	bi, ai := 0, 0
	var bidRem, askRem int64
	rem := target
	for rem > 0 && bi < len(bids) && ai < len(asks) {
		if bidRem == 0 {
			bidRem = bids[bi].Quantity
		}
		if askRem == 0 {
			askRem = asks[ai].Quantity
		}
		if bids[bi].Price < asks[ai].Price {
			break
		}
		step := bidRem
		if askRem < step {
			step = askRem
		}
		if rem < step {
			step = rem
		}
		pairs = append(pairs, plannedPair{bid: bids[bi], ask: asks[ai], qty: step})
		rem -= step
		bidRem -= step
		askRem -= step
		if bidRem == 0 {
			bi++
		}
		if askRem == 0 {
			ai++
		}
	}
	return pairs
}

// truncatePlan keeps the first target units of a plan, splitting the
// boundary pair's quantity.
func truncatePlan(pairs []plannedPair, target int64) []plannedPair {
	var out []plannedPair
	rem := target
	for _, p := range pairs {
		if rem <= 0 {
			break
		}
		qty := p.qty
		if rem < qty {
			qty = rem
		}
		out = append(out, plannedPair{bid: p.bid, ask: p.ask, qty: qty})
		rem -= qty
	}
	return out
}

var (
	_ ShoutEngine = (*FourHeapShoutEngine)(nil)
	_ ShoutEngine = (*MaxVolumeShoutEngine)(nil)
	_ ShoutEngine = (*ThetaShoutEngine)(nil)
)
