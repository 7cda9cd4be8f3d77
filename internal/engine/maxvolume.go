package engine

import (
	"auctionhouse/internal/domain"
)

// MaxVolumeShoutEngine maximizes traded volume instead of allocative
// surplus. It ignores the four-heap's intra-marginal-first bias and only
// requires each pair to cross on its own: walking bids from the highest
// down, each bid is paired with the highest-priced still-unmatched ask at
// or below it, which spends high bids on high asks and leaves cheap asks
// for the lower bids.
//
// The plan is recomputed lazily from the whole book on every mutation.
type MaxVolumeShoutEngine struct {
	bookEngine
}

// NewMaxVolumeShoutEngine creates an empty volume-maximizing engine.
func NewMaxVolumeShoutEngine() *MaxVolumeShoutEngine {
	e := &MaxVolumeShoutEngine{}
	e.bookEngine = newBookEngine(maxVolumePlan)
	e.replan()
	return e
}

// maxVolumePlan pairs bids (descending) against asks, consuming asks from
// the highest feasible price down. An ask skipped for being above the
// current bid is above every later bid too, so it is discarded for good.
func maxVolumePlan(bids, asks []*domain.Shout) []plannedPair {
	var pairs []plannedPair
	ai := len(asks) - 1
	var askRem int64
	if ai >= 0 {
		askRem = asks[ai].Quantity
	}
	for _, bid := range bids {
		if ai < 0 {
			break
		}
		bidRem := bid.Quantity
		for bidRem > 0 && ai >= 0 {
			if asks[ai].Price > bid.Price {
				ai--
				if ai >= 0 {
					askRem = asks[ai].Quantity
				}
				continue
			}
			qty := bidRem
			if askRem < qty {
				qty = askRem
			}
			pairs = append(pairs, plannedPair{bid: bid, ask: asks[ai], qty: qty})
			bidRem -= qty
			askRem -= qty
			if askRem == 0 {
				ai--
				if ai >= 0 {
					askRem = asks[ai].Quantity
				}
			}
		}
	}
	return pairs
}

// planQuantity sums the planned units of a match plan.
func planQuantity(pairs []plannedPair) int64 {
	var q int64
	for _, p := range pairs {
		q += p.qty
	}
	return q
}

// equilibriumQuantity is the competitive-equilibrium trade volume: the
// number of units for which the k-th highest bid unit still prices at or
// above the k-th lowest ask unit.
func equilibriumQuantity(bids, asks []*domain.Shout) int64 {
	var q int64
	bi, ai := 0, 0
	var bidRem, askRem int64
	for bi < len(bids) && ai < len(asks) {
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
		q += step
		bidRem -= step
		askRem -= step
		if bidRem == 0 {
			bi++
		}
		if askRem == 0 {
			ai++
		}
	}
	return q
}
