package domain

import "math"

// MarketQuote is an immutable snapshot of the current best ask and bid
// quotes. An empty side is represented by an infinite sentinel: +Inf for
// the ask quote, -Inf for the bid quote.
type MarketQuote struct {
	Ask float64
	Bid float64
}

// EmptyQuote returns the quote of a market with no shouts on either side.
func EmptyQuote() MarketQuote {
	return MarketQuote{Ask: math.Inf(1), Bid: math.Inf(-1)}
}

// HasAsk reports whether the ask side of the quote is defined.
func (q MarketQuote) HasAsk() bool {
	return !math.IsInf(q.Ask, 1)
}

// HasBid reports whether the bid side of the quote is defined.
func (q MarketQuote) HasBid() bool {
	return !math.IsInf(q.Bid, -1)
}

// Mid returns (ask+bid)/2 and whether it is defined, which requires both
// sides of the quote to be present.
func (q MarketQuote) Mid() (float64, bool) {
	if !q.HasAsk() || !q.HasBid() {
		return 0, false
	}
	return (q.Ask + q.Bid) / 2, true
}
