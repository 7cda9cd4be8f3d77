package auction

import (
	"auctionhouse/internal/domain"
	"auctionhouse/internal/engine"
)

// TwoSidedQuoting derives the quote from both the matched and unmatched
// boundaries: the ask quote is the lowest price a new bid must reach to
// trade, min(lowest unmatched ask, lowest matched bid); the bid quote is
// the highest price a new ask must undercut, max(highest unmatched bid,
// highest matched ask). The two quotes bracket the clearing range.
type TwoSidedQuoting struct{}

func (TwoSidedQuoting) Quote(e engine.ShoutEngine) domain.MarketQuote {
	q := domain.EmptyQuote()
	if s, ok := e.BestUnmatchedAsk(); ok {
		q.Ask = s.Price
	}
	if s, ok := e.LowestMatchedBid(); ok && s.Price < q.Ask {
		q.Ask = s.Price
	}
	if s, ok := e.BestUnmatchedBid(); ok {
		q.Bid = s.Price
	}
	if s, ok := e.HighestMatchedAsk(); ok && s.Price > q.Bid {
		q.Bid = s.Price
	}
	return q
}

// OneSidedQuoting quotes only the unmatched extremes: the best resting
// prices a counterparty could hit directly.
type OneSidedQuoting struct{}

func (OneSidedQuoting) Quote(e engine.ShoutEngine) domain.MarketQuote {
	q := domain.EmptyQuote()
	if s, ok := e.BestUnmatchedAsk(); ok {
		q.Ask = s.Price
	}
	if s, ok := e.BestUnmatchedBid(); ok {
		q.Bid = s.Price
	}
	return q
}
