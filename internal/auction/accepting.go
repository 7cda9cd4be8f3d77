package auction

import (
	"fmt"

	"auctionhouse/internal/domain"
)

// AlwaysAccept admits every well-formed shout.
type AlwaysAccept struct{}

func (AlwaysAccept) Accept(_, _ *domain.Shout, _ domain.MarketQuote) error {
	return nil
}

// NeverAccept refuses every shout. Used to close a market side-effect-free
// while keeping its query surface alive.
type NeverAccept struct{}

func (NeverAccept) Accept(_, _ *domain.Shout, _ domain.MarketQuote) error {
	return &domain.RejectionError{
		Reason:  domain.ReasonNeverAccepting,
		Message: "market is not accepting shouts",
	}
}

// QuoteBeatingAccept enforces the price-improvement rule: a bid must beat
// the current bid quote and an ask must undercut the current ask quote.
type QuoteBeatingAccept struct{}

func (QuoteBeatingAccept) Accept(_, incoming *domain.Shout, quote domain.MarketQuote) error {
	if incoming.IsBid() {
		if quote.HasBid() && incoming.Price <= quote.Bid {
			return &domain.RejectionError{
				Reason:  domain.ReasonOverQuote,
				Message: fmt.Sprintf("bid %.2f does not beat bid quote %.2f", incoming.Price, quote.Bid),
			}
		}
		return nil
	}
	if quote.HasAsk() && incoming.Price >= quote.Ask {
		return &domain.RejectionError{
			Reason:  domain.ReasonOverQuote,
			Message: fmt.Sprintf("ask %.2f does not beat ask quote %.2f", incoming.Price, quote.Ask),
		}
	}
	return nil
}

// SelfBeatingAccept requires a trader's new shout to improve on their own
// previous active shout: higher for bids, lower for asks.
type SelfBeatingAccept struct{}

func (SelfBeatingAccept) Accept(previous, incoming *domain.Shout, _ domain.MarketQuote) error {
	if previous == nil || previous.Side != incoming.Side {
		return nil
	}
	if incoming.IsBid() && incoming.Price <= previous.Price {
		return &domain.RejectionError{
			Reason:  domain.ReasonOverSelf,
			Message: fmt.Sprintf("bid %.2f does not beat own previous bid %.2f", incoming.Price, previous.Price),
		}
	}
	if !incoming.IsBid() && incoming.Price >= previous.Price {
		return &domain.RejectionError{
			Reason:  domain.ReasonOverSelf,
			Message: fmt.Sprintf("ask %.2f does not beat own previous ask %.2f", incoming.Price, previous.Price),
		}
	}
	return nil
}

// EquilibriumBeatingAccept admits only shouts on the trading side of an
// equilibrium-price estimate learned incrementally from executed
// transaction prices: bids must reach estimate−delta, asks must stay
// within estimate+delta. Until the first transaction everything is
// admitted.
type EquilibriumBeatingAccept struct {
	LearningRate float64 // weight of each new transaction price, (0,1]
	Delta        float64 // slack around the estimate

	estimate float64
	trained  bool
}

func (p *EquilibriumBeatingAccept) Accept(_, incoming *domain.Shout, _ domain.MarketQuote) error {
	if !p.trained {
		return nil
	}
	if incoming.IsBid() {
		if incoming.Price < p.estimate-p.Delta {
			return &domain.RejectionError{
				Reason:  domain.ReasonBelowEquilibriumEstimate,
				Message: fmt.Sprintf("bid %.2f below equilibrium estimate %.2f (delta %.2f)", incoming.Price, p.estimate, p.Delta),
			}
		}
		return nil
	}
	if incoming.Price > p.estimate+p.Delta {
		return &domain.RejectionError{
			Reason:  domain.ReasonBelowEquilibriumEstimate,
			Message: fmt.Sprintf("ask %.2f above equilibrium estimate %.2f (delta %.2f)", incoming.Price, p.estimate, p.Delta),
		}
	}
	return nil
}

// ObserveTransaction folds the executed price into the estimate as an
// exponential moving average.
func (p *EquilibriumBeatingAccept) ObserveTransaction(tx *domain.Transaction) {
	if !p.trained {
		p.estimate = tx.Price
		p.trained = true
		return
	}
	p.estimate += p.LearningRate * (tx.Price - p.estimate)
}

// Estimate returns the current equilibrium-price estimate and whether any
// transaction has trained it yet.
func (p *EquilibriumBeatingAccept) Estimate() (float64, bool) {
	return p.estimate, p.trained
}

// historyEntry is one remembered admission outcome.
type historyEntry struct {
	side     domain.Side
	price    float64
	accepted bool
}

// HistoryAccept estimates the probability that a shout at the offered
// price will be accepted into the market, from a rolling window of past
// shouts and their outcomes, and refuses shouts below a probability
// threshold.
//
// The estimate for a bid at price p is the accepted fraction of remembered
// bids at prices ≤ p (a higher bid than an accepted one would also have
// been accepted); asks mirror with ≥. A price with no history on its side
// is admitted.
type HistoryAccept struct {
	Threshold float64 // minimum admission probability, [0,1]
	Window    int     // number of remembered outcomes

	history []historyEntry
}

func (p *HistoryAccept) Accept(_, incoming *domain.Shout, _ domain.MarketQuote) error {
	var relevant, matched int
	for _, h := range p.history {
		if h.side != incoming.Side {
			continue
		}
		if incoming.IsBid() && h.price > incoming.Price {
			continue
		}
		if !incoming.IsBid() && h.price < incoming.Price {
			continue
		}
		relevant++
		if h.accepted {
			matched++
		}
	}
	if relevant == 0 {
		return nil
	}
	prob := float64(matched) / float64(relevant)
	if prob < p.Threshold {
		return &domain.RejectionError{
			Reason:  domain.ReasonBelowProbabilityThreshold,
			Message: fmt.Sprintf("match probability %.2f below threshold %.2f", prob, p.Threshold),
		}
	}
	return nil
}

// ObserveShout records an admission outcome, evicting the oldest entry
// once the window is full.
func (p *HistoryAccept) ObserveShout(s *domain.Shout, accepted bool) {
	p.history = append(p.history, historyEntry{
		side:     s.Side,
		price:    s.Price,
		accepted: accepted,
	})
	if p.Window > 0 && len(p.history) > p.Window {
		p.history = p.history[len(p.history)-p.Window:]
	}
}

// CombiAccept composes accepting policies with boolean AND or OR.
type CombiAccept struct {
	Policies []AcceptingPolicy
	Disjunct bool // false: all must accept; true: any may accept
}

func (p *CombiAccept) Accept(previous, incoming *domain.Shout, quote domain.MarketQuote) error {
	var firstErr error
	for _, sub := range p.Policies {
		err := sub.Accept(previous, incoming, quote)
		if err == nil {
			if p.Disjunct {
				return nil
			}
			continue
		}
		if !p.Disjunct {
			return err
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if p.Disjunct && len(p.Policies) > 0 {
		return firstErr
	}
	return nil
}
