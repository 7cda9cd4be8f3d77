package auction

import (
	"errors"
	"testing"

	"auctionhouse/internal/domain"
)

func bid(price float64) *domain.Shout {
	return &domain.Shout{ID: "b", TraderID: "t1", MarketID: "m1", Side: domain.SideBid, Price: price, Quantity: 1}
}

func ask(price float64) *domain.Shout {
	s := bid(price)
	s.Side = domain.SideAsk
	return s
}

func assertRejected(t *testing.T, err error, reason domain.RejectionReason) {
	t.Helper()
	var rej *domain.RejectionError
	if !errors.As(err, &rej) {
		t.Fatalf("expected a rejection, got %v", err)
	}
	if rej.Reason != reason {
		t.Fatalf("rejection reason = %s, want %s", rej.Reason, reason)
	}
}

func TestAlwaysAccept(t *testing.T) {
	if err := (AlwaysAccept{}).Accept(nil, bid(1), domain.EmptyQuote()); err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
}

func TestNeverAccept(t *testing.T) {
	err := (NeverAccept{}).Accept(nil, bid(100), domain.EmptyQuote())
	assertRejected(t, err, domain.ReasonNeverAccepting)
}

func TestQuoteBeatingAccept(t *testing.T) {
	quote := domain.MarketQuote{Bid: 10, Ask: 12}
	p := QuoteBeatingAccept{}

	if err := p.Accept(nil, bid(10.5), quote); err != nil {
		t.Fatalf("bid above bid quote must pass: %v", err)
	}
	assertRejected(t, p.Accept(nil, bid(10), quote), domain.ReasonOverQuote)
	assertRejected(t, p.Accept(nil, bid(9), quote), domain.ReasonOverQuote)

	if err := p.Accept(nil, ask(11.5), quote); err != nil {
		t.Fatalf("ask below ask quote must pass: %v", err)
	}
	assertRejected(t, p.Accept(nil, ask(12), quote), domain.ReasonOverQuote)

	// An empty quote side constrains nothing.
	if err := p.Accept(nil, bid(0.01), domain.EmptyQuote()); err != nil {
		t.Fatalf("empty quote must not reject: %v", err)
	}
}

func TestSelfBeatingAccept(t *testing.T) {
	p := SelfBeatingAccept{}

	if err := p.Accept(nil, bid(10), domain.EmptyQuote()); err != nil {
		t.Fatalf("no previous shout must pass: %v", err)
	}
	if err := p.Accept(bid(10), bid(11), domain.EmptyQuote()); err != nil {
		t.Fatalf("improving bid must pass: %v", err)
	}
	assertRejected(t, p.Accept(bid(10), bid(10), domain.EmptyQuote()), domain.ReasonOverSelf)

	if err := p.Accept(ask(10), ask(9), domain.EmptyQuote()); err != nil {
		t.Fatalf("improving ask must pass: %v", err)
	}
	assertRejected(t, p.Accept(ask(10), ask(11), domain.EmptyQuote()), domain.ReasonOverSelf)

	// Switching sides resets the comparison.
	if err := p.Accept(ask(10), bid(1), domain.EmptyQuote()); err != nil {
		t.Fatalf("side switch must pass: %v", err)
	}
}

func TestEquilibriumBeatingAccept(t *testing.T) {
	p := &EquilibriumBeatingAccept{LearningRate: 0.5, Delta: 1}

	// Untrained: everything passes.
	if err := p.Accept(nil, bid(0.5), domain.EmptyQuote()); err != nil {
		t.Fatalf("untrained policy must pass: %v", err)
	}

	p.ObserveTransaction(&domain.Transaction{Price: 10})
	if est, ok := p.Estimate(); !ok || est != 10 {
		t.Fatalf("estimate = %v, %v, want 10", est, ok)
	}

	if err := p.Accept(nil, bid(9), domain.EmptyQuote()); err != nil {
		t.Fatalf("bid within delta must pass: %v", err)
	}
	assertRejected(t, p.Accept(nil, bid(8.5), domain.EmptyQuote()), domain.ReasonBelowEquilibriumEstimate)

	if err := p.Accept(nil, ask(11), domain.EmptyQuote()); err != nil {
		t.Fatalf("ask within delta must pass: %v", err)
	}
	assertRejected(t, p.Accept(nil, ask(11.5), domain.EmptyQuote()), domain.ReasonBelowEquilibriumEstimate)

	// The estimate drifts toward new transaction prices.
	p.ObserveTransaction(&domain.Transaction{Price: 20})
	if est, _ := p.Estimate(); est != 15 {
		t.Fatalf("estimate after second transaction = %v, want 15", est)
	}
}

func TestHistoryAccept(t *testing.T) {
	p := &HistoryAccept{Threshold: 0.5, Window: 10}

	// No history: everything passes.
	if err := p.Accept(nil, bid(1), domain.EmptyQuote()); err != nil {
		t.Fatalf("empty history must pass: %v", err)
	}

	// Bids at 10 were accepted, bids at 5 were not.
	p.ObserveShout(bid(10), true)
	p.ObserveShout(bid(10), true)
	p.ObserveShout(bid(5), false)
	p.ObserveShout(bid(5), false)

	// A bid at 12 dominates all four entries: probability 0.5 meets the
	// threshold.
	if err := p.Accept(nil, bid(12), domain.EmptyQuote()); err != nil {
		t.Fatalf("bid at threshold must pass: %v", err)
	}
	// A bid at 6 dominates only the two refused entries.
	assertRejected(t, p.Accept(nil, bid(6), domain.EmptyQuote()), domain.ReasonBelowProbabilityThreshold)
	// Ask history is separate.
	if err := p.Accept(nil, ask(6), domain.EmptyQuote()); err != nil {
		t.Fatalf("ask with no ask history must pass: %v", err)
	}
}

func TestHistoryAcceptWindowEviction(t *testing.T) {
	p := &HistoryAccept{Threshold: 0.5, Window: 2}
	p.ObserveShout(bid(5), false)
	p.ObserveShout(bid(5), false)
	assertRejected(t, p.Accept(nil, bid(6), domain.EmptyQuote()), domain.ReasonBelowProbabilityThreshold)

	// Two accepted outcomes push the refusals out of the window.
	p.ObserveShout(bid(10), true)
	p.ObserveShout(bid(10), true)
	if err := p.Accept(nil, bid(12), domain.EmptyQuote()); err != nil {
		t.Fatalf("evicted refusals must not count: %v", err)
	}
}

func TestCombiAcceptConjunction(t *testing.T) {
	p := &CombiAccept{Policies: []AcceptingPolicy{AlwaysAccept{}, NeverAccept{}}}
	assertRejected(t, p.Accept(nil, bid(1), domain.EmptyQuote()), domain.ReasonNeverAccepting)

	all := &CombiAccept{Policies: []AcceptingPolicy{AlwaysAccept{}, AlwaysAccept{}}}
	if err := all.Accept(nil, bid(1), domain.EmptyQuote()); err != nil {
		t.Fatalf("all-accepting conjunction must pass: %v", err)
	}
}

func TestCombiAcceptDisjunction(t *testing.T) {
	p := &CombiAccept{Policies: []AcceptingPolicy{NeverAccept{}, AlwaysAccept{}}, Disjunct: true}
	if err := p.Accept(nil, bid(1), domain.EmptyQuote()); err != nil {
		t.Fatalf("disjunction with one accepting policy must pass: %v", err)
	}

	none := &CombiAccept{Policies: []AcceptingPolicy{NeverAccept{}, NeverAccept{}}, Disjunct: true}
	assertRejected(t, none.Accept(nil, bid(1), domain.EmptyQuote()), domain.ReasonNeverAccepting)
}
