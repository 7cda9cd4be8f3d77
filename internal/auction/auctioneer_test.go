package auction

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"auctionhouse/internal/domain"
	"auctionhouse/internal/engine"
)

// captureSink records every published event.
type captureSink struct {
	mu     sync.Mutex
	events []domain.Event
}

func (s *captureSink) Publish(ev domain.Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *captureSink) byType(t domain.EventType) []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Event
	for _, ev := range s.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func newTestAuctioneer(cfg Config) (*Auctioneer, *captureSink) {
	sink := &captureSink{}
	cfg.MarketID = "m1"
	cfg.Sink = sink
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg), sink
}

func submitShout(t *testing.T, a *Auctioneer, trader string, side domain.Side, price float64, qty int64) *domain.Shout {
	t.Helper()
	s := domain.NewShout(trader, "m1", side, price, qty)
	if err := a.NewShout(s); err != nil {
		t.Fatalf("submit %s %s %g: %v", trader, side, price, err)
	}
	return s
}

func TestAuctioneerContinuousFlow(t *testing.T) {
	a, sink := newTestAuctioneer(Config{})

	ask := submitShout(t, a, "seller", domain.SideAsk, 10, 5)
	if ask.State != domain.ShoutStatePlaced {
		t.Fatalf("ask state = %s, want placed", ask.State)
	}

	bid := submitShout(t, a, "buyer", domain.SideBid, 12, 5)

	// Continuous clearing proposes a transaction immediately.
	pending := a.PendingTransactions()
	if len(pending) != 1 || pending[0] != 1 {
		t.Fatalf("pending = %v, want [1]", pending)
	}
	if bid.State != domain.ShoutStatePending || ask.State != domain.ShoutStatePending {
		t.Fatalf("shout states %s/%s, want pending/pending", bid.State, ask.State)
	}
	if got := sink.byType(domain.EventTransactionProposed); len(got) != 1 {
		t.Fatalf("got %d proposed events, want 1", len(got))
	}

	tx, err := a.TransactionOutcome(1, true)
	if err != nil {
		t.Fatalf("outcome: %v", err)
	}
	if tx.State != domain.TransactionStateExecuted {
		t.Fatalf("tx state = %s, want executed", tx.State)
	}
	if tx.Price != 11 {
		t.Fatalf("tx price = %v, want k=0.5 interpolation 11", tx.Price)
	}
	if tx.ResolvedAt == nil {
		t.Fatal("resolved transaction must carry a timestamp")
	}
	if bid.State != domain.ShoutStateMatched || ask.State != domain.ShoutStateMatched {
		t.Fatalf("shout states %s/%s, want matched/matched", bid.State, ask.State)
	}
	if len(a.PendingTransactions()) != 0 {
		t.Fatal("pending queue must be empty after resolution")
	}
}

func TestAuctioneerRejectsInvalidShout(t *testing.T) {
	a, _ := newTestAuctioneer(Config{})

	s := domain.NewShout("t1", "m1", domain.SideBid, 10, 0)
	err := a.NewShout(s)
	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAuctioneerAcceptingRejection(t *testing.T) {
	a, sink := newTestAuctioneer(Config{Accepting: NeverAccept{}})

	s := domain.NewShout("t1", "m1", domain.SideBid, 10, 5)
	err := a.NewShout(s)
	var rej *domain.RejectionError
	if !errors.As(err, &rej) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if s.State != domain.ShoutStateRejected {
		t.Fatalf("shout state = %s, want rejected", s.State)
	}
	if got := sink.byType(domain.EventShoutRejected); len(got) != 1 {
		t.Fatalf("got %d rejected events, want 1", len(got))
	}
}

func TestAuctioneerWithdraw(t *testing.T) {
	a, _ := newTestAuctioneer(Config{})

	s := submitShout(t, a, "t1", domain.SideBid, 10, 5)
	if err := a.RemoveShout(s.ID); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if err := a.RemoveShout(s.ID); !errors.Is(err, domain.ErrShoutNotFound) {
		t.Fatalf("expected ErrShoutNotFound, got %v", err)
	}
}

func TestAuctioneerWithdrawPendingRefused(t *testing.T) {
	a, _ := newTestAuctioneer(Config{})

	submitShout(t, a, "seller", domain.SideAsk, 10, 5)
	bid := submitShout(t, a, "buyer", domain.SideBid, 12, 5)

	// The pair is pending in a proposed transaction now.
	err := a.RemoveShout(bid.ID)
	if !errors.Is(err, domain.ErrShoutNotWithdrawable) {
		t.Fatalf("expected ErrShoutNotWithdrawable, got %v", err)
	}
}

func TestAuctioneerRejectedOutcomeRollsBack(t *testing.T) {
	a, sink := newTestAuctioneer(Config{})

	ask := submitShout(t, a, "seller", domain.SideAsk, 10, 5)
	bid := submitShout(t, a, "buyer", domain.SideBid, 12, 5)

	tx, err := a.TransactionOutcome(1, false)
	if err != nil {
		t.Fatalf("outcome: %v", err)
	}
	if tx.State != domain.TransactionStateRejected {
		t.Fatalf("tx state = %s, want rejected", tx.State)
	}
	if bid.State != domain.ShoutStatePlaced || ask.State != domain.ShoutStatePlaced {
		t.Fatalf("shout states %s/%s, want placed/placed", bid.State, ask.State)
	}

	// The rolled-back pair is back in the book and still crosses; an
	// explicit clear proposes a fresh transaction with a new id.
	var resident int
	a.WithEngine(func(e engine.ShoutEngine) {
		e.AscendBids(func(*domain.Shout) bool { resident++; return true })
		e.AscendAsks(func(*domain.Shout) bool { resident++; return true })
	})
	if resident != 2 {
		t.Fatalf("resident shouts after rollback = %d, want 2", resident)
	}

	a.Clear()
	pending := a.PendingTransactions()
	if len(pending) != 1 || pending[0] != 2 {
		t.Fatalf("pending = %v, want [2]", pending)
	}
	if got := sink.byType(domain.EventTransactionRejected); len(got) != 1 {
		t.Fatalf("got %d rejected events, want 1", len(got))
	}
}

func TestAuctioneerOutOfOrderOutcomeHalts(t *testing.T) {
	a, sink := newTestAuctioneer(Config{})

	submitShout(t, a, "seller", domain.SideAsk, 10, 5)
	submitShout(t, a, "buyer", domain.SideBid, 12, 5)

	_, err := a.TransactionOutcome(99, true)
	if !errors.Is(err, domain.ErrTransactionDesync) {
		t.Fatalf("expected ErrTransactionDesync, got %v", err)
	}
	if !a.Halted() {
		t.Fatal("market must halt on a desynchronized notification")
	}
	if got := sink.byType(domain.EventMarketHalted); len(got) != 1 {
		t.Fatalf("got %d halted events, want 1", len(got))
	}

	// Every further mutation is refused until the session closes.
	s := domain.NewShout("t1", "m1", domain.SideBid, 10, 5)
	if err := a.NewShout(s); !errors.Is(err, domain.ErrMarketHalted) {
		t.Fatalf("expected ErrMarketHalted, got %v", err)
	}
	if _, err := a.TransactionOutcome(1, true); !errors.Is(err, domain.ErrMarketHalted) {
		t.Fatalf("expected ErrMarketHalted, got %v", err)
	}
}

func TestAuctioneerCloseSessionResets(t *testing.T) {
	a, sink := newTestAuctioneer(Config{})

	submitShout(t, a, "seller", domain.SideAsk, 10, 5)
	submitShout(t, a, "buyer", domain.SideBid, 12, 5)
	_, _ = a.TransactionOutcome(99, true) // force a halt

	a.CloseSession()

	if a.Halted() {
		t.Fatal("closing the session must clear the halt")
	}
	if len(a.PendingTransactions()) != 0 {
		t.Fatal("pending queue must be discarded")
	}
	q := a.Quote()
	if q.HasAsk() || q.HasBid() {
		t.Fatalf("quote must be empty after close, got %+v", q)
	}
	if got := sink.byType(domain.EventSessionClosed); len(got) != 1 {
		t.Fatalf("got %d session events, want 1", len(got))
	}

	// The market accepts shouts again.
	submitShout(t, a, "t1", domain.SideBid, 10, 5)
}

func TestAuctioneerQuoteUpdates(t *testing.T) {
	a, sink := newTestAuctioneer(Config{})

	submitShout(t, a, "seller", domain.SideAsk, 10, 5)
	q := a.Quote()
	if !q.HasAsk() || q.Ask != 10 {
		t.Fatalf("quote ask = %+v, want 10", q)
	}
	if got := sink.byType(domain.EventQuoteUpdated); len(got) == 0 {
		t.Fatal("expected a quote update event")
	}
}

func TestAuctioneerCharges(t *testing.T) {
	a, _ := newTestAuctioneer(Config{
		Charging: FixedCharging{ShoutFee: 0.25, TransactionFee: 1},
	})

	submitShout(t, a, "seller", domain.SideAsk, 10, 5)
	submitShout(t, a, "buyer", domain.SideBid, 12, 5)
	if _, err := a.TransactionOutcome(1, true); err != nil {
		t.Fatalf("outcome: %v", err)
	}

	charges := a.Charges()
	if charges["seller"] != 1.25 || charges["buyer"] != 1.25 {
		t.Fatalf("charges = %v, want 1.25 per side", charges)
	}
}

func TestAuctioneerObserversTrainOnExecution(t *testing.T) {
	accepting := &EquilibriumBeatingAccept{LearningRate: 0.5, Delta: 0}
	a, _ := newTestAuctioneer(Config{Accepting: accepting})

	submitShout(t, a, "seller", domain.SideAsk, 10, 5)
	submitShout(t, a, "buyer", domain.SideBid, 12, 5)
	if _, err := a.TransactionOutcome(1, true); err != nil {
		t.Fatalf("outcome: %v", err)
	}

	est, trained := accepting.Estimate()
	if !trained || est != 11 {
		t.Fatalf("estimate = %v, %v, want trained at 11", est, trained)
	}

	// The trained policy now refuses a bid below the estimate.
	s := domain.NewShout("buyer", "m1", domain.SideBid, 9, 5)
	var rej *domain.RejectionError
	if err := a.NewShout(s); !errors.As(err, &rej) {
		t.Fatalf("expected rejection below estimate, got %v", err)
	}
}

func TestAuctioneerReconcileShout(t *testing.T) {
	a, _ := newTestAuctioneer(Config{})

	s := submitShout(t, a, "t1", domain.SideBid, 10, 5)

	update := &domain.Shout{ID: s.ID, TraderID: "t1-prime", MarketID: "m1", Side: domain.SideBid, Price: 11, Quantity: 5}
	if err := a.ReconcileShout(update); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if s.TraderID != "t1-prime" || s.Price != 11 {
		t.Fatalf("shout not reconciled: %+v", s)
	}
	q := a.Quote()
	if q.Bid != 11 {
		t.Fatalf("quote bid = %v, want repositioned 11", q.Bid)
	}
}

func TestAuctioneerReconcilePriceKeepsSplitQuantity(t *testing.T) {
	// Batched clearing keeps the partially matched ask resident as two
	// split siblings while its price is reconciled.
	a, _ := newTestAuctioneer(Config{Clearing: &IntervalClearing{N: 100}})

	ask := submitShout(t, a, "seller", domain.SideAsk, 10, 10)
	submitShout(t, a, "buyer", domain.SideBid, 12, 4)

	update := &domain.Shout{ID: ask.ID, TraderID: "seller", MarketID: "m1", Side: domain.SideAsk, Price: 9, Quantity: 10}
	if err := a.ReconcileShout(update); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	if ask.Price != 9 || ask.Quantity != 10 {
		t.Fatalf("reconciled ask = %+v, want 10 units at 9", ask)
	}
	var resident int64
	a.WithEngine(func(e engine.ShoutEngine) {
		e.AscendAsks(func(s *domain.Shout) bool {
			if s.ID == ask.ID {
				resident += s.Quantity
			}
			return true
		})
		if got := e.MatchedQuantity(); got != 4 {
			t.Fatalf("matched quantity = %d, want 4", got)
		}
	})
	if resident != 10 {
		t.Fatalf("resident ask units = %d, want the full 10 back", resident)
	}
}

func TestAuctioneerReconcilePriceRefusedWhileMatched(t *testing.T) {
	a, _ := newTestAuctioneer(Config{})

	submitShout(t, a, "seller", domain.SideAsk, 10, 5)
	bid := submitShout(t, a, "buyer", domain.SideBid, 12, 5)
	if _, err := a.TransactionOutcome(1, true); err != nil {
		t.Fatalf("outcome: %v", err)
	}

	update := &domain.Shout{ID: bid.ID, TraderID: "buyer", MarketID: "m1", Side: domain.SideBid, Price: 20, Quantity: 5}
	err := a.ReconcileShout(update)
	if !errors.Is(err, domain.ErrIllegalShoutState) {
		t.Fatalf("expected ErrIllegalShoutState, got %v", err)
	}
}
