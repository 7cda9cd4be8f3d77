package service

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"auctionhouse/internal/auction"
	"auctionhouse/internal/domain"
	"auctionhouse/internal/store"
)

func newTestServices() (*TraderService, *MarketService) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	traders := store.NewTraderStore()
	txs := store.NewTransactionStore()
	traderSvc := NewTraderService(traders)
	marketSvc := NewMarketService(traders, txs, auction.NopSink{}, nil, logger)
	return traderSvc, marketSvc
}

func registerTrader(t *testing.T, svc *TraderService, id, role string, valuation float64) {
	t.Helper()
	_, err := svc.Register(RegisterTraderRequest{
		TraderID:    id,
		Role:        role,
		Valuation:   valuation,
		Entitlement: 1,
	})
	if err != nil {
		t.Fatalf("register %s: %v", id, err)
	}
}

func TestRegisterTraderValidation(t *testing.T) {
	traderSvc, _ := newTestServices()
	tests := []struct {
		name string
		req  RegisterTraderRequest
	}{
		{"bad id", RegisterTraderRequest{TraderID: "spaces here", Role: "buyer", Valuation: 1, Entitlement: 1}},
		{"bad role", RegisterTraderRequest{TraderID: "t1", Role: "arbitrageur", Valuation: 1, Entitlement: 1}},
		{"negative valuation", RegisterTraderRequest{TraderID: "t1", Role: "buyer", Valuation: -1, Entitlement: 1}},
		{"zero entitlement", RegisterTraderRequest{TraderID: "t1", Role: "buyer", Valuation: 1, Entitlement: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := traderSvc.Register(tt.req)
			var validationErr *domain.ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreateMarketValidation(t *testing.T) {
	_, marketSvc := newTestServices()

	tests := []struct {
		name string
		req  CreateMarketRequest
	}{
		{"bad id", CreateMarketRequest{MarketID: "has spaces"}},
		{"unknown matching", CreateMarketRequest{MarketID: "m1", Matching: "psychic"}},
		{"theta out of range", CreateMarketRequest{MarketID: "m1", Matching: "theta", Theta: 2}},
		{"unknown accepting", CreateMarketRequest{MarketID: "m1", Accepting: []string{"vibes"}}},
		{"unknown pricing", CreateMarketRequest{MarketID: "m1", Pricing: "auctioneer_whim"}},
		{"k out of range", CreateMarketRequest{MarketID: "m1", K: 2}},
		{"unknown clearing", CreateMarketRequest{MarketID: "m1", Clearing: "eventually"}},
		{"interval too small", CreateMarketRequest{MarketID: "m1", Clearing: "interval"}},
		{"unknown quoting", CreateMarketRequest{MarketID: "m1", Quoting: "three_sided"}},
		{"unknown charging", CreateMarketRequest{MarketID: "m1", Charging: "generous"}},
		{"fraction out of range", CreateMarketRequest{MarketID: "m1", Charging: "fractional", Fraction: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := marketSvc.CreateMarket(tt.req)
			var validationErr *domain.ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreateMarketDuplicate(t *testing.T) {
	_, marketSvc := newTestServices()

	if _, err := marketSvc.CreateMarket(CreateMarketRequest{MarketID: "m1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := marketSvc.CreateMarket(CreateMarketRequest{MarketID: "m1"})
	if !errors.Is(err, domain.ErrMarketAlreadyExists) {
		t.Fatalf("expected ErrMarketAlreadyExists, got %v", err)
	}
}

func TestCreateMarketPolicyMatrix(t *testing.T) {
	_, marketSvc := newTestServices()

	reqs := []CreateMarketRequest{
		{MarketID: "cda"},
		{MarketID: "mv", Matching: "maxvolume"},
		{MarketID: "th", Matching: "theta", Theta: 0.5},
		{MarketID: "strict", Accepting: []string{"quote_beating", "self_beating"}},
		{MarketID: "loose", Accepting: []string{"quote_beating", "self_beating"}, AcceptingMode: "or"},
		{MarketID: "learned", Accepting: []string{"equilibrium_beating"}, LearningRate: 0.2, Delta: 1},
		{MarketID: "hist", Accepting: []string{"history"}, Threshold: 0.5, Window: 50},
		{MarketID: "uni", Pricing: "uniform", K: 0.3},
		{MarketID: "avg", Pricing: "average", N: 5},
		{MarketID: "batch", Clearing: "interval", Interval: 10},
		{MarketID: "dice", Clearing: "probabilistic", Probability: 0.5, Seed: 42},
		{MarketID: "ticked", Clearing: "timed"},
		{MarketID: "shallow", Quoting: "one_sided"},
		{MarketID: "fees", Charging: "fixed", ShoutFee: 0.1, TransactionFee: 1},
		{MarketID: "cut", Charging: "fractional", Fraction: 0.05},
	}
	for _, req := range reqs {
		if _, err := marketSvc.CreateMarket(req); err != nil {
			t.Fatalf("create %s: %v", req.MarketID, err)
		}
	}
}

func TestSubmitShoutRequiresKnownTraderAndMarket(t *testing.T) {
	traderSvc, marketSvc := newTestServices()

	_, err := marketSvc.SubmitShout("nope", SubmitShoutRequest{TraderID: "t1", Side: "bid", Price: 1, Quantity: 1})
	if !errors.Is(err, domain.ErrMarketNotFound) {
		t.Fatalf("expected ErrMarketNotFound, got %v", err)
	}

	if _, err := marketSvc.CreateMarket(CreateMarketRequest{MarketID: "m1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = marketSvc.SubmitShout("m1", SubmitShoutRequest{TraderID: "ghost", Side: "bid", Price: 1, Quantity: 1})
	if !errors.Is(err, domain.ErrTraderNotFound) {
		t.Fatalf("expected ErrTraderNotFound, got %v", err)
	}

	registerTrader(t, traderSvc, "t1", "buyer", 10)
	_, err = marketSvc.SubmitShout("m1", SubmitShoutRequest{TraderID: "t1", Side: "sideways", Price: 1, Quantity: 1})
	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error for bad side, got %v", err)
	}
}

func TestMarketLifecycleEndToEnd(t *testing.T) {
	traderSvc, marketSvc := newTestServices()
	registerTrader(t, traderSvc, "buyer", "buyer", 15)
	registerTrader(t, traderSvc, "seller", "seller", 8)

	if _, err := marketSvc.CreateMarket(CreateMarketRequest{MarketID: "m1"}); err != nil {
		t.Fatalf("create market: %v", err)
	}

	askShout, err := marketSvc.SubmitShout("m1", SubmitShoutRequest{TraderID: "seller", Side: "ask", Price: 10, Quantity: 5})
	if err != nil {
		t.Fatalf("submit ask: %v", err)
	}
	if askShout.State != domain.ShoutStatePlaced {
		t.Fatalf("ask state = %s, want placed", askShout.State)
	}

	// The resting ask is quoted and visible in the book.
	quote, err := marketSvc.Quote("m1")
	if err != nil || !quote.HasAsk() || quote.Ask != 10 {
		t.Fatalf("quote = %+v, %v", quote, err)
	}
	book, err := marketSvc.Book("m1")
	if err != nil || len(book.Asks) != 1 || book.Asks[0].Price != 10 || book.Asks[0].Quantity != 5 {
		t.Fatalf("book = %+v, %v", book, err)
	}

	if _, err := marketSvc.SubmitShout("m1", SubmitShoutRequest{TraderID: "buyer", Side: "bid", Price: 12, Quantity: 5}); err != nil {
		t.Fatalf("submit bid: %v", err)
	}

	a, err := marketSvc.Get("m1")
	if err != nil {
		t.Fatalf("get market: %v", err)
	}
	pending := a.PendingTransactions()
	if len(pending) != 1 {
		t.Fatalf("pending = %v, want one transaction", pending)
	}

	tx, err := marketSvc.NotifyOutcome("m1", pending[0], "executed")
	if err != nil {
		t.Fatalf("notify outcome: %v", err)
	}
	if tx.State != domain.TransactionStateExecuted {
		t.Fatalf("tx state = %s, want executed", tx.State)
	}

	// Analytics over the executed session.
	report, err := marketSvc.Efficiency("m1")
	if err != nil {
		t.Fatalf("efficiency: %v", err)
	}
	// Five units: buyer gains (15-11)·5, seller gains (11-8)·5.
	if report.ActualSurplus != 35 {
		t.Fatalf("actual surplus = %v, want 35", report.ActualSurplus)
	}

	if err := marketSvc.CloseSession("m1"); err != nil {
		t.Fatalf("close: %v", err)
	}
	book, err = marketSvc.Book("m1")
	if err != nil || len(book.Bids) != 0 || len(book.Asks) != 0 {
		t.Fatalf("book after close = %+v, %v, want empty", book, err)
	}
	report, err = marketSvc.Efficiency("m1")
	if err != nil {
		t.Fatalf("efficiency after close: %v", err)
	}
	if report.ActualSurplus != 0 {
		t.Fatalf("actual surplus after close = %v, want 0", report.ActualSurplus)
	}
}

func TestNotifyOutcomeValidation(t *testing.T) {
	_, marketSvc := newTestServices()
	if _, err := marketSvc.CreateMarket(CreateMarketRequest{MarketID: "m1"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err := marketSvc.NotifyOutcome("m1", 1, "maybe")
	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestWithdrawShout(t *testing.T) {
	traderSvc, marketSvc := newTestServices()
	registerTrader(t, traderSvc, "buyer", "buyer", 15)
	if _, err := marketSvc.CreateMarket(CreateMarketRequest{MarketID: "m1"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	s, err := marketSvc.SubmitShout("m1", SubmitShoutRequest{TraderID: "buyer", Side: "bid", Price: 10, Quantity: 5})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := marketSvc.WithdrawShout("m1", s.ID); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if err := marketSvc.WithdrawShout("m1", s.ID); !errors.Is(err, domain.ErrShoutNotFound) {
		t.Fatalf("expected ErrShoutNotFound, got %v", err)
	}
}

func TestBookAggregatesAndOrdersLevels(t *testing.T) {
	traderSvc, marketSvc := newTestServices()
	registerTrader(t, traderSvc, "buyer", "buyer", 100)
	if _, err := marketSvc.CreateMarket(CreateMarketRequest{MarketID: "m1"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	for _, price := range []float64{5, 7, 5} {
		if _, err := marketSvc.SubmitShout("m1", SubmitShoutRequest{TraderID: "buyer", Side: "bid", Price: price, Quantity: 2}); err != nil {
			t.Fatalf("submit bid at %v: %v", price, err)
		}
	}

	book, err := marketSvc.Book("m1")
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if len(book.Bids) != 2 {
		t.Fatalf("got %d bid levels, want 2", len(book.Bids))
	}
	// Best (highest) level first; equal prices aggregate.
	if book.Bids[0].Price != 7 || book.Bids[0].Quantity != 2 {
		t.Fatalf("top level = %+v, want price 7 quantity 2", book.Bids[0])
	}
	if book.Bids[1].Price != 5 || book.Bids[1].Quantity != 4 || book.Bids[1].ShoutCount != 2 {
		t.Fatalf("second level = %+v, want price 5 quantity 4 from 2 shouts", book.Bids[1])
	}
}

func TestEquilibriumSurface(t *testing.T) {
	traderSvc, marketSvc := newTestServices()
	registerTrader(t, traderSvc, "buyer", "buyer", 15)
	registerTrader(t, traderSvc, "seller", "seller", 8)
	// Interval clearing far in the future keeps the matched pair resident
	// so the snapshot shows an equilibrium.
	if _, err := marketSvc.CreateMarket(CreateMarketRequest{MarketID: "m1", Clearing: "interval", Interval: 100}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := marketSvc.SubmitShout("m1", SubmitShoutRequest{TraderID: "seller", Side: "ask", Price: 10, Quantity: 5}); err != nil {
		t.Fatalf("submit ask: %v", err)
	}
	if _, err := marketSvc.SubmitShout("m1", SubmitShoutRequest{TraderID: "buyer", Side: "bid", Price: 12, Quantity: 5}); err != nil {
		t.Fatalf("submit bid: %v", err)
	}

	eq, err := marketSvc.Equilibrium("m1")
	if err != nil {
		t.Fatalf("equilibrium: %v", err)
	}
	if !eq.Found || eq.MinPrice != 10 || eq.MaxPrice != 12 || eq.Quantity != 5 {
		t.Fatalf("unexpected equilibrium %+v", eq)
	}
}
