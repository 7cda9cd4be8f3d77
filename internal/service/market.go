package service

import (
	"fmt"
	"log/slog"
	"math/rand"
	"regexp"
	"sync"

	"auctionhouse/internal/analytics"
	"auctionhouse/internal/auction"
	"auctionhouse/internal/domain"
	"auctionhouse/internal/engine"
	"auctionhouse/internal/store"
)

var marketIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// CreateMarketRequest selects the matching engine and the policy set of a
// new market. Zero values fall back to continuous-double-auction defaults.
type CreateMarketRequest struct {
	MarketID string

	Matching string  // fourheap (default), maxvolume, theta
	Theta    float64 // theta engine coefficient, [-1,1]

	Accepting     []string // always, never, quote_beating, self_beating, equilibrium_beating, history
	AcceptingMode string   // and (default), or
	LearningRate  float64  // equilibrium_beating
	Delta         float64  // equilibrium_beating slack
	Threshold     float64  // history admission probability
	Window        int      // history window size

	Pricing string  // discriminatory (default), uniform, average
	K       float64 // pricing interpolation weight, [0,1]
	N       int     // average pricing window

	Clearing    string  // continuous (default), interval, probabilistic, timed
	Interval    int     // interval clearing: clear every n-th shout
	Probability float64 // probabilistic clearing
	Seed        int64   // probabilistic clearing RNG seed

	Quoting string // two_sided (default), one_sided

	Charging       string  // free (default), fixed, fractional
	ShoutFee       float64 // fixed charging
	TransactionFee float64 // fixed charging
	Fraction       float64 // fractional charging
}

// SubmitShoutRequest represents one inbound shout.
type SubmitShoutRequest struct {
	TraderID string
	Side     string
	Price    float64
	Quantity int64
}

// PriceLevel aggregates the book at one price.
type PriceLevel struct {
	Price      float64
	Quantity   int64
	ShoutCount int
}

// BookSnapshot is a non-destructive view of a market's book: bids best
// (highest) first, asks best (lowest) first.
type BookSnapshot struct {
	Bids []PriceLevel
	Asks []PriceLevel
}

// MarketService owns the registry of markets and implements the inbound
// boundary operations and the query surface.
type MarketService struct {
	mu      sync.RWMutex
	markets map[string]*auction.Auctioneer

	traders   *store.TraderStore
	txs       *store.TransactionStore
	sink      auction.EventSink
	scheduler *ClearingScheduler
	logger    *slog.Logger
}

// NewMarketService creates a MarketService with the given dependencies.
func NewMarketService(
	traders *store.TraderStore,
	txs *store.TransactionStore,
	sink auction.EventSink,
	scheduler *ClearingScheduler,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
		markets:   make(map[string]*auction.Auctioneer),
		traders:   traders,
		txs:       txs,
		sink:      sink,
		scheduler: scheduler,
		logger:    logger,
	}
}

// CreateMarket validates the request, assembles the engine and policies,
// and registers the market.
func (s *MarketService) CreateMarket(req CreateMarketRequest) (*auction.Auctioneer, error) {
	if !marketIDRegex.MatchString(req.MarketID) {
		return nil, &domain.ValidationError{
			Message: "market_id must match ^[a-zA-Z0-9_-]{1,64}$",
		}
	}

	eng, err := buildEngine(req)
	if err != nil {
		return nil, err
	}
	accepting, err := buildAccepting(req)
	if err != nil {
		return nil, err
	}
	pricing, err := buildPricing(req)
	if err != nil {
		return nil, err
	}
	clearing, timed, err := buildClearing(req)
	if err != nil {
		return nil, err
	}
	quoting, err := buildQuoting(req)
	if err != nil {
		return nil, err
	}
	charging, err := buildCharging(req)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.markets[req.MarketID]; ok {
		return nil, domain.ErrMarketAlreadyExists
	}
	a := auction.New(auction.Config{
		MarketID:  req.MarketID,
		Engine:    eng,
		Accepting: accepting,
		Pricing:   pricing,
		Clearing:  clearing,
		Quoting:   quoting,
		Charging:  charging,
		Sink:      s.sink,
		Logger:    s.logger,
	})
	s.markets[req.MarketID] = a
	if timed && s.scheduler != nil {
		s.scheduler.Add(a)
	}
	s.logger.Info("market created",
		slog.String("market_id", req.MarketID),
		slog.String("matching", orDefault(req.Matching, "fourheap")),
		slog.String("clearing", orDefault(req.Clearing, "continuous")),
	)
	return a, nil
}

// Get returns the auctioneer running the given market.
func (s *MarketService) Get(marketID string) (*auction.Auctioneer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.markets[marketID]
	if !ok {
		return nil, domain.ErrMarketNotFound
	}
	return a, nil
}

// SubmitShout validates and submits a shout to a market. It returns the
// shout (whose state tells whether it was placed) and any rejection.
func (s *MarketService) SubmitShout(marketID string, req SubmitShoutRequest) (*domain.Shout, error) {
	a, err := s.Get(marketID)
	if err != nil {
		return nil, err
	}
	side := domain.Side(req.Side)
	if side != domain.SideBid && side != domain.SideAsk {
		return nil, &domain.ValidationError{
			Message: "side must be 'bid' or 'ask'",
		}
	}
	if !s.traders.Exists(req.TraderID) {
		return nil, domain.ErrTraderNotFound
	}
	shout := domain.NewShout(req.TraderID, marketID, side, req.Price, req.Quantity)
	if err := a.NewShout(shout); err != nil {
		return shout, err
	}
	return shout, nil
}

// WithdrawShout withdraws a placed shout from a market.
func (s *MarketService) WithdrawShout(marketID, shoutID string) error {
	a, err := s.Get(marketID)
	if err != nil {
		return err
	}
	return a.RemoveShout(shoutID)
}

// NotifyOutcome applies a settlement notification to a market and records
// the resolved transaction.
func (s *MarketService) NotifyOutcome(marketID string, txID uint64, outcome string) (*domain.Transaction, error) {
	a, err := s.Get(marketID)
	if err != nil {
		return nil, err
	}
	var executed bool
	switch outcome {
	case "executed":
		executed = true
	case "rejected":
		executed = false
	default:
		return nil, &domain.ValidationError{
			Message: "outcome must be 'executed' or 'rejected'",
		}
	}
	tx, err := a.TransactionOutcome(txID, executed)
	if err != nil {
		return nil, err
	}
	s.txs.Record(tx)
	return tx, nil
}

// CloseSession resets a market at a session/day boundary, discarding its
// book, pending queue and transaction history.
func (s *MarketService) CloseSession(marketID string) error {
	a, err := s.Get(marketID)
	if err != nil {
		return err
	}
	a.CloseSession()
	s.txs.Reset(marketID)
	return nil
}

// Quote returns a market's current quote.
func (s *MarketService) Quote(marketID string) (domain.MarketQuote, error) {
	a, err := s.Get(marketID)
	if err != nil {
		return domain.MarketQuote{}, err
	}
	return a.Quote(), nil
}

// Book returns a price-aggregated snapshot of a market's book.
func (s *MarketService) Book(marketID string) (BookSnapshot, error) {
	a, err := s.Get(marketID)
	if err != nil {
		return BookSnapshot{}, err
	}
	var snap BookSnapshot
	a.WithEngine(func(e engine.ShoutEngine) {
		e.AscendBids(func(sh *domain.Shout) bool {
			snap.Bids = appendLevel(snap.Bids, sh)
			return true
		})
		e.AscendAsks(func(sh *domain.Shout) bool {
			snap.Asks = appendLevel(snap.Asks, sh)
			return true
		})
	})
	// Bids ascend from the iterator; best-first means highest first.
	reverseLevels(snap.Bids)
	return snap, nil
}

// Equilibrium computes the equilibrium report over a consistent snapshot
// of a market's engine.
func (s *MarketService) Equilibrium(marketID string) (analytics.Equilibrium, error) {
	a, err := s.Get(marketID)
	if err != nil {
		return analytics.Equilibrium{}, err
	}
	var eq analytics.Equilibrium
	a.WithEngine(func(e engine.ShoutEngine) {
		eq = analytics.ComputeEquilibrium(e)
	})
	return eq, nil
}

// Efficiency computes the efficiency report from a market's equilibrium,
// its recorded transactions, and the registered traders.
func (s *MarketService) Efficiency(marketID string) (analytics.EfficiencyReport, error) {
	eq, err := s.Equilibrium(marketID)
	if err != nil {
		return analytics.EfficiencyReport{}, err
	}
	txs := s.txs.ListByMarket(marketID)
	return analytics.ComputeEfficiency(eq, txs, s.traders.List()), nil
}

func appendLevel(levels []PriceLevel, sh *domain.Shout) []PriceLevel {
	if n := len(levels); n > 0 && levels[n-1].Price == sh.Price {
		levels[n-1].Quantity += sh.Quantity
		levels[n-1].ShoutCount++
		return levels
	}
	return append(levels, PriceLevel{Price: sh.Price, Quantity: sh.Quantity, ShoutCount: 1})
}

func reverseLevels(levels []PriceLevel) {
	for i, j := 0, len(levels)-1; i < j; i, j = i+1, j-1 {
		levels[i], levels[j] = levels[j], levels[i]
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func buildEngine(req CreateMarketRequest) (engine.ShoutEngine, error) {
	switch req.Matching {
	case "", "fourheap":
		return engine.NewFourHeapShoutEngine(), nil
	case "maxvolume":
		return engine.NewMaxVolumeShoutEngine(), nil
	case "theta":
		if req.Theta < -1 || req.Theta > 1 {
			return nil, &domain.ValidationError{Message: "theta must be in [-1,1]"}
		}
		return engine.NewThetaShoutEngine(req.Theta), nil
	}
	return nil, &domain.ValidationError{
		Message: fmt.Sprintf("unknown matching engine: %s. Must be one of: fourheap, maxvolume, theta", req.Matching),
	}
}

func buildAccepting(req CreateMarketRequest) (auction.AcceptingPolicy, error) {
	if len(req.Accepting) == 0 {
		return auction.AlwaysAccept{}, nil
	}
	var policies []auction.AcceptingPolicy
	for _, kind := range req.Accepting {
		switch kind {
		case "always":
			policies = append(policies, auction.AlwaysAccept{})
		case "never":
			policies = append(policies, auction.NeverAccept{})
		case "quote_beating":
			policies = append(policies, auction.QuoteBeatingAccept{})
		case "self_beating":
			policies = append(policies, auction.SelfBeatingAccept{})
		case "equilibrium_beating":
			rate := req.LearningRate
			if rate <= 0 || rate > 1 {
				rate = 0.1
			}
			policies = append(policies, &auction.EquilibriumBeatingAccept{LearningRate: rate, Delta: req.Delta})
		case "history":
			if req.Threshold < 0 || req.Threshold > 1 {
				return nil, &domain.ValidationError{Message: "threshold must be in [0,1]"}
			}
			window := req.Window
			if window <= 0 {
				window = 100
			}
			policies = append(policies, &auction.HistoryAccept{Threshold: req.Threshold, Window: window})
		default:
			return nil, &domain.ValidationError{
				Message: fmt.Sprintf("unknown accepting policy: %s", kind),
			}
		}
	}
	if len(policies) == 1 {
		return policies[0], nil
	}
	switch req.AcceptingMode {
	case "", "and":
		return &auction.CombiAccept{Policies: policies}, nil
	case "or":
		return &auction.CombiAccept{Policies: policies, Disjunct: true}, nil
	}
	return nil, &domain.ValidationError{Message: "accepting_mode must be 'and' or 'or'"}
}

func buildPricing(req CreateMarketRequest) (auction.PricingPolicy, error) {
	k := req.K
	if k == 0 {
		k = 0.5
	}
	if k < 0 || k > 1 {
		return nil, &domain.ValidationError{Message: "k must be in [0,1]"}
	}
	switch req.Pricing {
	case "", "discriminatory":
		return auction.DiscriminatoryPricing{K: k}, nil
	case "uniform":
		return auction.UniformPricing{K: k}, nil
	case "average":
		n := req.N
		if n <= 0 {
			n = 10
		}
		return &auction.AveragePricing{N: n}, nil
	}
	return nil, &domain.ValidationError{
		Message: fmt.Sprintf("unknown pricing policy: %s. Must be one of: discriminatory, uniform, average", req.Pricing),
	}
}

// buildClearing returns the shout-driven condition and whether the market
// should additionally be registered with the timed-clearing scheduler.
func buildClearing(req CreateMarketRequest) (auction.ClearingCondition, bool, error) {
	switch req.Clearing {
	case "", "continuous":
		return auction.ContinuousClearing{}, false, nil
	case "interval":
		if req.Interval < 1 {
			return nil, false, &domain.ValidationError{Message: "interval must be >= 1"}
		}
		return &auction.IntervalClearing{N: req.Interval}, false, nil
	case "probabilistic":
		if req.Probability < 0 || req.Probability > 1 {
			return nil, false, &domain.ValidationError{Message: "probability must be in [0,1]"}
		}
		return &auction.ProbabilisticClearing{P: req.Probability, RNG: rand.New(rand.NewSource(req.Seed))}, false, nil
	case "timed":
		return neverClearing{}, true, nil
	}
	return nil, false, &domain.ValidationError{
		Message: fmt.Sprintf("unknown clearing policy: %s. Must be one of: continuous, interval, probabilistic, timed", req.Clearing),
	}
}

// neverClearing defers all clearing to the scheduler.
type neverClearing struct{}

func (neverClearing) ShouldClear(engine.ShoutEngine) bool { return false }

func buildQuoting(req CreateMarketRequest) (auction.QuotingPolicy, error) {
	switch req.Quoting {
	case "", "two_sided":
		return auction.TwoSidedQuoting{}, nil
	case "one_sided":
		return auction.OneSidedQuoting{}, nil
	}
	return nil, &domain.ValidationError{
		Message: fmt.Sprintf("unknown quoting policy: %s. Must be one of: two_sided, one_sided", req.Quoting),
	}
}

func buildCharging(req CreateMarketRequest) (auction.ChargingPolicy, error) {
	switch req.Charging {
	case "", "free":
		return auction.FreeCharging{}, nil
	case "fixed":
		return auction.FixedCharging{ShoutFee: req.ShoutFee, TransactionFee: req.TransactionFee}, nil
	case "fractional":
		if req.Fraction < 0 || req.Fraction > 1 {
			return nil, &domain.ValidationError{Message: "fraction must be in [0,1]"}
		}
		return auction.FractionalCharging{Fraction: req.Fraction}, nil
	}
	return nil, &domain.ValidationError{
		Message: fmt.Sprintf("unknown charging policy: %s. Must be one of: free, fixed, fractional", req.Charging),
	}
}
