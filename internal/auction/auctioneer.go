package auction

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"auctionhouse/internal/domain"
	"auctionhouse/internal/engine"
)

// Config assembles an auctioneer from a matching engine and a policy set.
// Nil policies fall back to the continuous-double-auction defaults.
type Config struct {
	MarketID  string
	Engine    engine.ShoutEngine
	Accepting AcceptingPolicy
	Pricing   PricingPolicy
	Clearing  ClearingCondition
	Quoting   QuotingPolicy
	Charging  ChargingPolicy
	Sink      EventSink
	Logger    *slog.Logger
}

// Auctioneer orchestrates a single market: it validates and admits shouts,
// triggers clearing, prices matched pairs, and drives each proposed
// transaction through the pending→executed/rejected protocol with the
// external settlement authority.
//
// All mutation is serialized by one mutex; the four-heap invariants are
// multi-step and never safe to interleave. Separate markets share nothing.
type Auctioneer struct {
	mu sync.Mutex

	marketID  string
	eng       engine.ShoutEngine
	accepting AcceptingPolicy
	pricing   PricingPolicy
	clearing  ClearingCondition
	quoting   QuotingPolicy
	charging  ChargingPolicy
	sink      EventSink
	logger    *slog.Logger

	txObservers    []TransactionObserver
	shoutObservers []ShoutObserver

	shouts       map[string]*domain.Shout // submitted shouts by id
	lastByTrader map[string]*domain.Shout
	pending      []*domain.Transaction // FIFO, resolved strictly in order
	nextTxID     uint64
	charges      map[string]float64 // trader id → accumulated fees
	quote        domain.MarketQuote
	halted       bool
}

// New creates an auctioneer for one market.
func New(cfg Config) *Auctioneer {
	a := &Auctioneer{
		marketID:     cfg.MarketID,
		eng:          cfg.Engine,
		accepting:    cfg.Accepting,
		pricing:      cfg.Pricing,
		clearing:     cfg.Clearing,
		quoting:      cfg.Quoting,
		charging:     cfg.Charging,
		sink:         cfg.Sink,
		logger:       cfg.Logger,
		shouts:       make(map[string]*domain.Shout),
		lastByTrader: make(map[string]*domain.Shout),
		charges:      make(map[string]float64),
		quote:        domain.EmptyQuote(),
	}
	if a.eng == nil {
		a.eng = engine.NewFourHeapShoutEngine()
	}
	if a.accepting == nil {
		a.accepting = AlwaysAccept{}
	}
	if a.pricing == nil {
		a.pricing = DiscriminatoryPricing{K: 0.5}
	}
	if a.clearing == nil {
		a.clearing = ContinuousClearing{}
	}
	if a.quoting == nil {
		a.quoting = TwoSidedQuoting{}
	}
	if a.charging == nil {
		a.charging = FreeCharging{}
	}
	if a.sink == nil {
		a.sink = NopSink{}
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	for _, p := range []any{a.accepting, a.pricing, a.clearing, a.quoting, a.charging} {
		if o, ok := p.(TransactionObserver); ok {
			a.txObservers = append(a.txObservers, o)
		}
		if o, ok := p.(ShoutObserver); ok {
			a.shoutObservers = append(a.shoutObservers, o)
		}
	}
	return a
}

// MarketID returns the market this auctioneer runs.
func (a *Auctioneer) MarketID() string {
	return a.marketID
}

// NewShout validates and admits a shout. The returned error is a
// *domain.ValidationError for malformed shouts, a *domain.RejectionError
// for accepting-policy refusals, or a hard error (duplicate id, halted
// market) that the submitter cannot recover from by retrying.
func (a *Auctioneer) NewShout(s *domain.Shout) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.halted {
		return domain.ErrMarketHalted
	}
	if !s.IsValid() {
		return &domain.ValidationError{
			Message: fmt.Sprintf("shout must have quantity ≥ 1 and price ≥ 0, got quantity=%d price=%g", s.Quantity, s.Price),
		}
	}
	if err := s.TransitionTo(domain.ShoutStatePending); err != nil {
		return err
	}

	previous := a.lastByTrader[s.TraderID]
	if err := a.accepting.Accept(previous, s, a.quote); err != nil {
		_ = s.TransitionTo(domain.ShoutStateRejected)
		a.observeShout(s, false)
		a.emit(domain.EventShoutRejected, shoutPayload(s))
		return err
	}

	// The engine owns the shout while it is placed; split siblings
	// created during admission inherit this state.
	if err := s.TransitionTo(domain.ShoutStatePlaced); err != nil {
		return err
	}
	if err := a.eng.Insert(s); err != nil {
		return err
	}

	a.shouts[s.ID] = s
	a.lastByTrader[s.TraderID] = s
	if fee := a.charging.ShoutCharge(s); fee != 0 {
		a.charges[s.TraderID] += fee
	}
	a.observeShout(s, true)
	a.emit(domain.EventShoutPlaced, shoutPayload(s))
	a.refreshQuote()

	if a.clearing.ShouldClear(a.eng) {
		a.clearLocked()
	}
	return nil
}

// RemoveShout withdraws a placed shout. Once a shout is pending in a
// transaction or matched it can no longer be withdrawn.
func (a *Auctioneer) RemoveShout(shoutID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.halted {
		return domain.ErrMarketHalted
	}
	s, ok := a.shouts[shoutID]
	if !ok {
		return domain.ErrShoutNotFound
	}
	if s.State != domain.ShoutStatePlaced {
		return fmt.Errorf("%w: shout %s is %s", domain.ErrShoutNotWithdrawable, shoutID, s.State)
	}
	if err := a.eng.Remove(s); err != nil {
		return err
	}
	delete(a.shouts, shoutID)
	a.refreshQuote()
	return nil
}

// Clear drains the engine's matched pairs into pending transactions and
// proposes each to the settlement authority.
func (a *Auctioneer) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.halted {
		return
	}
	a.clearLocked()
}

func (a *Auctioneer) clearLocked() {
	pairs := a.eng.MatchedPairs()
	for _, pair := range pairs {
		price := a.pricing.Price(pair, a.quote)
		a.nextTxID++
		tx := &domain.Transaction{
			ID:        a.nextTxID,
			MarketID:  a.marketID,
			Ask:       pair.Ask,
			Bid:       pair.Bid,
			Price:     price,
			Quantity:  pair.Bid.Quantity,
			State:     domain.TransactionStatePending,
			CreatedAt: time.Now(),
		}
		// Ownership of both shouts moves from the engine to the pending
		// queue until settlement resolves the transaction.
		mustTransition(pair.Bid, domain.ShoutStatePending)
		mustTransition(pair.Ask, domain.ShoutStatePending)
		a.pending = append(a.pending, tx)
		a.emit(domain.EventTransactionProposed, transactionPayload(tx))
	}
	if len(pairs) > 0 {
		a.refreshQuote()
	}
}

// TransactionOutcome applies the settlement authority's verdict for the
// transaction at the head of the pending queue. A notification whose id
// does not match the head violates the FIFO resolution invariant upstream:
// the market halts for manual inspection and every further event is
// refused until the session is closed.
func (a *Auctioneer) TransactionOutcome(txID uint64, executed bool) (*domain.Transaction, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.halted {
		return nil, domain.ErrMarketHalted
	}
	if len(a.pending) == 0 || a.pending[0].ID != txID {
		a.halt(txID)
		return nil, fmt.Errorf("%w: notification for transaction %d does not match queue head", domain.ErrTransactionDesync, txID)
	}

	tx := a.pending[0]
	a.pending = a.pending[1:]
	now := time.Now()
	tx.ResolvedAt = &now

	if executed {
		tx.State = domain.TransactionStateExecuted
		mustTransition(tx.Bid, domain.ShoutStateMatched)
		mustTransition(tx.Ask, domain.ShoutStateMatched)
		if fee := a.charging.TransactionCharge(tx); fee != 0 {
			a.charges[tx.Bid.TraderID] += fee
			a.charges[tx.Ask.TraderID] += fee
		}
		for _, o := range a.txObservers {
			o.ObserveTransaction(tx)
		}
		a.emit(domain.EventTransactionExecuted, transactionPayload(tx))
	} else {
		tx.State = domain.TransactionStateRejected
		mustTransition(tx.Bid, domain.ShoutStatePlaced)
		mustTransition(tx.Ask, domain.ShoutStatePlaced)
		// Rolled-back shouts re-enter the book with their original
		// sequence numbers, preserving time priority.
		if err := a.eng.Insert(tx.Bid); err != nil {
			a.logger.Error("rollback reinsert failed", slog.String("market_id", a.marketID), slog.String("error", err.Error()))
		}
		if err := a.eng.Insert(tx.Ask); err != nil {
			a.logger.Error("rollback reinsert failed", slog.String("market_id", a.marketID), slog.String("error", err.Error()))
		}
		a.emit(domain.EventTransactionRejected, transactionPayload(tx))
	}
	a.refreshQuote()
	return tx, nil
}

// ReconcileShout applies the settlement authority's placed-confirmation to
// the cached copy of a shout. Trader and market references are always
// reconciled; the price may only change while the shout is placed, in
// which case it is repositioned in the book.
func (a *Auctioneer) ReconcileShout(confirmed *domain.Shout) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.halted {
		return domain.ErrMarketHalted
	}
	s, ok := a.shouts[confirmed.ID]
	if !ok {
		return domain.ErrShoutNotFound
	}
	s.TraderID = confirmed.TraderID
	s.MarketID = confirmed.MarketID
	if confirmed.Price == s.Price {
		return nil
	}
	if s.State != domain.ShoutStatePlaced {
		return fmt.Errorf("%w: cannot update price of %s shout %s", domain.ErrIllegalShoutState, s.State, s.ID)
	}
	// Splits may have spread the shout across several resident siblings.
	// Withdrawing the id removes them all, so the full resident quantity
	// has to come back at the confirmed price.
	resident := a.residentQuantity(s)
	if err := a.eng.Remove(s); err != nil {
		return err
	}
	s.Price = confirmed.Price
	s.Quantity = resident
	if err := a.eng.Insert(s); err != nil {
		return err
	}
	a.refreshQuote()
	return nil
}

// residentQuantity sums the book quantity held under a shout's id across
// all of its split siblings.
func (a *Auctioneer) residentQuantity(s *domain.Shout) int64 {
	walk := a.eng.AscendBids
	if !s.IsBid() {
		walk = a.eng.AscendAsks
	}
	var total int64
	walk(func(r *domain.Shout) bool {
		if r.ID == s.ID {
			total += r.Quantity
		}
		return true
	})
	return total
}

// CloseSession resets the market at a day or session boundary: the engine,
// the pending queue, and the shout caches are discarded. A halted market
// becomes operational again after closing.
func (a *Auctioneer) CloseSession() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.eng.Reset()
	a.pending = nil
	a.shouts = make(map[string]*domain.Shout)
	a.lastByTrader = make(map[string]*domain.Shout)
	a.halted = false
	a.quote = domain.EmptyQuote()
	a.emit(domain.EventSessionClosed, nil)
	a.emit(domain.EventQuoteUpdated, quotePayload(a.quote))
}

// Quote returns the current market quote.
func (a *Auctioneer) Quote() domain.MarketQuote {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.quote
}

// Halted reports whether the market is halted pending manual inspection.
func (a *Auctioneer) Halted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.halted
}

// PendingTransactions returns the ids of the unresolved transactions in
// FIFO order.
func (a *Auctioneer) PendingTransactions() []uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]uint64, len(a.pending))
	for i, tx := range a.pending {
		ids[i] = tx.ID
	}
	return ids
}

// Charges returns a copy of the accumulated fees per trader.
func (a *Auctioneer) Charges() map[string]float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]float64, len(a.charges))
	for k, v := range a.charges {
		out[k] = v
	}
	return out
}

// WithEngine runs fn against the matching engine under the market lock.
// fn must treat the engine as read-only; it is how the analytics and the
// quoting/book query surface take a consistent snapshot.
func (a *Auctioneer) WithEngine(fn func(e engine.ShoutEngine)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn(a.eng)
}

func (a *Auctioneer) refreshQuote() {
	q := a.quoting.Quote(a.eng)
	if q == a.quote {
		return
	}
	a.quote = q
	a.emit(domain.EventQuoteUpdated, quotePayload(q))
}

func (a *Auctioneer) halt(txID uint64) {
	a.halted = true
	var headID uint64
	if len(a.pending) > 0 {
		headID = a.pending[0].ID
	}
	a.logger.Error("transaction queue desynchronized, halting market",
		slog.String("market_id", a.marketID),
		slog.Uint64("notified_tx", txID),
		slog.Uint64("queue_head", headID),
		slog.Int("queue_len", len(a.pending)),
	)
	a.emit(domain.EventMarketHalted, map[string]any{
		"notified_transaction": txID,
		"queue_head":           headID,
	})
}

func (a *Auctioneer) observeShout(s *domain.Shout, accepted bool) {
	for _, o := range a.shoutObservers {
		o.ObserveShout(s, accepted)
	}
}

func (a *Auctioneer) emit(t domain.EventType, payload any) {
	a.sink.Publish(domain.Event{
		Type:     t,
		MarketID: a.marketID,
		At:       time.Now(),
		Payload:  payload,
	})
}

// mustTransition applies a transition the protocol guarantees to be legal;
// a failure here is a corrupted state machine, not a recoverable error.
func mustTransition(s *domain.Shout, next domain.ShoutState) {
	if err := s.TransitionTo(next); err != nil {
		panic(err)
	}
}

func shoutPayload(s *domain.Shout) map[string]any {
	return map[string]any{
		"shout_id":  s.ID,
		"trader_id": s.TraderID,
		"side":      s.Side,
		"price":     s.Price,
		"quantity":  s.Quantity,
		"state":     s.State,
	}
}

func transactionPayload(tx *domain.Transaction) map[string]any {
	return map[string]any{
		"transaction_id": tx.ID,
		"ask_id":         tx.Ask.ID,
		"bid_id":         tx.Bid.ID,
		"price":          tx.Price,
		"quantity":       tx.Quantity,
		"state":          tx.State,
	}
}

func quotePayload(q domain.MarketQuote) map[string]any {
	payload := map[string]any{}
	if q.HasAsk() {
		payload["ask"] = q.Ask
	}
	if q.HasBid() {
		payload["bid"] = q.Bid
	}
	return payload
}
