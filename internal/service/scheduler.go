package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"auctionhouse/internal/auction"
)

// ClearingScheduler drives timed clearing: markets whose clearing policy
// is time-based register here, and every tick the scheduler asks each of
// them to clear whatever is matched.
type ClearingScheduler struct {
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	markets []*auction.Auctioneer
}

// NewClearingScheduler creates a scheduler ticking at the given interval.
func NewClearingScheduler(interval time.Duration, logger *slog.Logger) *ClearingScheduler {
	return &ClearingScheduler{
		interval: interval,
		logger:   logger,
	}
}

// Add registers a market for timed clearing.
func (c *ClearingScheduler) Add(a *auction.Auctioneer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markets = append(c.markets, a)
}

// Remove unregisters a market by id.
func (c *ClearingScheduler) Remove(marketID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, a := range c.markets {
		if a.MarketID() == marketID {
			c.markets = append(c.markets[:i], c.markets[i+1:]...)
			return
		}
	}
}

// Start runs the tick loop until ctx is cancelled.
func (c *ClearingScheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("clearing scheduler stopped")
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

func (c *ClearingScheduler) tick() {
	c.mu.Lock()
	markets := make([]*auction.Auctioneer, len(c.markets))
	copy(markets, c.markets)
	c.mu.Unlock()

	for _, a := range markets {
		a.Clear()
	}
}
