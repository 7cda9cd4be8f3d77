package auction

import (
	"auctionhouse/internal/domain"
	"auctionhouse/internal/engine"
)

// clampIntoSpread pulls a price back into [ask.Price, bid.Price]. The
// matched pair is guaranteed to cross, so the interval is never empty.
func clampIntoSpread(price float64, pair engine.MatchedPair) float64 {
	if price < pair.Ask.Price {
		return pair.Ask.Price
	}
	if price > pair.Bid.Price {
		return pair.Bid.Price
	}
	return price
}

// DiscriminatoryPricing interpolates between the two shout prices of each
// pair: price = k·bid + (1−k)·ask. Each pair clears at its own price.
type DiscriminatoryPricing struct {
	K float64 // [0,1]
}

func (p DiscriminatoryPricing) Price(pair engine.MatchedPair, _ domain.MarketQuote) float64 {
	return p.K*pair.Bid.Price + (1-p.K)*pair.Ask.Price
}

// UniformPricing interpolates between the two sides of the market quote,
// so every pair in a clearing round gets the same price — clamped back
// into the pair's own spread when the quote falls outside it.
type UniformPricing struct {
	K float64 // [0,1]
}

func (p UniformPricing) Price(pair engine.MatchedPair, quote domain.MarketQuote) float64 {
	if !quote.HasAsk() || !quote.HasBid() {
		// Degenerate quote: fall back to the pair's own spread.
		return clampIntoSpread(p.K*pair.Bid.Price+(1-p.K)*pair.Ask.Price, pair)
	}
	return clampIntoSpread(p.K*quote.Bid+(1-p.K)*quote.Ask, pair)
}

// AveragePricing clears at the sliding average of the last N executed
// transaction prices, clamped into the pair's spread. Before any history
// exists it clears at the pair midpoint.
type AveragePricing struct {
	N int

	prices []float64
}

func (p *AveragePricing) Price(pair engine.MatchedPair, _ domain.MarketQuote) float64 {
	if len(p.prices) == 0 {
		return (pair.Bid.Price + pair.Ask.Price) / 2
	}
	var sum float64
	for _, v := range p.prices {
		sum += v
	}
	return clampIntoSpread(sum/float64(len(p.prices)), pair)
}

// ObserveTransaction appends the executed price to the sliding window.
func (p *AveragePricing) ObserveTransaction(tx *domain.Transaction) {
	p.prices = append(p.prices, tx.Price)
	if p.N > 0 && len(p.prices) > p.N {
		p.prices = p.prices[len(p.prices)-p.N:]
	}
}
