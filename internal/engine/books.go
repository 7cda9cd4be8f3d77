package engine

import (
	"fmt"

	"github.com/google/btree"

	"auctionhouse/internal/domain"
)

// bookBidLess orders the full bid book descending by price (Min is the best
// bid), FIFO on ties.
func bookBidLess(a, b *domain.Shout) bool {
	if a.Price != b.Price {
		return a.Price > b.Price
	}
	return a.Seq < b.Seq
}

// bookAskLess orders the full ask book ascending by price (Min is the best
// ask), FIFO on ties.
func bookAskLess(a, b *domain.Shout) bool {
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	return a.Seq < b.Seq
}

// plannedPair assigns qty units of a bid to qty units of an ask in a match
// plan. A single shout may appear in several pairs.
type plannedPair struct {
	bid *domain.Shout
	ask *domain.Shout
	qty int64
}

// planner computes a match plan over price-sorted books: bids descending,
// asks ascending. Every pair must cross (bid price ≥ ask price) and no
// shout's planned units may exceed its quantity.
type planner func(bids, asks []*domain.Shout) []plannedPair

// bookEngine is the shared base of the lazy, non-incremental engines. It
// keeps the whole book in two price-sorted trees and recomputes the match
// plan from scratch after every mutation; the ShoutEngine accessors are
// derived from the cached plan.
type bookEngine struct {
	bids *btree.BTreeG[*domain.Shout]
	asks *btree.BTreeG[*domain.Shout]

	byID    map[string][]*domain.Shout
	history []SplitRecord
	nextSeq uint64
	plan    planner

	pairs             []plannedPair
	matchedUnits      map[uint64]int64 // seq → planned units
	matchedQty        int64
	lowestMatchedBid  *domain.Shout
	highestMatchedAsk *domain.Shout
	bestUnmatchedBid  *domain.Shout
	bestUnmatchedAsk  *domain.Shout
}

func newBookEngine(plan planner) bookEngine {
	return bookEngine{
		bids: btree.NewG(btreeDegree, bookBidLess),
		asks: btree.NewG(btreeDegree, bookAskLess),
		byID: make(map[string][]*domain.Shout),
		plan: plan,
	}
}

func (e *bookEngine) Insert(s *domain.Shout) error {
	if err := e.checkDuplicate(s); err != nil {
		return err
	}
	if s.Seq == 0 {
		e.nextSeq++
		s.Seq = e.nextSeq
	}
	e.byID[s.ID] = append(e.byID[s.ID], s)
	if s.IsBid() {
		e.bids.ReplaceOrInsert(s)
	} else {
		e.asks.ReplaceOrInsert(s)
	}
	e.replan()
	return nil
}

func (e *bookEngine) checkDuplicate(s *domain.Shout) error {
	siblings := e.byID[s.ID]
	if s.Seq == 0 {
		if len(siblings) > 0 {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateShout, s.ID)
		}
		return nil
	}
	for _, sib := range siblings {
		if sib.Seq == s.Seq {
			return fmt.Errorf("%w: %s (seq %d)", domain.ErrDuplicateShout, s.ID, s.Seq)
		}
	}
	return nil
}

func (e *bookEngine) Remove(s *domain.Shout) error {
	siblings := e.byID[s.ID]
	if len(siblings) == 0 {
		return fmt.Errorf("%w: %s", domain.ErrShoutNotFound, s.ID)
	}
	delete(e.byID, s.ID)
	for _, sib := range siblings {
		e.bids.Delete(sib)
		e.asks.Delete(sib)
	}
	kept := e.history[:0]
	for _, rec := range e.history {
		if rec.ID != s.ID {
			kept = append(kept, rec)
		}
	}
	e.history = kept
	e.replan()
	return nil
}

// MatchedPairs materializes the cached plan, splitting partially planned
// shouts, and removes the drained units from the books. After a drain no
// crossing pair remains, so the fresh plan is empty until new shouts arrive.
func (e *bookEngine) MatchedPairs() []MatchedPair {
	var out []MatchedPair
	for _, p := range e.pairs {
		bid := e.drainUnits(p.bid, p.qty, e.bids)
		ask := e.drainUnits(p.ask, p.qty, e.asks)
		out = append(out, MatchedPair{Bid: bid, Ask: ask})
	}
	e.replan()
	return out
}

// drainUnits removes qty units of s from the given book side, returning the
// shout instance that carries exactly those units.
func (e *bookEngine) drainUnits(s *domain.Shout, qty int64, tree *btree.BTreeG[*domain.Shout]) *domain.Shout {
	if qty == s.Quantity {
		tree.Delete(s)
		e.unregister(s)
		return s
	}
	child := s.Split(qty)
	e.nextSeq++
	child.Seq = e.nextSeq
	e.history = append(e.history, SplitRecord{
		ID:        s.ID,
		ParentSeq: s.Seq,
		ChildSeq:  child.Seq,
		Quantity:  qty,
	})
	return child
}

func (e *bookEngine) unregister(s *domain.Shout) {
	siblings := e.byID[s.ID]
	for i, sib := range siblings {
		if sib.Seq == s.Seq {
			siblings = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	if len(siblings) == 0 {
		delete(e.byID, s.ID)
	} else {
		e.byID[s.ID] = siblings
	}
}

// replan recomputes the match plan and the derived boundary accessors.
func (e *bookEngine) replan() {
	bids := make([]*domain.Shout, 0, e.bids.Len())
	e.bids.Ascend(func(s *domain.Shout) bool {
		bids = append(bids, s)
		return true
	})
	asks := make([]*domain.Shout, 0, e.asks.Len())
	e.asks.Ascend(func(s *domain.Shout) bool {
		asks = append(asks, s)
		return true
	})

	e.pairs = e.plan(bids, asks)
	e.matchedUnits = make(map[uint64]int64)
	e.matchedQty = 0
	e.lowestMatchedBid = nil
	e.highestMatchedAsk = nil
	for _, p := range e.pairs {
		e.matchedUnits[p.bid.Seq] += p.qty
		e.matchedUnits[p.ask.Seq] += p.qty
		e.matchedQty += p.qty
		if e.lowestMatchedBid == nil || p.bid.Price < e.lowestMatchedBid.Price {
			e.lowestMatchedBid = p.bid
		}
		if e.highestMatchedAsk == nil || p.ask.Price > e.highestMatchedAsk.Price {
			e.highestMatchedAsk = p.ask
		}
	}

	e.bestUnmatchedBid = nil
	for _, b := range bids {
		if e.matchedUnits[b.Seq] < b.Quantity {
			e.bestUnmatchedBid = b
			break
		}
	}
	e.bestUnmatchedAsk = nil
	for _, a := range asks {
		if e.matchedUnits[a.Seq] < a.Quantity {
			e.bestUnmatchedAsk = a
			break
		}
	}
}

func (e *bookEngine) HighestMatchedAsk() (*domain.Shout, bool) {
	return e.highestMatchedAsk, e.highestMatchedAsk != nil
}

func (e *bookEngine) LowestMatchedBid() (*domain.Shout, bool) {
	return e.lowestMatchedBid, e.lowestMatchedBid != nil
}

func (e *bookEngine) BestUnmatchedBid() (*domain.Shout, bool) {
	return e.bestUnmatchedBid, e.bestUnmatchedBid != nil
}

func (e *bookEngine) BestUnmatchedAsk() (*domain.Shout, bool) {
	return e.bestUnmatchedAsk, e.bestUnmatchedAsk != nil
}

func (e *bookEngine) MatchedQuantity() int64 {
	return e.matchedQty
}

// AscendBids walks the bid book in ascending price order.
func (e *bookEngine) AscendBids(fn func(*domain.Shout) bool) {
	e.bids.Descend(fn)
}

// AscendAsks walks the ask book in ascending price order.
func (e *bookEngine) AscendAsks(fn func(*domain.Shout) bool) {
	e.asks.Ascend(fn)
}

func (e *bookEngine) SplitHistory() []SplitRecord {
	out := make([]SplitRecord, len(e.history))
	copy(out, e.history)
	return out
}

func (e *bookEngine) Reset() {
	e.bids.Clear(false)
	e.asks.Clear(false)
	e.byID = make(map[string][]*domain.Shout)
	e.history = nil
	e.replan()
}
