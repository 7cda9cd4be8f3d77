package engine

import (
	"fmt"

	"github.com/google/btree"

	"auctionhouse/internal/domain"
)

// Partition orderings. Each tree's Min() is the shout the algorithm needs
// next: the boundary entry for matched partitions, the best price for
// unmatched ones. Ties are broken FIFO by the engine-assigned sequence
// number, so equal-price shouts keep submission order.

// matchedBidLess orders matched bids ascending by price: Min() is the
// lowest (most marginal) matched bid.
func matchedBidLess(a, b *domain.Shout) bool {
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	return a.Seq < b.Seq
}

// matchedAskLess orders matched asks descending by price: Min() is the
// highest (most marginal) matched ask.
func matchedAskLess(a, b *domain.Shout) bool {
	if a.Price != b.Price {
		return a.Price > b.Price
	}
	return a.Seq < b.Seq
}

// unmatchedBidLess orders unmatched bids descending by price: Min() is the
// best unmatched bid.
func unmatchedBidLess(a, b *domain.Shout) bool {
	if a.Price != b.Price {
		return a.Price > b.Price
	}
	return a.Seq < b.Seq
}

// unmatchedAskLess orders unmatched asks ascending by price: Min() is the
// best unmatched ask.
func unmatchedAskLess(a, b *domain.Shout) bool {
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	return a.Seq < b.Seq
}

const btreeDegree = 32

// FourHeapShoutEngine is the reference matching engine. It maintains four
// ordered partitions of outstanding shouts — matched bids, matched asks,
// unmatched bids, unmatched asks — and admits every shout through the
// canonical four-heap algorithm, so the matched set always holds the
// highest-surplus pairing of the book.
type FourHeapShoutEngine struct {
	matchedBids   *btree.BTreeG[*domain.Shout]
	matchedAsks   *btree.BTreeG[*domain.Shout]
	unmatchedBids *btree.BTreeG[*domain.Shout]
	unmatchedAsks *btree.BTreeG[*domain.Shout]

	byID       map[string][]*domain.Shout // id → resident siblings
	history    []SplitRecord
	nextSeq    uint64
	matchedQty int64
}

// NewFourHeapShoutEngine creates an empty four-heap engine.
func NewFourHeapShoutEngine() *FourHeapShoutEngine {
	return &FourHeapShoutEngine{
		matchedBids:   btree.NewG(btreeDegree, matchedBidLess),
		matchedAsks:   btree.NewG(btreeDegree, matchedAskLess),
		unmatchedBids: btree.NewG(btreeDegree, unmatchedBidLess),
		unmatchedAsks: btree.NewG(btreeDegree, unmatchedAskLess),
		byID:          make(map[string][]*domain.Shout),
	}
}

// Insert admits a new shout through the four-heap algorithm.
//
// A shout with Seq == 0 is brand new and its ID must not be resident; a
// shout with a nonzero Seq is a re-admission after a settlement rollback
// and may legitimately share its ID with a resident split sibling.
func (e *FourHeapShoutEngine) Insert(s *domain.Shout) error {
	if err := e.checkDuplicate(s); err != nil {
		return err
	}
	e.admit(s)
	return nil
}

func (e *FourHeapShoutEngine) checkDuplicate(s *domain.Shout) error {
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

// admit runs the admission algorithm and registers the shout as resident.
func (e *FourHeapShoutEngine) admit(s *domain.Shout) {
	if s.Seq == 0 {
		e.nextSeq++
		s.Seq = e.nextSeq
	}
	e.byID[s.ID] = append(e.byID[s.ID], s)
	if s.IsBid() {
		e.admitBid(s)
	} else {
		e.admitAsk(s)
	}
}

// admitBid places a bid, looping over any quantity remainder. The three
// cases and their precedence are load-bearing: trying the displacement
// case before the unmatched-ask case breaks the matched/unmatched boundary
// invariant.
func (e *FourHeapShoutEngine) admitBid(bid *domain.Shout) {
	for bid != nil {
		ask, haveAsk := e.unmatchedAsks.Min()
		worst, haveWorst := e.matchedBids.Min()
		switch {
		case haveAsk && ask.Price <= bid.Price && (!haveWorst || ask.Price <= worst.Price):
			// A new match forms: promote the best unmatched ask.
			e.unmatchedAsks.Delete(ask)
			var rest *domain.Shout
			if bid.Quantity > ask.Quantity {
				rest = e.splitOff(bid, bid.Quantity-ask.Quantity)
			} else if ask.Quantity > bid.Quantity {
				surplus := e.splitOff(ask, ask.Quantity-bid.Quantity)
				e.unmatchedAsks.ReplaceOrInsert(surplus)
			}
			e.matchedBids.ReplaceOrInsert(bid)
			e.matchedAsks.ReplaceOrInsert(ask)
			e.matchedQty += bid.Quantity
			bid = rest
		case haveWorst && worst.Price < bid.Price:
			// The bid displaces the worst matched bid; matched quantity
			// is unchanged.
			if bid.Quantity >= worst.Quantity {
				e.matchedBids.Delete(worst)
				e.unmatchedBids.ReplaceOrInsert(worst)
				var rest *domain.Shout
				if bid.Quantity > worst.Quantity {
					rest = e.splitOff(bid, bid.Quantity-worst.Quantity)
				}
				e.matchedBids.ReplaceOrInsert(bid)
				bid = rest
			} else {
				out := e.splitOff(worst, bid.Quantity)
				e.unmatchedBids.ReplaceOrInsert(out)
				e.matchedBids.ReplaceOrInsert(bid)
				bid = nil
			}
		default:
			e.unmatchedBids.ReplaceOrInsert(bid)
			bid = nil
		}
	}
}

// admitAsk is the mirror of admitBid.
func (e *FourHeapShoutEngine) admitAsk(ask *domain.Shout) {
	for ask != nil {
		bid, haveBid := e.unmatchedBids.Min()
		worst, haveWorst := e.matchedAsks.Min()
		switch {
		case haveBid && bid.Price >= ask.Price && (!haveWorst || bid.Price >= worst.Price):
			e.unmatchedBids.Delete(bid)
			var rest *domain.Shout
			if ask.Quantity > bid.Quantity {
				rest = e.splitOff(ask, ask.Quantity-bid.Quantity)
			} else if bid.Quantity > ask.Quantity {
				surplus := e.splitOff(bid, bid.Quantity-ask.Quantity)
				e.unmatchedBids.ReplaceOrInsert(surplus)
			}
			e.matchedAsks.ReplaceOrInsert(ask)
			e.matchedBids.ReplaceOrInsert(bid)
			e.matchedQty += ask.Quantity
			ask = rest
		case haveWorst && worst.Price > ask.Price:
			if ask.Quantity >= worst.Quantity {
				e.matchedAsks.Delete(worst)
				e.unmatchedAsks.ReplaceOrInsert(worst)
				var rest *domain.Shout
				if ask.Quantity > worst.Quantity {
					rest = e.splitOff(ask, ask.Quantity-worst.Quantity)
				}
				e.matchedAsks.ReplaceOrInsert(ask)
				ask = rest
			} else {
				out := e.splitOff(worst, ask.Quantity)
				e.unmatchedAsks.ReplaceOrInsert(out)
				e.matchedAsks.ReplaceOrInsert(ask)
				ask = nil
			}
		default:
			e.unmatchedAsks.ReplaceOrInsert(ask)
			ask = nil
		}
	}
}

// splitOff splits excess units from s into a new registered sibling and
// records the split in the flat history.
func (e *FourHeapShoutEngine) splitOff(s *domain.Shout, excess int64) *domain.Shout {
	child := s.Split(excess)
	e.nextSeq++
	child.Seq = e.nextSeq
	e.byID[child.ID] = append(e.byID[child.ID], child)
	e.history = append(e.history, SplitRecord{
		ID:        s.ID,
		ParentSeq: s.Seq,
		ChildSeq:  child.Seq,
		Quantity:  excess,
	})
	return child
}

// Remove withdraws a shout and all of its resident split siblings. If a
// sibling sits in a matched partition, the excess matched quantity on the
// opposite side is ejected from its most marginal entries and re-admitted
// through the admission algorithm, restoring the invariants.
//
// Every sibling is detached before any rebalancing: re-admitting an
// ejected counterparty while siblings of the withdrawn id are still
// resident would match it against shouts about to disappear, fragmenting
// it for nothing.
func (e *FourHeapShoutEngine) Remove(s *domain.Shout) error {
	siblings := e.byID[s.ID]
	if len(siblings) == 0 {
		return fmt.Errorf("%w: %s", domain.ErrShoutNotFound, s.ID)
	}
	var deficit int64
	for _, sib := range siblings {
		if _, ok := e.unmatchedBids.Delete(sib); ok {
			continue
		}
		if _, ok := e.unmatchedAsks.Delete(sib); ok {
			continue
		}
		if _, ok := e.matchedBids.Delete(sib); ok {
			e.matchedQty -= sib.Quantity
			deficit += sib.Quantity
			continue
		}
		if _, ok := e.matchedAsks.Delete(sib); ok {
			e.matchedQty -= sib.Quantity
			deficit += sib.Quantity
		}
	}
	delete(e.byID, s.ID)
	e.dropHistory(s.ID)
	if deficit > 0 {
		if s.IsBid() {
			e.rebalance(deficit, e.matchedAsks)
		} else {
			e.rebalance(deficit, e.matchedBids)
		}
	}
	return nil
}

// dropHistory makes the withdrawn shout childless: its split records no
// longer describe anything resident.
func (e *FourHeapShoutEngine) dropHistory(id string) {
	kept := e.history[:0]
	for _, rec := range e.history {
		if rec.ID != id {
			kept = append(kept, rec)
		}
	}
	e.history = kept
}

// rebalance ejects deficit units from the opposite matched partition,
// starting at its most marginal entry and splitting the boundary entry
// when it is larger than the remaining deficit, then re-admits every
// ejected shout.
func (e *FourHeapShoutEngine) rebalance(deficit int64, matched *btree.BTreeG[*domain.Shout]) {
	var ejected []*domain.Shout
	for deficit > 0 {
		top, ok := matched.Min()
		if !ok {
			panic("fourheap: matched partitions out of balance")
		}
		if top.Quantity > deficit {
			part := e.splitOff(top, deficit)
			e.unregister(part)
			ejected = append(ejected, part)
			deficit = 0
		} else {
			matched.Delete(top)
			e.unregister(top)
			ejected = append(ejected, top)
			deficit -= top.Quantity
		}
	}
	for _, s := range ejected {
		e.byID[s.ID] = append(e.byID[s.ID], s)
		if s.IsBid() {
			e.admitBid(s)
		} else {
			e.admitAsk(s)
		}
	}
}

// unregister removes one resident instance from the id index.
func (e *FourHeapShoutEngine) unregister(s *domain.Shout) {
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

// MatchedPairs destructively drains the matched partitions, pairing the
// lowest matched bid with the highest matched ask and splitting the larger
// side of each pair so both quantities agree. The drained shouts leave the
// engine; ownership passes to the caller.
func (e *FourHeapShoutEngine) MatchedPairs() []MatchedPair {
	var pairs []MatchedPair
	for {
		bid, ok := e.matchedBids.DeleteMin()
		if !ok {
			break
		}
		ask, ok := e.matchedAsks.DeleteMin()
		if !ok {
			panic("fourheap: matched bid without matched ask")
		}
		if bid.Quantity > ask.Quantity {
			rest := e.splitOff(bid, bid.Quantity-ask.Quantity)
			e.matchedBids.ReplaceOrInsert(rest)
		} else if ask.Quantity > bid.Quantity {
			rest := e.splitOff(ask, ask.Quantity-bid.Quantity)
			e.matchedAsks.ReplaceOrInsert(rest)
		}
		e.unregister(bid)
		e.unregister(ask)
		pairs = append(pairs, MatchedPair{Bid: bid, Ask: ask})
	}
	e.matchedQty = 0
	return pairs
}

// HighestMatchedAsk returns the most marginal matched ask.
func (e *FourHeapShoutEngine) HighestMatchedAsk() (*domain.Shout, bool) {
	return e.matchedAsks.Min()
}

// LowestMatchedBid returns the most marginal matched bid.
func (e *FourHeapShoutEngine) LowestMatchedBid() (*domain.Shout, bool) {
	return e.matchedBids.Min()
}

// BestUnmatchedBid returns the highest-priced unmatched bid.
func (e *FourHeapShoutEngine) BestUnmatchedBid() (*domain.Shout, bool) {
	return e.unmatchedBids.Min()
}

// BestUnmatchedAsk returns the lowest-priced unmatched ask.
func (e *FourHeapShoutEngine) BestUnmatchedAsk() (*domain.Shout, bool) {
	return e.unmatchedAsks.Min()
}

// MatchedQuantity returns the total quantity on each matched side.
func (e *FourHeapShoutEngine) MatchedQuantity() int64 {
	return e.matchedQty
}

// AscendBids iterates all resident bids in ascending price order. The
// boundary invariant guarantees every unmatched bid prices at or below
// every matched bid, so the unmatched partition is walked first.
func (e *FourHeapShoutEngine) AscendBids(fn func(*domain.Shout) bool) {
	stopped := false
	e.unmatchedBids.Descend(func(s *domain.Shout) bool {
		if !fn(s) {
			stopped = true
			return false
		}
		return true
	})
	if stopped {
		return
	}
	e.matchedBids.Ascend(fn)
}

// AscendAsks iterates all resident asks in ascending price order, matched
// partition first.
func (e *FourHeapShoutEngine) AscendAsks(fn func(*domain.Shout) bool) {
	stopped := false
	e.matchedAsks.Descend(func(s *domain.Shout) bool {
		if !fn(s) {
			stopped = true
			return false
		}
		return true
	})
	if stopped {
		return
	}
	e.unmatchedAsks.Ascend(fn)
}

// SplitHistory returns the accumulated split records, oldest first.
func (e *FourHeapShoutEngine) SplitHistory() []SplitRecord {
	out := make([]SplitRecord, len(e.history))
	copy(out, e.history)
	return out
}

// Reset discards all resident shouts and split history. The sequence
// counter is not reset, so re-admitted shouts keep their time priority
// across sessions.
func (e *FourHeapShoutEngine) Reset() {
	e.matchedBids.Clear(false)
	e.matchedAsks.Clear(false)
	e.unmatchedBids.Clear(false)
	e.unmatchedAsks.Clear(false)
	e.byID = make(map[string][]*domain.Shout)
	e.history = nil
	e.matchedQty = 0
}
