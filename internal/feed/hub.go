// Package feed fans market events out to subscribers: websocket streams,
// an optional Kafka topic, and the log.
package feed

import (
	"sync"

	"auctionhouse/internal/domain"
)

// Subscription is one receiver attached to a Hub. Slow receivers drop
// events rather than block the publishing market.
type Subscription struct {
	ch chan domain.Event
}

// C returns the subscription's receive channel. It is closed on
// Unsubscribe.
func (s *Subscription) C() <-chan domain.Event {
	return s.ch
}

// Hub broadcasts events to any number of subscribers.
type Hub struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Subscribe attaches a receiver with the given channel buffer.
func (h *Hub) Subscribe(buffer int) *Subscription {
	sub := &Subscription{ch: make(chan domain.Event, buffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Unsubscribe detaches a receiver and closes its channel.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.ch)
	}
	h.mu.Unlock()
}

// Publish delivers the event to every subscriber without blocking; a
// subscriber with a full buffer misses the event.
func (h *Hub) Publish(ev domain.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		select {
		case sub.ch <- ev:
		default:
		}
	}
}
