package feed

import (
	"testing"
	"time"

	"auctionhouse/internal/domain"
)

func TestHubDeliversToSubscribers(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe(4)
	defer h.Unsubscribe(sub)

	h.Publish(domain.Event{Type: domain.EventShoutPlaced, MarketID: "m1"})

	select {
	case ev := <-sub.C():
		if ev.Type != domain.EventShoutPlaced || ev.MarketID != "m1" {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestHubSlowSubscriberDropsEvents(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe(1)
	defer h.Unsubscribe(sub)

	// The second publish must not block even though nobody is reading.
	done := make(chan struct{})
	go func() {
		h.Publish(domain.Event{MarketID: "m1"})
		h.Publish(domain.Event{MarketID: "m2"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	if ev := <-sub.C(); ev.MarketID != "m1" {
		t.Fatalf("got %q, want the first event to survive", ev.MarketID)
	}
	select {
	case ev := <-sub.C():
		t.Fatalf("unexpected extra event %+v", ev)
	default:
	}
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe(1)
	h.Unsubscribe(sub)

	if _, ok := <-sub.C(); ok {
		t.Fatal("channel must be closed after unsubscribe")
	}
	// A second unsubscribe is harmless.
	h.Unsubscribe(sub)

	// Publishing to a hub with no subscribers is a no-op.
	h.Publish(domain.Event{MarketID: "m1"})
}
