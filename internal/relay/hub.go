package relay

import (
	"sync"

	"github.com/google/uuid"

	"keybridge/internal/domain"
)

// Hub is an in-memory relay: it keeps non-ephemeral events and fans every
// accepted event out to matching subscriptions.
type Hub struct {
	mu     sync.RWMutex
	events []domain.Event
	seen   map[string]struct{}
	subs   map[string]*hubSub
}

type hubSub struct {
	filter domain.Filter
	out    *deliveryQueue
}

func NewHub() *Hub {
	return &Hub{
		seen: make(map[string]struct{}),
		subs: make(map[string]*hubSub),
	}
}

// Publish accepts e. It reports false for an event id already seen.
func (h *Hub) Publish(e domain.Event) bool {
	h.mu.Lock()
	if _, dup := h.seen[e.ID]; dup {
		h.mu.Unlock()
		return false
	}
	h.seen[e.ID] = struct{}{}
	if !ephemeral(e.Kind) {
		h.events = append(h.events, e)
	}
	targets := make([]*deliveryQueue, 0, len(h.subs))
	for _, s := range h.subs {
		if Matches(s.filter, e) {
			targets = append(targets, s.out)
		}
	}
	h.mu.Unlock()

	for _, t := range targets {
		t.push(e)
	}
	return true
}

// Subscribe registers fn for events matching f, replays stored matches, and
// returns an id for Unsubscribe. onEOSE, if set, runs once after the replay.
// Both callbacks run on a goroutine owned by the subscription.
func (h *Hub) Subscribe(f domain.Filter, fn func(domain.Event), onEOSE func()) string {
	id := uuid.NewString()
	s := &hubSub{filter: f, out: newDeliveryQueue(fn, onEOSE)}

	h.mu.Lock()
	for _, e := range h.events {
		if Matches(f, e) {
			s.out.push(e)
		}
	}
	s.out.pushEOSE()
	h.subs[id] = s
	h.mu.Unlock()
	return id
}

func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	s, ok := h.subs[id]
	delete(h.subs, id)
	h.mu.Unlock()
	if ok {
		s.out.close()
	}
}

// Stored returns the number of events kept for replay.
func (h *Hub) Stored() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.events)
}
