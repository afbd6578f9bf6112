package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"keybridge/internal/domain"
)

var ErrUnknownRelay = errors.New("relay not in pool")

// Publication is one Publish call seen by a MemoryPool.
type Publication struct {
	Relays []string
	Event  domain.Event
}

// MemoryPool is a RelayPool whose relays are in-process Hubs. Pools created
// with the same HubSet share relays, which is how tests put a client and a
// simulated signer on the same network.
type MemoryPool struct {
	hubs *HubSet

	mu         sync.Mutex
	relays     []string
	known      map[string]bool
	published  []Publication
	publishErr error
	down       map[string]error
}

var _ domain.RelayPool = (*MemoryPool)(nil)

// HubSet maps relay URLs to Hubs.
type HubSet struct {
	mu   sync.Mutex
	hubs map[string]*Hub
}

func NewHubSet() *HubSet { return &HubSet{hubs: make(map[string]*Hub)} }

// Hub returns the hub for url, creating it on first use.
func (s *HubSet) Hub(url string) *Hub {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hubs[url]
	if !ok {
		h = NewHub()
		s.hubs[url] = h
	}
	return h
}

func NewMemoryPool(hubs *HubSet) *MemoryPool {
	if hubs == nil {
		hubs = NewHubSet()
	}
	return &MemoryPool{hubs: hubs, known: make(map[string]bool), down: make(map[string]error)}
}

// EnsureRelay adds url, or fails with the error set by SetUnreachable.
func (p *MemoryPool) EnsureRelay(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.down[url]; err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	if !p.known[url] {
		p.known[url] = true
		p.relays = append(p.relays, url)
	}
	return nil
}

// Publish delivers e to every known relay in relays. Like Pool, it fails
// only when none of them is known.
func (p *MemoryPool) Publish(_ context.Context, relays []string, e domain.Event) error {
	p.mu.Lock()
	p.published = append(p.published, Publication{Relays: append([]string(nil), relays...), Event: e})
	failure := p.publishErr
	targets := p.knownLocked(relays)
	p.mu.Unlock()

	if failure != nil {
		return failure
	}
	if len(targets) == 0 {
		return fmt.Errorf("%w: %v", ErrUnknownRelay, relays)
	}
	for _, r := range targets {
		p.hubs.Hub(r).Publish(e)
	}
	return nil
}

func (p *MemoryPool) Subscribe(
	_ context.Context,
	relays []string,
	f domain.Filter,
	onEvent func(domain.Event),
) (domain.Subscription, error) {
	p.mu.Lock()
	targets := p.knownLocked(relays)
	p.mu.Unlock()
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrUnknownRelay, relays)
	}

	sub := &memorySub{dedup: newDedup(dedupWindow)}
	deliver := func(e domain.Event) {
		if sub.dedup.first(e.ID) {
			onEvent(e)
		}
	}
	for _, r := range targets {
		h := p.hubs.Hub(r)
		sub.parts = append(sub.parts, hubRef{hub: h, id: h.Subscribe(f, deliver, nil)})
	}
	return sub, nil
}

func (p *MemoryPool) knownLocked(relays []string) []string {
	out := make([]string, 0, len(relays))
	for _, r := range relays {
		if p.known[r] {
			out = append(out, r)
		}
	}
	return out
}

// SetUnreachable makes EnsureRelay(url) fail with err (nil restores). Relays
// already added stay connected.
func (p *MemoryPool) SetUnreachable(url string, err error) {
	p.mu.Lock()
	if err == nil {
		delete(p.down, url)
	} else {
		p.down[url] = err
	}
	p.mu.Unlock()
}

// SetPublishError makes every later Publish fail with err (nil restores).
func (p *MemoryPool) SetPublishError(err error) {
	p.mu.Lock()
	p.publishErr = err
	p.mu.Unlock()
}

// Relays returns the relays added so far, in order.
func (p *MemoryPool) Relays() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.relays...)
}

// Published returns every Publish call so far.
func (p *MemoryPool) Published() []Publication {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Publication(nil), p.published...)
}

type hubRef struct {
	hub *Hub
	id  string
}

type memorySub struct {
	once  sync.Once
	parts []hubRef
	dedup *dedup
}

func (s *memorySub) Close() {
	s.once.Do(func() {
		for _, part := range s.parts {
			part.hub.Unsubscribe(part.id)
		}
	})
}
