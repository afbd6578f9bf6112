package rpc

import (
	"sync"
	"time"
)

// Outcome settles one pending request. Remote is the signer's error string;
// Err is a local failure (timeout, disconnect, publish error).
type Outcome struct {
	Result string
	Remote string
	Err    error
}

type call struct {
	method string
	done   chan Outcome
	timer  *time.Timer
}

// Pending tracks in-flight requests by id. Each entry carries its own
// deadline timer and is settled exactly once: whichever of response,
// timeout, rejection or removal takes it out of the map first wins.
type Pending struct {
	mu    sync.Mutex
	calls map[string]*call
}

// NewPending returns an empty table.
func NewPending() *Pending {
	return &Pending{calls: make(map[string]*call)}
}

// Add registers id and returns the channel its Outcome is delivered on.
// With timeout > 0 the entry settles with a *TimeoutError when it elapses.
func (p *Pending) Add(id, method string, timeout time.Duration) (<-chan Outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, dup := p.calls[id]; dup {
		return nil, ErrDuplicateID
	}
	c := &call{method: method, done: make(chan Outcome, 1)}
	if timeout > 0 {
		c.timer = time.AfterFunc(timeout, func() {
			p.settle(id, c, Outcome{Err: &TimeoutError{ID: id, Method: method, After: timeout}})
		})
	}
	p.calls[id] = c
	return c.done, nil
}

// Resolve settles id with o. It reports false when id is unknown, which
// callers treat as a duplicate, stale or foreign response.
func (p *Pending) Resolve(id string, o Outcome) bool {
	p.mu.Lock()
	c, ok := p.calls[id]
	p.mu.Unlock()
	if !ok {
		return false
	}
	return p.settle(id, c, o)
}

// Remove drops id without delivering anything.
func (p *Pending) Remove(id string) bool {
	p.mu.Lock()
	c, ok := p.calls[id]
	if ok {
		delete(p.calls, id)
	}
	p.mu.Unlock()
	if ok && c.timer != nil {
		c.timer.Stop()
	}
	return ok
}

// RejectAll settles every entry with err and returns how many there were.
func (p *Pending) RejectAll(err error) int {
	p.mu.Lock()
	calls := p.calls
	p.calls = make(map[string]*call)
	p.mu.Unlock()

	for _, c := range calls {
		if c.timer != nil {
			c.timer.Stop()
		}
		c.done <- Outcome{Err: err}
	}
	return len(calls)
}

// Method returns the method id was sent with.
func (p *Pending) Method(id string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.calls[id]
	if !ok {
		return "", false
	}
	return c.method, true
}

// Len returns the number of in-flight requests.
func (p *Pending) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// settle removes c if it is still the entry for id and delivers o.
func (p *Pending) settle(id string, c *call, o Outcome) bool {
	p.mu.Lock()
	if p.calls[id] != c {
		p.mu.Unlock()
		return false
	}
	delete(p.calls, id)
	p.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
	}
	c.done <- o
	return true
}
