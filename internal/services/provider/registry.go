package provider

import (
	"errors"
	"sync"

	"keybridge/internal/domain"
)

var ErrNoProvider = errors.New("no signing provider installed")

// Registry is the process-wide active-provider slot.
//
// Installs nest: each Install remembers what was active before it, and its
// restore func puts that back. A restore is ignored once something else has
// been installed on top, so a stale teardown never removes a newer provider.
type Registry struct {
	mu      sync.RWMutex
	current *slot
}

type slot struct {
	p    domain.Provider
	prev *slot
}

func NewRegistry() *Registry { return &Registry{} }

// Active returns the installed provider.
func (r *Registry) Active() (domain.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current == nil {
		return nil, ErrNoProvider
	}
	return r.current.p, nil
}

// Install makes p active and returns the func that undoes it.
func (r *Registry) Install(p domain.Provider) (restore func()) {
	r.mu.Lock()
	s := &slot{p: p, prev: r.current}
	r.current = s
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if r.current == s {
				r.current = s.prev
			}
		})
	}
}
