package relay

import (
	"sync"

	"github.com/eapache/queue"
)

// dedupWindow is how many recent event ids a subscription remembers.
const dedupWindow = 1024

// dedup remembers the last limit event ids delivered to one subscription.
// Older ids are forgotten in arrival order.
type dedup struct {
	mu    sync.Mutex
	limit int
	seen  map[string]struct{}
	order *queue.Queue
}

func newDedup(limit int) *dedup {
	if limit <= 0 {
		limit = dedupWindow
	}
	return &dedup{
		limit: limit,
		seen:  make(map[string]struct{}, limit),
		order: queue.New(),
	}
}

func (d *dedup) first(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[id]; ok {
		return false
	}
	d.seen[id] = struct{}{}
	d.order.Add(id)
	for d.order.Length() > d.limit {
		delete(d.seen, d.order.Remove().(string))
	}
	return true
}

func (d *dedup) size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
