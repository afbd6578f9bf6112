package relay

import (
	"sync"

	"github.com/eapache/queue"

	"keybridge/internal/domain"
)

// deliveryQueue hands events to a callback on its own goroutine, in order.
// Push never blocks, so publishers and relay readers are decoupled from slow
// subscribers.
type deliveryQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	q      *queue.Queue
	closed bool
	done   chan struct{}

	onEvent func(domain.Event)
	onEOSE  func()
}

// delivery is one queued item: an event, or the end-of-stored-events marker.
type delivery struct {
	evt  domain.Event
	eose bool
}

func newDeliveryQueue(onEvent func(domain.Event), onEOSE func()) *deliveryQueue {
	d := &deliveryQueue{
		q:       queue.New(),
		done:    make(chan struct{}),
		onEvent: onEvent,
		onEOSE:  onEOSE,
	}
	d.cond = sync.NewCond(&d.mu)
	go d.run()
	return d
}

func (d *deliveryQueue) push(e domain.Event) { d.add(delivery{evt: e}) }

func (d *deliveryQueue) pushEOSE() { d.add(delivery{eose: true}) }

func (d *deliveryQueue) add(item delivery) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.q.Add(item)
	d.cond.Signal()
}

// close stops delivery. Events still queued are discarded.
func (d *deliveryQueue) close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		d.cond.Signal()
	}
	d.mu.Unlock()
}

func (d *deliveryQueue) run() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for d.q.Length() == 0 && !d.closed {
			d.cond.Wait()
		}
		if d.closed {
			d.mu.Unlock()
			return
		}
		item := d.q.Remove().(delivery)
		d.mu.Unlock()

		switch {
		case !item.eose:
			d.onEvent(item.evt)
		case d.onEOSE != nil:
			d.onEOSE()
		}
	}
}
