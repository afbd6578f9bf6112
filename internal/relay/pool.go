package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"keybridge/internal/domain"
)

var (
	ErrPoolClosed = errors.New("relay pool closed")
	ErrNoRelays   = errors.New("no relays given")
)

// Options tunes a websocket Pool.
type Options struct {
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	Logger       zerolog.Logger
}

// Pool is a RelayPool over one websocket connection per relay URL.
type Pool struct {
	opts   Options
	log    zerolog.Logger
	dialer *websocket.Dialer

	dialMu sync.Mutex // serialises EnsureRelay so one URL is dialled once

	mu     sync.Mutex
	conns  map[string]*conn
	order  []string
	subs   map[string]*poolSub
	closed bool
}

var _ domain.RelayPool = (*Pool)(nil)

func NewPool(opts Options) *Pool {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	return &Pool{
		opts: opts,
		log:  opts.Logger.With().Str("component", "relay-pool").Logger(),
		dialer: &websocket.Dialer{
			HandshakeTimeout: opts.DialTimeout,
		},
		conns: make(map[string]*conn),
		subs:  make(map[string]*poolSub),
	}
}

// EnsureRelay connects to url unless a live connection already exists. A
// connection that dropped is redialled and its subscriptions re-sent.
func (p *Pool) EnsureRelay(ctx context.Context, url string) error {
	p.dialMu.Lock()
	defer p.dialMu.Unlock()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	existing, known := p.conns[url]
	p.mu.Unlock()
	if known && existing.alive() {
		return nil
	}

	dctx, cancel := context.WithTimeout(ctx, p.opts.DialTimeout)
	defer cancel()
	ws, _, err := p.dialer.DialContext(dctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	c := &conn{
		url:          url,
		ws:           ws,
		writeTimeout: p.opts.WriteTimeout,
		done:         make(chan struct{}),
		log:          p.log.With().Str("relay", url).Logger(),
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = ws.Close()
		return ErrPoolClosed
	}
	p.conns[url] = c
	if !known {
		p.order = append(p.order, url)
	}
	var resend []*poolSub
	for _, s := range p.subs {
		if s.covers(url) {
			resend = append(resend, s)
		}
	}
	p.mu.Unlock()

	go p.read(c)

	for _, s := range resend {
		if err := c.send(labelReq, s.id, s.filter); err != nil {
			c.log.Warn().Err(err).Str("sub", s.id).Msg("resubscribe failed")
		}
	}
	if known {
		c.log.Info().Msg("relay reconnected")
	} else {
		c.log.Debug().Msg("relay added")
	}
	return nil
}

// Publish sends e to every relay in relays. It fails only when no relay
// accepted the write.
func (p *Pool) Publish(ctx context.Context, relays []string, e domain.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(relays) == 0 {
		return ErrNoRelays
	}
	var errs []error
	for _, url := range relays {
		c, err := p.live(url)
		if err == nil {
			err = c.send(labelEvent, e)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", url, err))
		}
	}
	if len(errs) == len(relays) {
		return fmt.Errorf("publish %s: %w", e.ID, errors.Join(errs...))
	}
	for _, err := range errs {
		p.log.Warn().Err(err).Str("event", e.ID).Msg("publish failed on relay")
	}
	return nil
}

// Subscribe opens one subscription id across relays. Events seen on more than
// one relay are delivered once.
func (p *Pool) Subscribe(
	ctx context.Context,
	relays []string,
	f domain.Filter,
	onEvent func(domain.Event),
) (domain.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(relays) == 0 {
		return nil, ErrNoRelays
	}
	d := newDedup(dedupWindow)
	s := &poolSub{
		id:     uuid.NewString(),
		pool:   p,
		relays: append([]string(nil), relays...),
		filter: f,
	}
	s.out = newDeliveryQueue(func(e domain.Event) {
		if d.first(e.ID) {
			onEvent(e)
		}
	}, nil)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		s.out.close()
		return nil, ErrPoolClosed
	}
	p.subs[s.id] = s
	p.mu.Unlock()

	var errs []error
	for _, url := range relays {
		c, err := p.live(url)
		if err == nil {
			err = c.send(labelReq, s.id, f)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", url, err))
		}
	}
	if len(errs) == len(relays) {
		s.Close()
		return nil, fmt.Errorf("subscribe: %w", errors.Join(errs...))
	}
	for _, err := range errs {
		p.log.Warn().Err(err).Str("sub", s.id).Msg("subscribe failed on relay")
	}
	return s, nil
}

// Relays returns the URLs added so far, in order.
func (p *Pool) Relays() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.order...)
}

// Close closes every connection and subscription and waits for the readers
// to stop.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	conns := make([]*conn, 0, len(p.conns))
	for _, c := range p.conns {
		conns = append(conns, c)
	}
	subs := p.subs
	p.subs = make(map[string]*poolSub)
	p.mu.Unlock()

	for _, s := range subs {
		s.out.close()
	}
	for _, c := range conns {
		_ = c.ws.Close()
		<-c.done
	}
	return nil
}

func (p *Pool) live(url string) (*conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPoolClosed
	}
	c, ok := p.conns[url]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRelay, url)
	}
	if !c.alive() {
		return nil, fmt.Errorf("connection to %s lost", url)
	}
	return c, nil
}

func (p *Pool) read(c *conn) {
	defer close(c.done)
	for {
		_, b, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn().Err(err).Msg("relay connection lost")
			}
			return
		}
		p.dispatch(c, b)
	}
}

func (p *Pool) dispatch(c *conn, b []byte) {
	label, rest, err := decodeMessage(b)
	if err != nil {
		c.log.Debug().Err(err).Msg("unparseable relay message")
		return
	}
	switch label {
	case labelEvent:
		if len(rest) < 2 {
			return
		}
		subID, err := decodeString(rest[0])
		if err != nil {
			return
		}
		var e domain.Event
		if err := json.Unmarshal(rest[1], &e); err != nil {
			c.log.Debug().Err(err).Msg("bad event from relay")
			return
		}
		p.mu.Lock()
		s, ok := p.subs[subID]
		p.mu.Unlock()
		if !ok || !Matches(s.filter, e) {
			return
		}
		s.out.push(e)
	case labelOK:
		if len(rest) < 3 {
			return
		}
		var accepted bool
		if err := json.Unmarshal(rest[1], &accepted); err != nil || accepted {
			return
		}
		id, _ := decodeString(rest[0])
		msg, _ := decodeString(rest[2])
		c.log.Warn().Str("event", id).Str("reason", msg).Msg("relay rejected event")
	case labelNotice:
		if len(rest) > 0 {
			msg, _ := decodeString(rest[0])
			c.log.Info().Str("notice", msg).Msg("relay notice")
		}
	case labelClosed:
		if len(rest) > 0 {
			id, _ := decodeString(rest[0])
			c.log.Warn().Str("sub", id).Msg("relay closed subscription")
		}
	case labelEOSE:
	default:
		c.log.Debug().Str("label", label).Msg("unknown relay message")
	}
}

type conn struct {
	url          string
	ws           *websocket.Conn
	writeTimeout time.Duration
	done         chan struct{}
	log          zerolog.Logger

	wmu sync.Mutex
}

func (c *conn) alive() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

func (c *conn) send(label string, parts ...any) error {
	b, err := encodeMessage(label, parts...)
	if err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, b)
}

type poolSub struct {
	id     string
	pool   *Pool
	relays []string
	filter domain.Filter
	out    *deliveryQueue
	once   sync.Once
}

func (s *poolSub) covers(url string) bool {
	for _, r := range s.relays {
		if r == url {
			return true
		}
	}
	return false
}

func (s *poolSub) Close() {
	s.once.Do(func() {
		s.pool.mu.Lock()
		delete(s.pool.subs, s.id)
		s.pool.mu.Unlock()
		s.out.close()

		for _, url := range s.relays {
			if c, err := s.pool.live(url); err == nil {
				_ = c.send(labelClose, s.id)
			}
		}
	})
}
