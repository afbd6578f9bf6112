package bunker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"keybridge/internal/crypto"
	"keybridge/internal/domain"
	"keybridge/internal/protocol/rpc"
)

// live is the in-memory half of a session.
//
// sess.RemotePubKey, sess.Relays and sess.ClientPubKey never change after
// creation and may be read without a lock. The remaining sess fields are
// guarded by Engine.mu. mu guards the key and the subscription, which are
// released exactly once by wipe.
type live struct {
	sess domain.Session

	mu     sync.RWMutex
	client *crypto.SecretKey
	sub    domain.Subscription
}

func newLive(sess domain.Session, client *crypto.SecretKey) *live {
	return &live{sess: sess, client: client}
}

// seal encrypts body to the remote signer and wraps it in a signed
// kind-24133 event from the client key.
func (l *live) seal(scheme crypto.Scheme, body []byte) (domain.Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.client == nil {
		return domain.Event{}, ErrDisconnected
	}
	content, err := crypto.Encrypt(scheme, l.client, l.sess.RemotePubKey, body)
	if err != nil {
		return domain.Event{}, fmt.Errorf("encrypt request: %w", err)
	}
	evt := domain.Event{
		CreatedAt: time.Now().Unix(),
		Kind:      domain.KindNostrConnect,
		Tags:      [][]string{{"p", l.sess.RemotePubKey}},
		Content:   content,
	}
	if err := crypto.SignEvent(&evt, l.client); err != nil {
		return domain.Event{}, fmt.Errorf("sign request: %w", err)
	}
	return evt, nil
}

func (l *live) open(evt domain.Event) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.client == nil {
		return nil, ErrDisconnected
	}
	return crypto.Decrypt(l.client, evt.PubKey, evt.Content)
}

// attach records sub unless the session was wiped meanwhile, in which case
// sub is closed and false returned.
func (l *live) attach(sub domain.Subscription) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.client == nil {
		sub.Close()
		return false
	}
	l.sub = sub
	return true
}

// wipe closes the subscription and zeroes the client key.
func (l *live) wipe() {
	l.mu.Lock()
	sub, client := l.sub, l.client
	l.sub, l.client = nil, nil
	l.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
	if client != nil {
		client.Zero()
	}
}

// bind adds the session relays to the pool and opens the session's single
// inbound subscription. A relay that cannot be reached is skipped; bind fails
// only when none can. The subscription still names every session relay, so
// the pool resubscribes on one that comes back.
func (e *Engine) bind(ctx context.Context, l *live) error {
	var errs []error
	for _, url := range l.sess.Relays {
		if err := e.pool.EnsureRelay(ctx, url); err != nil {
			e.log.Warn().Err(err).Str("relay", url).Msg("relay unreachable")
			errs = append(errs, fmt.Errorf("add relay %s: %w", url, err))
		}
	}
	if len(errs) == len(l.sess.Relays) {
		return fmt.Errorf("%w: %w", ErrUnreachable, errors.Join(errs...))
	}

	filter := domain.Filter{
		Kinds: []int{domain.KindNostrConnect},
		PTags: []string{l.sess.ClientPubKey},
		Since: time.Now().Add(-e.cfg.Lookback).Unix(),
	}
	sub, err := e.pool.Subscribe(ctx, l.sess.Relays, filter, func(evt domain.Event) {
		e.handleEvent(l, evt)
	})
	if err != nil {
		return fmt.Errorf("%w: subscribe: %w", ErrUnreachable, err)
	}
	if !l.attach(sub) {
		return ErrDisconnected
	}
	return nil
}

// handleEvent validates, decrypts and dispatches one inbound event. Nothing
// here is surfaced to callers: a bad event is logged and dropped, and any
// pending request it might have answered keeps waiting.
func (e *Engine) handleEvent(l *live, evt domain.Event) {
	log := e.log.With().Str("event", evt.ID).Logger()

	if !e.isCurrent(l) {
		log.Debug().Msg("event for a previous session dropped")
		return
	}
	if evt.Kind != domain.KindNostrConnect {
		log.Debug().Int("kind", evt.Kind).Msg("unexpected kind dropped")
		return
	}
	if !evt.Addresses(l.sess.ClientPubKey) {
		log.Debug().Msg("event not addressed to this client dropped")
		return
	}
	if err := crypto.VerifyEvent(evt); err != nil {
		log.Debug().Err(err).Msg("invalid event dropped")
		return
	}

	plain, err := l.open(evt)
	if err != nil {
		log.Warn().Err(err).Msg("undecryptable response dropped")
		return
	}
	var resp rpc.Response
	if err := json.Unmarshal(plain, &resp); err != nil || resp.ID == "" {
		log.Warn().Msg("malformed response dropped")
		return
	}
	log = log.With().Str("id", resp.ID).Logger()

	result := resp.ResultString()
	if result == rpc.AuthURLResult {
		method, ok := e.pending.Method(resp.ID)
		if !ok {
			log.Debug().Msg("auth challenge for unknown request dropped")
			return
		}
		log.Info().Str("method", method).Str("url", resp.Error).Msg("remote signer requests authorization")
		if e.onAuthURL != nil {
			e.onAuthURL(resp.Error)
		}
		return
	}

	if !e.pending.Resolve(resp.ID, rpc.Outcome{Result: result, Remote: resp.Error}) {
		log.Debug().Msg("response without pending request dropped")
		return
	}
	if resp.Error == "" {
		e.touch(l)
	}
}
