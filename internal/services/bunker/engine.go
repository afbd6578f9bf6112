package bunker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"keybridge/internal/crypto"
	"keybridge/internal/domain"
	"keybridge/internal/protocol/rpc"
	"keybridge/internal/protocol/uri"
	"keybridge/internal/services/provider"
	"keybridge/internal/store"
)

// Options are the engine's collaborators.
type Options struct {
	Pool     domain.RelayPool
	Store    domain.KeyValueStore
	Registry *provider.Registry
	Logger   zerolog.Logger
	Config   Config
	// OnAuthURL is called when the signer asks the user to approve a request
	// at a URL. It runs on the relay delivery goroutine and must not block.
	OnAuthURL func(url string)
}

// Engine pairs with a remote signer and runs RPC calls against it.
//
// It owns at most one session. States move idle -> connecting -> ready, and
// to error when pairing or resumption fails. Any number of calls may be in
// flight at once; they are correlated by id only.
type Engine struct {
	pool      domain.RelayPool
	sessions  *store.SessionStore
	registry  *provider.Registry
	log       zerolog.Logger
	cfg       Config
	onAuthURL func(string)
	pending   *rpc.Pending
	facade    *Facade

	mu      sync.RWMutex
	state   domain.State
	lastErr error
	cur     *live
	gen     uint64
	restore func()
	savedAt time.Time

	// persistMu orders session writes against clears so a late
	// last-contact update can never resurrect a cleared record.
	persistMu sync.Mutex
}

// New builds an engine and attempts to resume a persisted session. A failed
// resumption is not an error here; it leaves the engine in StateError. The
// record is cleared only when it is corrupt or from an incompatible version;
// unreachable relays or an unreadable store keep it for the next attempt.
func New(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Pool == nil {
		return nil, errors.New("bunker: relay pool is required")
	}
	if opts.Store == nil {
		return nil, errors.New("bunker: store is required")
	}
	if opts.Registry == nil {
		opts.Registry = provider.NewRegistry()
	}
	e := &Engine{
		pool:      opts.Pool,
		sessions:  store.NewSessionStore(opts.Store),
		registry:  opts.Registry,
		log:       opts.Logger.With().Str("component", "bunker").Logger(),
		cfg:       opts.Config.withDefaults(),
		onAuthURL: opts.OnAuthURL,
		pending:   rpc.NewPending(),
		state:     domain.StateIdle,
	}
	e.facade = &Facade{engine: e}
	e.resume(ctx)
	return e, nil
}

// resume rehydrates the persisted session, binds it and marks it ready
// without contacting the signer.
func (e *Engine) resume(ctx context.Context) {
	sess, ok, err := e.sessions.Load()
	if err != nil {
		e.resumeFailed(nil, err, unusableRecord(err))
		return
	}
	if !ok {
		return
	}
	client, err := validateSession(sess)
	if err != nil {
		e.resumeFailed(nil, err, true)
		return
	}
	sess.ClientPubKey = client.PublicKey()
	l := newLive(sess, client)

	e.mu.Lock()
	e.gen++
	gen := e.gen
	e.cur = l
	e.mu.Unlock()

	if err := e.bind(ctx, l); err != nil {
		e.resumeFailed(l, err, false)
		return
	}

	e.mu.Lock()
	if e.gen != gen {
		e.mu.Unlock()
		return
	}
	e.state = domain.StateReady
	e.savedAt = time.Now()
	e.restore = e.registry.Install(e.facade)
	e.mu.Unlock()

	e.log.Info().
		Str("state", string(domain.StateReady)).
		Str("user", sess.UserPubKey).
		Strs("relays", sess.Relays).
		Msg("session resumed")
}

func unusableRecord(err error) bool {
	return errors.Is(err, store.ErrCorruptRecord) || errors.Is(err, store.ErrSessionVersion)
}

// resumeFailed moves to StateError. drop removes the stored record as well.
func (e *Engine) resumeFailed(l *live, err error, drop bool) {
	err = fmt.Errorf("resume session: %w", err)
	e.mu.Lock()
	if l == nil || e.cur == l {
		e.cur = nil
		e.gen++
		e.state = domain.StateError
		e.lastErr = err
	}
	e.mu.Unlock()
	if l != nil {
		l.wipe()
	}
	if !drop {
		e.log.Warn().Err(err).Str("state", string(domain.StateError)).Msg("session kept for retry")
		return
	}
	e.clearRecord()
	e.log.Warn().Err(err).Str("state", string(domain.StateError)).Msg("session cleared")
}

func validateSession(sess domain.Session) (*crypto.SecretKey, error) {
	if !crypto.IsHex32(sess.RemotePubKey) || !crypto.IsHex32(sess.UserPubKey) || len(sess.Relays) == 0 {
		return nil, ErrCorruptSession
	}
	client, err := crypto.ParseSecret(sess.ClientSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSession, err)
	}
	if sess.ClientPubKey != "" && sess.ClientPubKey != client.PublicKey() {
		client.Zero()
		return nil, fmt.Errorf("%w: client key mismatch", ErrCorruptSession)
	}
	return client, nil
}

// Connect pairs with the signer named by token and returns the user public
// key it controls. A malformed token fails before any state change. A ready
// session is torn down first; a pairing already in flight yields ErrBusy.
func (e *Engine) Connect(ctx context.Context, token string) (string, error) {
	desc, err := uri.Parse(token)
	if err != nil {
		return "", err
	}

	e.mu.Lock()
	if e.state == domain.StateConnecting {
		e.mu.Unlock()
		return "", ErrBusy
	}
	old, restore := e.cur, e.restore
	e.cur, e.restore = nil, nil
	e.gen++
	gen := e.gen
	e.state = domain.StateConnecting
	e.lastErr = nil
	e.mu.Unlock()

	if old != nil {
		if restore != nil {
			restore()
		}
		if n := e.pending.RejectAll(ErrDisconnected); n > 0 {
			e.log.Info().Int("pending", n).Msg("rejected calls of replaced session")
		}
		old.wipe()
		e.clearRecord()
	}

	log := e.log.With().Str("remote", desc.RemotePubKey).Logger()
	log.Info().Str("state", string(domain.StateConnecting)).Strs("relays", desc.Relays).Msg("pairing")

	// 1. Fresh client identity for this session.
	client, err := crypto.GenerateKey()
	if err != nil {
		return e.failConnect(gen, nil, fmt.Errorf("generate client key: %w", err))
	}
	l := newLive(domain.Session{
		RemotePubKey: desc.RemotePubKey,
		Relays:       desc.Relays,
		ClientSecret: client.Hex(),
		ClientPubKey: client.PublicKey(),
		Secret:       desc.Secret,
		Perms:        desc.Perms,
		Name:         desc.Name,
	}, client)

	e.mu.Lock()
	if e.gen != gen {
		e.mu.Unlock()
		l.wipe()
		return "", ErrDisconnected
	}
	e.cur = l
	e.mu.Unlock()

	// 2. Inbound subscription before the first request goes out.
	if err := e.bind(ctx, l); err != nil {
		return e.failConnect(gen, l, err)
	}

	// 3. connect [remote, secret?, perms?]
	ack, err := e.call(ctx, l, rpc.MethodConnect, connectParams(desc), e.cfg.HandshakeTimeout)
	if err != nil {
		return e.failConnect(gen, l, fmt.Errorf("connect rpc: %w", err))
	}
	if ack != "ack" && (desc.Secret == "" || ack != desc.Secret) {
		return e.failConnect(gen, l, fmt.Errorf("connect rpc: %w: %q", ErrUnexpectedAck, ack))
	}

	// 4. get_public_key []
	user, err := e.call(ctx, l, rpc.MethodGetPublicKey, nil, e.cfg.HandshakeTimeout)
	if err != nil {
		return e.failConnect(gen, l, fmt.Errorf("get_public_key rpc: %w", err))
	}
	user = strings.ToLower(strings.TrimSpace(user))
	if !crypto.IsHex32(user) {
		return e.failConnect(gen, l, fmt.Errorf("get_public_key rpc: %w: %q", ErrUnexpectedResult, user))
	}

	// 5. Persist, go ready, install the facade.
	e.mu.Lock()
	l.sess.UserPubKey = user
	l.sess.LastContact = time.Now().Unix()
	snap := l.sess
	e.mu.Unlock()

	if err := e.persist(l, snap); err != nil {
		return e.failConnect(gen, l, fmt.Errorf("persist session: %w", err))
	}

	e.mu.Lock()
	if e.gen != gen {
		e.mu.Unlock()
		return "", ErrDisconnected
	}
	e.state = domain.StateReady
	e.savedAt = time.Now()
	e.restore = e.registry.Install(e.facade)
	e.mu.Unlock()

	log.Info().Str("state", string(domain.StateReady)).Str("user", user).Msg("paired")
	return user, nil
}

func connectParams(d domain.ConnectionDescriptor) []string {
	params := []string{d.RemotePubKey}
	if d.Secret != "" || len(d.Perms) > 0 {
		params = append(params, d.Secret)
	}
	if len(d.Perms) > 0 {
		params = append(params, strings.Join(d.Perms, ","))
	}
	return params
}

// failConnect discards the partial session. When a Disconnect or a newer
// Connect has already taken over, state is left alone.
func (e *Engine) failConnect(gen uint64, l *live, err error) (string, error) {
	e.mu.Lock()
	current := e.gen == gen
	if current {
		e.cur = nil
		e.state = domain.StateError
		e.lastErr = err
	}
	e.mu.Unlock()

	if l != nil {
		l.wipe()
	}
	if current {
		e.clearRecord()
		e.log.Warn().Err(err).Str("state", string(domain.StateError)).Msg("pairing failed")
	}
	return "", err
}

// Disconnect ends the session: pending calls fail with ErrDisconnected, the
// facade is removed and the stored record is cleared.
func (e *Engine) Disconnect(context.Context) error {
	e.mu.Lock()
	l, restore := e.cur, e.restore
	e.cur, e.restore = nil, nil
	e.gen++
	e.state = domain.StateIdle
	e.lastErr = nil
	e.mu.Unlock()

	if restore != nil {
		restore()
	}
	n := e.pending.RejectAll(ErrDisconnected)
	if l != nil {
		l.wipe()
	}
	err := e.clearRecord()
	e.log.Info().Int("rejected", n).Str("state", string(domain.StateIdle)).Msg("disconnected")
	return err
}

// Close releases the session's subscription and key but keeps the stored
// record, so the next engine resumes it.
func (e *Engine) Close() error {
	e.mu.Lock()
	l, restore := e.cur, e.restore
	e.cur, e.restore = nil, nil
	e.gen++
	e.state = domain.StateIdle
	e.mu.Unlock()

	if restore != nil {
		restore()
	}
	e.pending.RejectAll(ErrClosed)
	if l != nil {
		l.wipe()
	}
	return nil
}

// Ping checks the signer is reachable. It is never run implicitly.
func (e *Engine) Ping(ctx context.Context) error {
	l, _, err := e.ready()
	if err != nil {
		return err
	}
	res, err := e.call(ctx, l, rpc.MethodPing, nil, e.cfg.Timeout)
	if err != nil {
		return fmt.Errorf("ping rpc: %w", err)
	}
	if res != "pong" {
		return fmt.Errorf("ping rpc: %w: %q", ErrUnexpectedResult, res)
	}
	return nil
}

func (e *Engine) State() domain.State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Err returns the failure that put the engine in StateError.
func (e *Engine) Err() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastErr
}

// Session returns a redacted copy of the active session.
func (e *Engine) Session() (domain.Session, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.cur == nil {
		return domain.Session{}, false
	}
	return e.cur.sess.Redacted(), true
}

// Provider returns the facade the engine installs while ready.
func (e *Engine) Provider() *Facade { return e.facade }

// Pending reports the number of calls in flight.
func (e *Engine) Pending() int { return e.pending.Len() }

func (e *Engine) ready() (*live, string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.state != domain.StateReady || e.cur == nil {
		return nil, "", ErrNotConnected
	}
	return e.cur, e.cur.sess.UserPubKey, nil
}

func (e *Engine) isCurrent(l *live) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cur == l
}

// call sends one request over l and waits for its outcome, the timeout or
// ctx, whichever comes first.
func (e *Engine) call(ctx context.Context, l *live, method string, params []string, timeout time.Duration) (string, error) {
	if params == nil {
		params = []string{}
	}
	id := rpc.NewID()
	body, err := json.Marshal(rpc.Request{ID: id, Method: method, Params: params})
	if err != nil {
		return "", err
	}
	evt, err := l.seal(e.cfg.Encryption, body)
	if err != nil {
		return "", err
	}

	// Register before publishing so an immediate response finds its entry.
	done, err := e.pending.Add(id, method, timeout)
	if err != nil {
		return "", err
	}
	e.log.Debug().Str("method", method).Str("id", id).Msg("request")

	if err := e.pool.Publish(ctx, l.sess.Relays, evt); err != nil {
		e.pending.Resolve(id, rpc.Outcome{Err: fmt.Errorf("publish: %w", err)})
	}

	select {
	case o := <-done:
		switch {
		case o.Err != nil:
			return "", o.Err
		case o.Remote != "":
			return "", &rpc.RemoteError{Method: method, Message: o.Remote}
		}
		return o.Result, nil
	case <-ctx.Done():
		e.pending.Remove(id)
		return "", ctx.Err()
	}
}

// touch refreshes last-contact after a successful response, writing it back
// at most once per PersistInterval.
func (e *Engine) touch(l *live) {
	now := time.Now()
	e.mu.Lock()
	if e.cur != l || e.state != domain.StateReady {
		e.mu.Unlock()
		return
	}
	l.sess.LastContact = now.Unix()
	due := now.Sub(e.savedAt) >= e.cfg.PersistInterval
	if due {
		e.savedAt = now
	}
	snap := l.sess
	e.mu.Unlock()

	if !due {
		return
	}
	if err := e.persist(l, snap); err != nil {
		e.log.Warn().Err(err).Msg("last contact not saved")
	}
}

// persist writes snap if l is still the active session.
func (e *Engine) persist(l *live, snap domain.Session) error {
	e.persistMu.Lock()
	defer e.persistMu.Unlock()
	if !e.isCurrent(l) {
		return ErrDisconnected
	}
	return e.sessions.Save(snap)
}

func (e *Engine) clearRecord() error {
	e.persistMu.Lock()
	defer e.persistMu.Unlock()
	if err := e.sessions.Clear(); err != nil {
		e.log.Warn().Err(err).Msg("session record not cleared")
		return err
	}
	return nil
}
