package bunker_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"keybridge/internal/crypto"
	"keybridge/internal/domain"
	"keybridge/internal/protocol/rpc"
	"keybridge/internal/relay"
	"keybridge/internal/services/provider"
)

// fakeSigner is a remote signer on a shared HubSet. It answers the NIP-46
// methods with a local user key, and can hold requests back so tests control
// when (and in which order) responses go out.
type fakeSigner struct {
	t      *testing.T
	pool   *relay.MemoryPool
	key    *provider.LocalKey
	user   *provider.LocalKey
	relays []string
	sub    domain.Subscription

	mu          sync.Mutex
	requests    []rpc.Request
	hold        map[string]bool
	held        []heldRequest
	override    map[string]rpc.Response
	authFirst   map[string]string
	replyScheme crypto.Scheme
}

type heldRequest struct {
	req    rpc.Request
	sender string
}

func newFakeSigner(t *testing.T, hubs *relay.HubSet, relays ...string) *fakeSigner {
	t.Helper()
	ctx := context.Background()
	s := &fakeSigner{
		t:           t,
		pool:        relay.NewMemoryPool(hubs),
		key:         newLocal(t),
		user:        newLocal(t),
		relays:      relays,
		hold:        make(map[string]bool),
		override:    make(map[string]rpc.Response),
		authFirst:   make(map[string]string),
		replyScheme: crypto.NIP44,
	}
	for _, r := range relays {
		if err := s.pool.EnsureRelay(ctx, r); err != nil {
			t.Fatalf("signer relay: %v", err)
		}
	}
	pub, _ := s.key.GetPublicKey(ctx)
	sub, err := s.pool.Subscribe(ctx, relays, domain.Filter{
		Kinds: []int{domain.KindNostrConnect},
		PTags: []string{pub},
	}, s.onEvent)
	if err != nil {
		t.Fatalf("signer subscribe: %v", err)
	}
	s.sub = sub
	t.Cleanup(sub.Close)
	return s
}

func newLocal(t *testing.T) *provider.LocalKey {
	t.Helper()
	sk, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	return provider.NewLocalKey(sk)
}

func (s *fakeSigner) pubkey() string {
	p, _ := s.key.GetPublicKey(context.Background())
	return p
}

func (s *fakeSigner) userPubkey() string {
	p, _ := s.user.GetPublicKey(context.Background())
	return p
}

func (s *fakeSigner) token() string {
	tok := "bunker://" + s.pubkey() + "?"
	for i, r := range s.relays {
		if i > 0 {
			tok += "&"
		}
		tok += "relay=" + r
	}
	return tok
}

func (s *fakeSigner) holdMethod(method string) {
	s.mu.Lock()
	s.hold[method] = true
	s.mu.Unlock()
}

func (s *fakeSigner) respondWith(method string, resp rpc.Response) {
	s.mu.Lock()
	s.override[method] = resp
	s.mu.Unlock()
}

func (s *fakeSigner) methods() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.requests))
	for _, r := range s.requests {
		out = append(out, r.Method)
	}
	return out
}

func (s *fakeSigner) requestList() []rpc.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]rpc.Request(nil), s.requests...)
}

// waitHeld blocks until n requests are being held and returns them.
func (s *fakeSigner) waitHeld(n int) []heldRequest {
	s.t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		if len(s.held) >= n {
			out := append([]heldRequest(nil), s.held...)
			s.mu.Unlock()
			return out
		}
		s.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	s.t.Fatalf("signer never received %d held requests", n)
	return nil
}

// release answers a held request normally.
func (s *fakeSigner) release(h heldRequest) {
	s.reply(h.sender, s.answer(h.req))
}

func (s *fakeSigner) onEvent(evt domain.Event) {
	plain, err := crypto.Decrypt(s.key.Secret(), evt.PubKey, evt.Content)
	if err != nil {
		s.t.Errorf("signer decrypt: %v", err)
		return
	}
	var req rpc.Request
	if err := json.Unmarshal(plain, &req); err != nil {
		s.t.Errorf("signer parse: %v", err)
		return
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	held := s.hold[req.Method]
	if held {
		s.held = append(s.held, heldRequest{req: req, sender: evt.PubKey})
	}
	authURL, challenge := s.authFirst[req.Method]
	delete(s.authFirst, req.Method)
	s.mu.Unlock()

	if challenge {
		s.reply(evt.PubKey, rpc.Response{ID: req.ID, Result: quoted(rpc.AuthURLResult), Error: authURL})
	}
	if held {
		return
	}
	s.reply(evt.PubKey, s.answer(req))
}

func (s *fakeSigner) answer(req rpc.Request) rpc.Response {
	ctx := context.Background()
	s.mu.Lock()
	resp, overridden := s.override[req.Method]
	s.mu.Unlock()
	if overridden {
		resp.ID = req.ID
		return resp
	}

	result := func(v string) rpc.Response { return rpc.Response{ID: req.ID, Result: quoted(v)} }
	fail := func(err error) rpc.Response { return rpc.Response{ID: req.ID, Error: err.Error()} }

	switch req.Method {
	case rpc.MethodConnect:
		return result("ack")
	case rpc.MethodGetPublicKey:
		return result(s.userPubkey())
	case rpc.MethodPing:
		return result("pong")
	case rpc.MethodSignEvent:
		var evt domain.Event
		if err := json.Unmarshal([]byte(req.Params[0]), &evt); err != nil {
			return fail(err)
		}
		if err := s.user.SignEvent(ctx, &evt); err != nil {
			return fail(err)
		}
		b, _ := json.Marshal(evt)
		return result(string(b))
	case rpc.MethodNIP04Encrypt, rpc.MethodNIP44Encrypt, rpc.MethodNIP04Decrypt, rpc.MethodNIP44Decrypt:
		c := s.user.NIP44()
		if req.Method == rpc.MethodNIP04Encrypt || req.Method == rpc.MethodNIP04Decrypt {
			c = s.user.NIP04()
		}
		var out string
		var err error
		if req.Method == rpc.MethodNIP04Encrypt || req.Method == rpc.MethodNIP44Encrypt {
			out, err = c.Encrypt(ctx, req.Params[1], req.Params[0])
		} else {
			out, err = c.Decrypt(ctx, req.Params[1], req.Params[0])
		}
		if err != nil {
			return fail(err)
		}
		return result(out)
	}
	return rpc.Response{ID: req.ID, Error: "unsupported method " + req.Method}
}

func (s *fakeSigner) reply(to string, resp rpc.Response) {
	body, err := json.Marshal(resp)
	if err != nil {
		s.t.Errorf("signer marshal: %v", err)
		return
	}
	s.mu.Lock()
	scheme := s.replyScheme
	s.mu.Unlock()
	content, err := crypto.Encrypt(scheme, s.key.Secret(), to, body)
	if err != nil {
		s.t.Errorf("signer encrypt: %v", err)
		return
	}
	evt := domain.Event{
		CreatedAt: time.Now().Unix(),
		Kind:      domain.KindNostrConnect,
		Tags:      [][]string{{"p", to}},
		Content:   content,
	}
	if err := crypto.SignEvent(&evt, s.key.Secret()); err != nil {
		s.t.Errorf("signer sign: %v", err)
		return
	}
	if err := s.pool.Publish(context.Background(), s.relays, evt); err != nil {
		s.t.Errorf("signer publish: %v", err)
	}
}

func quoted(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}
