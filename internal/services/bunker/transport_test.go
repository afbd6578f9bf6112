package bunker_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"keybridge/internal/domain"
	"keybridge/internal/relay"
	"keybridge/internal/services/bunker"
	"keybridge/internal/services/provider"
	"keybridge/internal/store"
)

var errRefused = errors.New("connection refused")

const deadRelay = "wss://down.example"

func TestConnect_SkipsUnreachableRelay(t *testing.T) {
	h := newHarness(t)
	h.pool.SetUnreachable(deadRelay, errRefused)
	e := h.engine(t, bunker.Config{}, nil)

	user, err := e.Connect(context.Background(), h.signer.token()+"&relay="+deadRelay)
	if err != nil {
		t.Fatalf("connect with one dead relay: %v", err)
	}
	if user != h.signer.userPubkey() || e.State() != domain.StateReady {
		t.Fatalf("user %q state %s", user, e.State())
	}
	if got := h.pool.Relays(); len(got) != 1 || got[0] != relayURL {
		t.Fatalf("pool relays %v", got)
	}
	sess, _ := e.Session()
	if !equalStrings(sess.Relays, []string{relayURL, deadRelay}) {
		t.Fatalf("session relays %v", sess.Relays)
	}
}

func TestConnect_AllRelaysUnreachable(t *testing.T) {
	h := newHarness(t)
	h.pool.SetUnreachable(relayURL, errRefused)
	e := h.engine(t, bunker.Config{}, nil)

	_, err := e.Connect(context.Background(), h.signer.token())
	if !errors.Is(err, bunker.ErrUnreachable) || !errors.Is(err, errRefused) {
		t.Fatalf("want ErrUnreachable, got %v", err)
	}
	if e.State() != domain.StateError {
		t.Fatalf("state %s", e.State())
	}
	if len(h.signer.methods()) != 0 {
		t.Fatal("requests sent without a relay")
	}
}

func TestResume_UnreachableRelayKeepsRecord(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	first := h.connected(t, bunker.Config{})
	user, _ := first.Provider().GetPublicKey(ctx)
	_ = first.Close()

	h.pool = relay.NewMemoryPool(h.hubs)
	h.pool.SetUnreachable(relayURL, errRefused)
	offline := h.engine(t, bunker.Config{}, nil)
	if offline.State() != domain.StateError || !errors.Is(offline.Err(), bunker.ErrUnreachable) {
		t.Fatalf("state %s err %v", offline.State(), offline.Err())
	}
	if _, ok, _ := h.kv.Get(store.SessionKey); !ok {
		t.Fatal("valid record cleared because a relay was down")
	}
	_ = offline.Close()

	h.pool = relay.NewMemoryPool(h.hubs)
	online := h.engine(t, bunker.Config{}, nil)
	if online.State() != domain.StateReady {
		t.Fatalf("state after relay returned %s (%v)", online.State(), online.Err())
	}
	if got, _ := online.Provider().GetPublicKey(ctx); got != user {
		t.Fatalf("resumed user %q, want %q", got, user)
	}
	if err := online.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestResume_WrongPassphraseKeepsRecord(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	params := store.ScryptParams{N: 1 << 10, R: 8, P: 1}

	first := newEngine(t, bunker.Options{
		Pool:  h.pool,
		Store: store.NewSealed(h.kv, "right", params),
	})
	if _, err := first.Connect(ctx, h.signer.token()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	_ = first.Close()

	second := newEngine(t, bunker.Options{
		Pool:  relay.NewMemoryPool(h.hubs),
		Store: store.NewSealed(h.kv, "wrong", params),
	})
	if second.State() != domain.StateError || !errors.Is(second.Err(), store.ErrWrongPassphrase) {
		t.Fatalf("state %s err %v", second.State(), second.Err())
	}
	if _, ok, _ := h.kv.Get(store.SessionKey); !ok {
		t.Fatal("record cleared on a wrong passphrase")
	}
}

// startHubRelay serves hubs.Hub(url) over websocket and returns url.
func startHubRelay(t *testing.T, hubs *relay.HubSet) string {
	t.Helper()
	var handler http.Handler
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	handler = relay.NewServer(hubs.Hub(url), zerolog.Nop())
	return url
}

func wsPool(t *testing.T) *relay.Pool {
	t.Helper()
	p := relay.NewPool(relay.Options{Logger: zerolog.Nop()})
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestResume_OneDeadRelayOverWebsocket(t *testing.T) {
	ctx := context.Background()
	hubs := relay.NewHubSet()
	live := startHubRelay(t, hubs)
	signer := newFakeSigner(t, hubs, live)
	kv := store.NewMemoryStore()
	const refused = "ws://127.0.0.1:1"

	first := newEngine(t, bunker.Options{Pool: wsPool(t), Store: kv, Registry: provider.NewRegistry()})
	user, err := first.Connect(ctx, signer.token()+"&relay="+refused)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	_ = first.Close()

	second := newEngine(t, bunker.Options{Pool: wsPool(t), Store: kv, Registry: provider.NewRegistry()})
	if second.State() != domain.StateReady {
		t.Fatalf("resumed state %s (%v)", second.State(), second.Err())
	}
	if got, _ := second.Provider().GetPublicKey(ctx); got != user {
		t.Fatalf("resumed user %q, want %q", got, user)
	}
	if _, ok, _ := kv.Get(store.SessionKey); !ok {
		t.Fatal("record cleared")
	}
	if err := second.Ping(ctx); err != nil {
		t.Fatalf("ping over the live relay: %v", err)
	}
}
