package store_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"keybridge/internal/domain"
	"keybridge/internal/store"
)

var cheap = store.ScryptParams{N: 1 << 10, R: 8, P: 1}

func exerciseKV(t *testing.T, kv domain.KeyValueStore) {
	t.Helper()

	if _, ok, err := kv.Get("bunker/session"); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}
	if err := kv.Set("bunker/session", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := kv.Get("bunker/session")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(got, []byte(`{"a":1}`)) {
		t.Fatalf("got %q", got)
	}
	if err := kv.Set("bunker/session", []byte("second")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if got, _, _ := kv.Get("bunker/session"); string(got) != "second" {
		t.Fatalf("after overwrite got %q", got)
	}
	if err := kv.Delete("bunker/session"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := kv.Get("bunker/session"); ok {
		t.Fatal("key still present after delete")
	}
	if err := kv.Delete("bunker/session"); err != nil {
		t.Fatalf("deleting a missing key: %v", err)
	}
}

func TestMemoryStore(t *testing.T) { exerciseKV(t, store.NewMemoryStore()) }

func TestFileStore(t *testing.T) { exerciseKV(t, store.NewFileStore(t.TempDir())) }

func TestLevelStore(t *testing.T) {
	s, err := store.OpenLevelStore(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	exerciseKV(t, s)
}

func TestSealedStore(t *testing.T) {
	exerciseKV(t, store.NewSealed(store.NewMemoryStore(), "pass", cheap))
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	if err := store.NewFileStore(dir).Set("bunker/session", []byte("v")); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := store.NewFileStore(dir).Get("bunker/session")
	if err != nil || !ok || string(got) != "v" {
		t.Fatalf("reopen: %q ok=%v err=%v", got, ok, err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 || entries[0].IsDir() {
		t.Fatalf("expected a single flat file, got %v", entries)
	}
	info, _ := entries[0].Info()
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestFileStore_RejectsDotKeys(t *testing.T) {
	s := store.NewFileStore(t.TempDir())
	for _, k := range []string{"", ".", ".."} {
		if err := s.Set(k, []byte("x")); !errors.Is(err, store.ErrBadKey) {
			t.Fatalf("key %q: want ErrBadKey, got %v", k, err)
		}
	}
}

func TestLevelStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	s, err := store.OpenLevelStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Set("k", []byte("v")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = store.OpenLevelStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if got, ok, _ := s.Get("k"); !ok || string(got) != "v" {
		t.Fatalf("after reopen got %q ok=%v", got, ok)
	}
}

func TestSealed_WrongPassphrase_Fails(t *testing.T) {
	inner := store.NewMemoryStore()
	if err := store.NewSealed(inner, "correct", cheap).Set("k", []byte("secret")); err != nil {
		t.Fatalf("set: %v", err)
	}
	raw, _, _ := inner.Get("k")
	if bytes.Contains(raw, []byte("secret")) {
		t.Fatal("plaintext visible in sealed record")
	}
	if _, _, err := store.NewSealed(inner, "wrong", cheap).Get("k"); !errors.Is(err, store.ErrWrongPassphrase) {
		t.Fatalf("want ErrWrongPassphrase, got %v", err)
	}
}

func TestSealed_RecordBoundToKey(t *testing.T) {
	inner := store.NewMemoryStore()
	s := store.NewSealed(inner, "pass", cheap)
	if err := s.Set("a", []byte("value")); err != nil {
		t.Fatalf("set: %v", err)
	}
	raw, _, _ := inner.Get("a")
	_ = inner.Set("b", raw)
	if _, _, err := s.Get("b"); !errors.Is(err, store.ErrWrongPassphrase) {
		t.Fatalf("moved record should not open, got %v", err)
	}
}

func TestSessionStore_SaveLoadClear(t *testing.T) {
	ss := store.NewSessionStore(store.NewMemoryStore())

	if _, ok, err := ss.Load(); err != nil || ok {
		t.Fatalf("empty: ok=%v err=%v", ok, err)
	}

	in := domain.Session{
		RemotePubKey: "ab",
		Relays:       []string{"wss://relay.example"},
		ClientSecret: "cd",
		ClientPubKey: "ef",
		UserPubKey:   "01",
		Perms:        []string{"sign_event"},
		LastContact:  1700000000,
	}
	if err := ss.Save(in); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := ss.Load()
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got.Version != domain.SessionRecordVersion {
		t.Fatalf("version = %d", got.Version)
	}
	if got.UserPubKey != in.UserPubKey || got.Relays[0] != in.Relays[0] || got.LastContact != in.LastContact {
		t.Fatalf("mismatch after load: %+v", got)
	}
	if err := ss.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := ss.Load(); ok {
		t.Fatal("session present after clear")
	}
}

func TestSessionStore_RejectsFutureVersion(t *testing.T) {
	kv := store.NewMemoryStore()
	_ = kv.Set(store.SessionKey, []byte(`{"v":99,"remote_pubkey":"ab"}`))
	if _, _, err := store.NewSessionStore(kv).Load(); !errors.Is(err, store.ErrSessionVersion) {
		t.Fatalf("want ErrSessionVersion, got %v", err)
	}
}

func TestSessionStore_CorruptRecord(t *testing.T) {
	kv := store.NewMemoryStore()
	_ = kv.Set(store.SessionKey, []byte("{not json"))
	if _, ok, err := store.NewSessionStore(kv).Load(); !errors.Is(err, store.ErrCorruptRecord) || ok {
		t.Fatalf("corrupt record: ok=%v err=%v", ok, err)
	}
}
