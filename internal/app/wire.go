package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"keybridge/internal/domain"
	"keybridge/internal/relay"
	"keybridge/internal/services/bunker"
	"keybridge/internal/services/provider"
	"keybridge/internal/store"
)

var ErrNoPassphrase = errors.New("sealed store needs " + EnvPassphrase)

// Wire bundles the store, relay pool, provider registry and engine for the CLI.
type Wire struct {
	Store    domain.KeyValueStore
	Pool     *relay.Pool
	Registry *provider.Registry
	Engine   *bunker.Engine
	Log      zerolog.Logger

	closers []func() error
}

// NewWire constructs the dependency graph from cfg. Building the engine
// resumes a persisted session, which dials its relays.
func NewWire(ctx context.Context, cfg Config, log zerolog.Logger, onAuthURL func(string)) (*Wire, error) {
	w := &Wire{Log: log, Registry: provider.NewRegistry()}

	kv, closeStore, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	w.Store = kv

	w.Pool = relay.NewPool(relay.Options{
		DialTimeout:  cfg.Relay.DialTimeout,
		WriteTimeout: cfg.Relay.WriteTimeout,
		Logger:       log,
	})
	w.closers = []func() error{w.Pool.Close, closeStore}

	eng, err := bunker.New(ctx, bunker.Options{
		Pool:     w.Pool,
		Store:    kv,
		Registry: w.Registry,
		Logger:   log,
		Config: bunker.Config{
			Timeout:          cfg.RPC.Timeout,
			HandshakeTimeout: cfg.RPC.HandshakeTimeout,
			Encryption:       cfg.RPC.Encryption,
		},
		OnAuthURL: onAuthURL,
	})
	if err != nil {
		_ = w.Close()
		return nil, err
	}
	w.Engine = eng
	// Engine first: it must release its subscription before the pool goes.
	w.closers = append([]func() error{eng.Close}, w.closers...)
	return w, nil
}

// openStore returns the configured backend and the func that releases it.
func openStore(cfg Config) (domain.KeyValueStore, func() error, error) {
	noop := func() error { return nil }

	pass := os.Getenv(EnvPassphrase)
	if cfg.Store.Seal && pass == "" {
		return nil, nil, ErrNoPassphrase
	}
	if cfg.Store.Backend != BackendMemory {
		if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
			return nil, nil, fmt.Errorf("create home: %w", err)
		}
	}

	var kv domain.KeyValueStore
	closeFn := noop
	switch cfg.Store.Backend {
	case BackendMemory:
		kv = store.NewMemoryStore()
	case BackendLevelDB:
		ls, err := store.OpenLevelStore(filepath.Join(cfg.Home, "db"))
		if err != nil {
			return nil, nil, err
		}
		kv, closeFn = ls, ls.Close
	default:
		kv = store.NewFileStore(filepath.Join(cfg.Home, "state"))
	}

	if cfg.Store.Seal {
		kv = store.NewSealed(kv, pass, store.DefaultScrypt)
	}
	return kv, closeFn, nil
}

// Close shuts down the engine, pool and store in that order. The session
// record is kept.
func (w *Wire) Close() error {
	var errs []error
	for _, c := range w.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	w.closers = nil
	return errors.Join(errs...)
}
