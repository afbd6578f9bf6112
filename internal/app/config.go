package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"keybridge/internal/crypto"
	"keybridge/internal/services/bunker"
)

const (
	ConfigFile    = "config.toml"
	EnvPassphrase = "KEYBRIDGE_PASSPHRASE"
)

// Store backends.
const (
	BackendFile    = "file"
	BackendLevelDB = "leveldb"
	BackendMemory  = "memory"
)

// Config holds runtime wiring options for building the app.
type Config struct {
	Home string // state directory, e.g. $HOME/.keybridge

	Store StoreConfig
	RPC   RPCConfig
	Log   LogConfig
	Relay RelayConfig
}

type StoreConfig struct {
	Backend string
	Seal    bool
}

type RPCConfig struct {
	Timeout          time.Duration
	HandshakeTimeout time.Duration
	Encryption       crypto.Scheme
}

type LogConfig struct {
	Level   string
	NoColor bool
}

type RelayConfig struct {
	DialTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns the settings used when no config file is present.
func DefaultConfig(home string) Config {
	return Config{
		Home:  home,
		Store: StoreConfig{Backend: BackendFile},
		RPC: RPCConfig{
			Timeout:          bunker.DefaultTimeout,
			HandshakeTimeout: bunker.DefaultHandshakeTimeout,
			Encryption:       crypto.NIP44,
		},
		Log: LogConfig{Level: "info"},
		Relay: RelayConfig{
			DialTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// config.toml key mapping.
type fileConfig struct {
	Store struct {
		Backend string `toml:"backend"`
		Seal    bool   `toml:"seal"`
	} `toml:"store"`
	RPC struct {
		Timeout          string `toml:"timeout"`
		HandshakeTimeout string `toml:"handshake_timeout"`
		Encryption       string `toml:"encryption"`
	} `toml:"rpc"`
	Log struct {
		Level   string `toml:"level"`
		NoColor bool   `toml:"no_color"`
	} `toml:"log"`
	Relay struct {
		DialTimeout  string `toml:"dial_timeout"`
		WriteTimeout string `toml:"write_timeout"`
	} `toml:"relay"`
}

// Load reads <home>/config.toml over the defaults. A missing file is not an
// error.
func Load(home string) (Config, error) {
	cfg := DefaultConfig(home)
	path := filepath.Join(home, ConfigFile)

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("store", "backend") {
		cfg.Store.Backend = strings.ToLower(strings.TrimSpace(raw.Store.Backend))
	}
	if meta.IsDefined("store", "seal") {
		cfg.Store.Seal = raw.Store.Seal
	}
	if meta.IsDefined("rpc", "timeout") {
		if cfg.RPC.Timeout, err = parseDuration("rpc.timeout", raw.RPC.Timeout); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("rpc", "handshake_timeout") {
		if cfg.RPC.HandshakeTimeout, err = parseDuration("rpc.handshake_timeout", raw.RPC.HandshakeTimeout); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("rpc", "encryption") {
		if cfg.RPC.Encryption, err = crypto.ParseScheme(raw.RPC.Encryption); err != nil {
			return Config{}, fmt.Errorf("load config: rpc.encryption: %w", err)
		}
	}
	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.TrimSpace(raw.Log.Level)
	}
	if meta.IsDefined("log", "no_color") {
		cfg.Log.NoColor = raw.Log.NoColor
	}
	if meta.IsDefined("relay", "dial_timeout") {
		if cfg.Relay.DialTimeout, err = parseDuration("relay.dial_timeout", raw.Relay.DialTimeout); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("relay", "write_timeout") {
		if cfg.Relay.WriteTimeout, err = parseDuration("relay.write_timeout", raw.Relay.WriteTimeout); err != nil {
			return Config{}, err
		}
	}

	switch cfg.Store.Backend {
	case BackendFile, BackendLevelDB, BackendMemory:
	default:
		return Config{}, fmt.Errorf("load config: unsupported store backend %q (expected file, leveldb or memory)", cfg.Store.Backend)
	}
	return cfg, nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("load config: %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("load config: %s must be positive", key)
	}
	return d, nil
}
