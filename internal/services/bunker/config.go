package bunker

import (
	"time"

	"keybridge/internal/crypto"
)

// Config tunes the engine. Zero fields take the defaults below.
type Config struct {
	// Timeout bounds every call made after pairing.
	Timeout time.Duration
	// HandshakeTimeout bounds connect and get_public_key, which may wait on
	// a human approving the request on the signer.
	HandshakeTimeout time.Duration
	// Encryption is used for outgoing envelopes. Inbound envelopes are
	// accepted in either scheme.
	Encryption crypto.Scheme
	// PersistInterval throttles how often last-contact is written back.
	PersistInterval time.Duration
	// Lookback is how far before subscribing the relay filter reaches.
	Lookback time.Duration
}

const (
	DefaultTimeout          = 15 * time.Second
	DefaultHandshakeTimeout = 20 * time.Second
	DefaultPersistInterval  = time.Minute
	DefaultLookback         = 10 * time.Second
)

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Encryption == "" {
		c.Encryption = crypto.NIP44
	}
	if c.PersistInterval <= 0 {
		c.PersistInterval = DefaultPersistInterval
	}
	if c.Lookback <= 0 {
		c.Lookback = DefaultLookback
	}
	return c
}
