package bunker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"keybridge/internal/crypto"
	"keybridge/internal/domain"
	"keybridge/internal/protocol/rpc"
)

// Facade is the provider surface of a paired remote signer. Every method
// fails with ErrNotConnected unless the engine is ready.
type Facade struct {
	engine *Engine
}

var _ domain.Provider = (*Facade)(nil)

// GetPublicKey returns the user public key learned at pairing. It does not
// contact the signer.
func (f *Facade) GetPublicKey(context.Context) (string, error) {
	_, user, err := f.engine.ready()
	return user, err
}

// unsignedEvent is the sign_event parameter: an event without id and sig.
type unsignedEvent struct {
	PubKey    string     `json:"pubkey,omitempty"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
}

// SignEvent asks the signer to sign evt and fills in its ID, PubKey and Sig.
// The returned event must carry the user's key, a valid signature, and the
// same kind, content, tags and timestamp that were sent. A zero CreatedAt is
// set to now. evt is left untouched unless signing succeeds.
func (f *Facade) SignEvent(ctx context.Context, evt *domain.Event) error {
	l, user, err := f.engine.ready()
	if err != nil {
		return err
	}
	createdAt, tags := evt.CreatedAt, evt.Tags
	if createdAt == 0 {
		createdAt = time.Now().Unix()
	}
	if tags == nil {
		tags = [][]string{}
	}
	req, err := json.Marshal(unsignedEvent{
		PubKey:    user,
		CreatedAt: createdAt,
		Kind:      evt.Kind,
		Tags:      tags,
		Content:   evt.Content,
	})
	if err != nil {
		return err
	}

	res, err := f.engine.call(ctx, l, rpc.MethodSignEvent, []string{string(req)}, f.engine.cfg.Timeout)
	if err != nil {
		return fmt.Errorf("sign_event rpc: %w", err)
	}
	var signed domain.Event
	if err := json.Unmarshal([]byte(res), &signed); err != nil {
		return fmt.Errorf("sign_event rpc: %w: %v", ErrUnexpectedResult, err)
	}
	if signed.PubKey != user {
		return fmt.Errorf("sign_event rpc: %w: signed by %s", ErrSignatureMismatch, signed.PubKey)
	}
	if signed.Kind != evt.Kind || signed.Content != evt.Content || signed.CreatedAt != createdAt || !sameTags(signed.Tags, tags) {
		return fmt.Errorf("sign_event rpc: %w", ErrSignatureMismatch)
	}
	if err := crypto.VerifyEvent(signed); err != nil {
		return fmt.Errorf("sign_event rpc: %w", err)
	}

	evt.CreatedAt, evt.Tags = createdAt, tags
	evt.ID, evt.PubKey, evt.Sig = signed.ID, signed.PubKey, signed.Sig
	return nil
}

func sameTags(a, b [][]string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				return false
			}
		}
	}
	return true
}

func (f *Facade) NIP04() domain.Cipher {
	return remoteCipher{engine: f.engine, encrypt: rpc.MethodNIP04Encrypt, decrypt: rpc.MethodNIP04Decrypt}
}

func (f *Facade) NIP44() domain.Cipher {
	return remoteCipher{engine: f.engine, encrypt: rpc.MethodNIP44Encrypt, decrypt: rpc.MethodNIP44Decrypt}
}

// remoteCipher forwards [pubkey, text] to the signer's encrypt/decrypt
// methods for one scheme.
type remoteCipher struct {
	engine           *Engine
	encrypt, decrypt string
}

func (c remoteCipher) Encrypt(ctx context.Context, plaintext, recipient string) (string, error) {
	return c.do(ctx, c.encrypt, recipient, plaintext)
}

func (c remoteCipher) Decrypt(ctx context.Context, ciphertext, sender string) (string, error) {
	return c.do(ctx, c.decrypt, sender, ciphertext)
}

func (c remoteCipher) do(ctx context.Context, method, pubkey, text string) (string, error) {
	if !crypto.IsHex32(pubkey) {
		return "", fmt.Errorf("%s: %w", method, crypto.ErrBadPubKey)
	}
	l, _, err := c.engine.ready()
	if err != nil {
		return "", err
	}
	res, err := c.engine.call(ctx, l, method, []string{pubkey, text}, c.engine.cfg.Timeout)
	if err != nil {
		return "", fmt.Errorf("%s rpc: %w", method, err)
	}
	return res, nil
}
