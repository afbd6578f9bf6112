package provider

import (
	"context"

	"keybridge/internal/crypto"
	"keybridge/internal/domain"
)

// LocalKey is a Provider holding its secret key in process.
type LocalKey struct {
	sk    *crypto.SecretKey
	nip04 localCipher
	nip44 localCipher
}

var _ domain.Provider = (*LocalKey)(nil)

func NewLocalKey(sk *crypto.SecretKey) *LocalKey {
	return &LocalKey{
		sk:    sk,
		nip04: localCipher{sk: sk, scheme: crypto.NIP04},
		nip44: localCipher{sk: sk, scheme: crypto.NIP44},
	}
}

func (l *LocalKey) GetPublicKey(context.Context) (string, error) { return l.sk.PublicKey(), nil }

func (l *LocalKey) SignEvent(_ context.Context, evt *domain.Event) error {
	return crypto.SignEvent(evt, l.sk)
}

func (l *LocalKey) NIP04() domain.Cipher { return l.nip04 }
func (l *LocalKey) NIP44() domain.Cipher { return l.nip44 }

// Secret exposes the key for callers that act as the key holder, such as a
// simulated signer.
func (l *LocalKey) Secret() *crypto.SecretKey { return l.sk }

type localCipher struct {
	sk     *crypto.SecretKey
	scheme crypto.Scheme
}

func (c localCipher) Encrypt(_ context.Context, plaintext, recipient string) (string, error) {
	return crypto.Encrypt(c.scheme, c.sk, recipient, []byte(plaintext))
}

func (c localCipher) Decrypt(_ context.Context, ciphertext, sender string) (string, error) {
	pt, err := crypto.Decrypt(c.sk, sender, ciphertext)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}
