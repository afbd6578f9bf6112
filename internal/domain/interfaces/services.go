package interfaces

import (
	"context"

	domaintypes "keybridge/internal/domain/types"
)

// User is an entity that has a public key.
type User interface {
	GetPublicKey(ctx context.Context) (string, error)
}

// Signer is a User that can also sign events. SignEvent fills in the ID,
// PubKey and Sig fields of evt.
type Signer interface {
	User
	SignEvent(ctx context.Context, evt *domaintypes.Event) error
}

// Cipher encrypts and decrypts messages for one scheme (NIP-04 or NIP-44).
type Cipher interface {
	Encrypt(ctx context.Context, plaintext, recipientPubKey string) (string, error)
	Decrypt(ctx context.Context, ciphertext, senderPubKey string) (string, error)
}

// Provider is the full signing surface an application consumes, shaped like
// a browser-injected NIP-07 provider.
type Provider interface {
	Signer
	NIP04() Cipher
	NIP44() Cipher
}
