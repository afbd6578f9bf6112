package crypto

import (
	"encoding/hex"
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"keybridge/internal/util/memzero"
)

var (
	ErrBadSecretKey = errors.New("invalid secret key")
	ErrBadPubKey    = errors.New("invalid public key")
)

// SecretKey is a secp256k1 private key. Its public half is used in x-only
// (BIP-340) form everywhere.
type SecretKey struct {
	k *btcec.PrivateKey
}

// GenerateKey returns a fresh random key.
func GenerateKey() (*SecretKey, error) {
	k, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	return &SecretKey{k: k}, nil
}

// ParseSecret decodes a 64-hex secret key.
func ParseSecret(hexKey string) (*SecretKey, error) {
	b, ok := decodeHex32(hexKey)
	if !ok {
		return nil, ErrBadSecretKey
	}
	defer memzero.Zero(b)

	k, _ := btcec.PrivKeyFromBytes(b)
	if k.Key.IsZero() {
		return nil, ErrBadSecretKey
	}
	return &SecretKey{k: k}, nil
}

// Hex returns the secret as 64 hex characters.
func (s *SecretKey) Hex() string {
	b := s.k.Serialize()
	defer memzero.Zero(b)
	return hex.EncodeToString(b)
}

// PublicKey returns the x-only public key as 64 hex characters.
func (s *SecretKey) PublicKey() string {
	return hex.EncodeToString(schnorr.SerializePubKey(s.k.PubKey()))
}

// Zero wipes the scalar. The key must not be used afterwards.
func (s *SecretKey) Zero() { s.k.Zero() }

// ParsePubKey decodes an x-only public key given as 64 hex characters.
func ParsePubKey(hexKey string) (*btcec.PublicKey, error) {
	b, ok := decodeHex32(hexKey)
	if !ok {
		return nil, ErrBadPubKey
	}
	pub, err := schnorr.ParsePubKey(b)
	if err != nil {
		return nil, ErrBadPubKey
	}
	return pub, nil
}

// sharedX computes the ECDH x-coordinate between s and the given x-only key.
// Callers should wipe the result.
func sharedX(s *SecretKey, pubHex string) ([]byte, error) {
	pub, err := ParsePubKey(pubHex)
	if err != nil {
		return nil, err
	}
	return btcec.GenerateSharedSecret(s.k, pub), nil
}
