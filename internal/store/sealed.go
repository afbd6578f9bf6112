package store

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"keybridge/internal/domain"
	"keybridge/internal/util/memzero"
)

// The current version of the sealed blob format.
const sealFormatVersion = 1

// Returned when the passphrase is incorrect or the ciphertext has been
// modified, including being moved to a different key.
var ErrWrongPassphrase = errors.New("wrong passphrase or corrupted record")

// ScryptParams are the key-derivation costs written into every blob.
type ScryptParams struct {
	N, R, P int
}

// DefaultScrypt is used for new records.
var DefaultScrypt = ScryptParams{N: 1 << 15, R: 8, P: 1}

// blob is the stored JSON structure holding the ciphertext and KDF parameters.
type blob struct {
	V      int    `json:"v"`
	Salt   []byte `json:"salt"`
	N      int    `json:"scrypt_N"`
	R      int    `json:"scrypt_r"`
	P      int    `json:"scrypt_p"`
	Cipher []byte `json:"cipher"`
}

// Sealed encrypts values at rest before handing them to the inner store.
type Sealed struct {
	inner      domain.KeyValueStore
	passphrase string
	params     ScryptParams
}

var _ domain.KeyValueStore = (*Sealed)(nil)

func NewSealed(inner domain.KeyValueStore, passphrase string, params ScryptParams) *Sealed {
	return &Sealed{inner: inner, passphrase: passphrase, params: params}
}

func (s *Sealed) Get(key string) ([]byte, bool, error) {
	b, ok, err := s.inner.Get(key)
	if err != nil || !ok {
		return nil, ok, err
	}
	pt, err := open(s.passphrase, key, b)
	if err != nil {
		return nil, false, fmt.Errorf("unseal %s: %w", key, err)
	}
	return pt, true, nil
}

func (s *Sealed) Set(key string, value []byte) error {
	b, err := seal(s.passphrase, key, value, s.params)
	if err != nil {
		return fmt.Errorf("seal %s: %w", key, err)
	}
	return s.inner.Set(key, b)
}

func (s *Sealed) Delete(key string) error { return s.inner.Delete(key) }

// seal derives a key from passphrase and a fresh salt, then encrypts raw.
// The salt and record key are bound as associated data.
func seal(passphrase, key string, raw []byte, p ScryptParams) ([]byte, error) {
	var salt [16]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return nil, err
	}
	aead, err := deriveAEAD(passphrase, salt[:], p)
	if err != nil {
		return nil, err
	}
	var nonce [chacha20poly1305.NonceSize]byte // zero nonce; salt-bound key is unique per write
	ct := aead.Seal(nil, nonce[:], raw, associated(salt[:], key))

	return json.Marshal(blob{
		V:      sealFormatVersion,
		Salt:   salt[:],
		N:      p.N,
		R:      p.R,
		P:      p.P,
		Cipher: ct,
	})
}

func open(passphrase, key string, b []byte) ([]byte, error) {
	var bl blob
	if err := json.Unmarshal(b, &bl); err != nil {
		return nil, err
	}
	if bl.V > sealFormatVersion {
		return nil, fmt.Errorf("unsupported seal version %d", bl.V)
	}
	aead, err := deriveAEAD(passphrase, bl.Salt, ScryptParams{N: bl.N, R: bl.R, P: bl.P})
	if err != nil {
		return nil, err
	}
	var nonce [chacha20poly1305.NonceSize]byte
	pt, err := aead.Open(nil, nonce[:], bl.Cipher, associated(bl.Salt, key))
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return pt, nil
}

func deriveAEAD(passphrase string, salt []byte, p ScryptParams) (cipher.AEAD, error) {
	k, err := scrypt.Key([]byte(passphrase), salt, p.N, p.R, p.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(k)
	return chacha20poly1305.New(k)
}

func associated(salt []byte, key string) []byte {
	ad := make([]byte, 0, len(salt)+len(key))
	ad = append(ad, salt...)
	return append(ad, key...)
}
