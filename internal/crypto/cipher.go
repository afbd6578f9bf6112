package crypto

import (
	"fmt"
	"strings"

	"keybridge/internal/util/memzero"
)

// Scheme selects the direct-message encryption used for a payload.
type Scheme string

const (
	NIP04 Scheme = "nip04"
	NIP44 Scheme = "nip44"
)

// ParseScheme accepts "nip04" or "nip44" (case-insensitive); empty means NIP44.
func ParseScheme(s string) (Scheme, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(NIP44):
		return NIP44, nil
	case string(NIP04):
		return NIP04, nil
	default:
		return "", fmt.Errorf("unknown encryption scheme %q", s)
	}
}

// Encrypt encrypts plaintext from s to pubHex with the given scheme.
func Encrypt(scheme Scheme, s *SecretKey, pubHex string, plaintext []byte) (string, error) {
	switch scheme {
	case NIP04:
		key, err := NIP04Key(s, pubHex)
		if err != nil {
			return "", err
		}
		defer memzero.Zero(key)
		return EncryptNIP04(plaintext, key)
	case NIP44, "":
		ck, err := ConversationKey(s, pubHex)
		if err != nil {
			return "", err
		}
		defer memzero.Key32(&ck)
		return EncryptNIP44(plaintext, ck)
	default:
		return "", fmt.Errorf("unknown encryption scheme %q", scheme)
	}
}

// Decrypt decrypts content sent to s by pubHex. The scheme is detected from
// the payload shape, so legacy NIP-04 peers are understood.
func Decrypt(s *SecretKey, pubHex string, content string) ([]byte, error) {
	if IsNIP04Payload(content) {
		key, err := NIP04Key(s, pubHex)
		if err != nil {
			return nil, err
		}
		defer memzero.Zero(key)
		return DecryptNIP04(content, key)
	}
	ck, err := ConversationKey(s, pubHex)
	if err != nil {
		return nil, err
	}
	defer memzero.Key32(&ck)
	return DecryptNIP44(content, ck)
}
