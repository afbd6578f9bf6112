package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"io"
	"math/bits"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/hkdf"

	"keybridge/internal/util/memzero"
)

const (
	nip44Version      = 2
	nip44Salt         = "nip44-v2"
	nip44NonceBytes   = 32
	nip44MACBytes     = 32
	nip44MinPlaintext = 1
	nip44MaxPlaintext = 65535
)

var (
	ErrNIP44Version     = errors.New("nip44: unknown encryption version")
	ErrNIP44PayloadSize = errors.New("nip44: invalid payload size")
	ErrNIP44MAC         = errors.New("nip44: invalid mac")
	ErrNIP44Padding     = errors.New("nip44: invalid padding")
	ErrNIP44Plaintext   = errors.New("nip44: plaintext must be 1..65535 bytes")
)

// ConversationKey derives the NIP-44 v2 key shared by s and pubHex.
// It is symmetric: ConversationKey(a, B) == ConversationKey(b, A).
func ConversationKey(s *SecretKey, pubHex string) ([32]byte, error) {
	var out [32]byte
	shared, err := sharedX(s, pubHex)
	if err != nil {
		return out, err
	}
	defer memzero.Zero(shared)

	prk := hkdf.Extract(sha256.New, shared, []byte(nip44Salt))
	copy(out[:], prk)
	memzero.Zero(prk)
	return out, nil
}

// EncryptNIP44 encrypts plaintext under the conversation key with a random
// nonce and returns the base64 payload.
func EncryptNIP44(plaintext []byte, conversationKey [32]byte) (string, error) {
	var nonce [nip44NonceBytes]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", err
	}
	return encryptNIP44(plaintext, conversationKey, nonce)
}

func encryptNIP44(plaintext []byte, conversationKey [32]byte, nonce [nip44NonceBytes]byte) (string, error) {
	chachaKey, chachaNonce, hmacKey, err := nip44MessageKeys(conversationKey, nonce[:])
	if err != nil {
		return "", err
	}
	defer memzero.All(chachaKey, hmacKey)

	padded, err := nip44Pad(plaintext)
	if err != nil {
		return "", err
	}
	defer memzero.Zero(padded)

	c, err := chacha20.NewUnauthenticatedCipher(chachaKey, chachaNonce)
	if err != nil {
		return "", err
	}
	ciphertext := make([]byte, len(padded))
	c.XORKeyStream(ciphertext, padded)

	out := make([]byte, 0, 1+nip44NonceBytes+len(ciphertext)+nip44MACBytes)
	out = append(out, nip44Version)
	out = append(out, nonce[:]...)
	out = append(out, ciphertext...)
	out = append(out, nip44MAC(hmacKey, nonce[:], ciphertext)...)
	return B64(out), nil
}

// DecryptNIP44 authenticates and decrypts a base64 payload.
func DecryptNIP44(payload string, conversationKey [32]byte) ([]byte, error) {
	if len(payload) == 0 || payload[0] == '#' {
		return nil, ErrNIP44Version
	}
	if len(payload) < 132 || len(payload) > 87472 {
		return nil, ErrNIP44PayloadSize
	}
	data, err := unB64(payload)
	if err != nil {
		return nil, err
	}
	if len(data) < 99 || len(data) > 65603 {
		return nil, ErrNIP44PayloadSize
	}
	if data[0] != nip44Version {
		return nil, ErrNIP44Version
	}

	nonce := data[1 : 1+nip44NonceBytes]
	ciphertext := data[1+nip44NonceBytes : len(data)-nip44MACBytes]
	mac := data[len(data)-nip44MACBytes:]

	chachaKey, chachaNonce, hmacKey, err := nip44MessageKeys(conversationKey, nonce)
	if err != nil {
		return nil, err
	}
	defer memzero.All(chachaKey, hmacKey)

	if !hmac.Equal(mac, nip44MAC(hmacKey, nonce, ciphertext)) {
		return nil, ErrNIP44MAC
	}

	c, err := chacha20.NewUnauthenticatedCipher(chachaKey, chachaNonce)
	if err != nil {
		return nil, err
	}
	padded := make([]byte, len(ciphertext))
	c.XORKeyStream(padded, ciphertext)

	n := int(binary.BigEndian.Uint16(padded[:2]))
	if n < nip44MinPlaintext || len(padded) != 2+CalcPaddedLen(n) {
		return nil, ErrNIP44Padding
	}
	return padded[2 : 2+n], nil
}

// CalcPaddedLen returns the padded size for a plaintext of n bytes.
func CalcPaddedLen(n int) int {
	if n <= 32 {
		return 32
	}
	nextPower := 1 << bits.Len(uint(n-1))
	chunk := 32
	if nextPower > 256 {
		chunk = nextPower / 8
	}
	return chunk * ((n-1)/chunk + 1)
}

func nip44Pad(plaintext []byte) ([]byte, error) {
	n := len(plaintext)
	if n < nip44MinPlaintext || n > nip44MaxPlaintext {
		return nil, ErrNIP44Plaintext
	}
	out := make([]byte, 2+CalcPaddedLen(n))
	binary.BigEndian.PutUint16(out, uint16(n))
	copy(out[2:], plaintext)
	return out, nil
}

func nip44MessageKeys(conversationKey [32]byte, nonce []byte) (chachaKey, chachaNonce, hmacKey []byte, err error) {
	r := hkdf.Expand(sha256.New, conversationKey[:], nonce)
	buf := make([]byte, 76)
	if _, err = io.ReadFull(r, buf); err != nil {
		return nil, nil, nil, err
	}
	return buf[:32], buf[32:44], buf[44:76], nil
}

func nip44MAC(key, nonce, ciphertext []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(nonce)
	h.Write(ciphertext)
	return h.Sum(nil)
}
