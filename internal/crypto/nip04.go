package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"strings"
)

const nip04IVSep = "?iv="

var ErrNIP04Payload = errors.New("nip04: malformed payload")

// NIP04Key returns the AES-256 key NIP-04 derives from s and pubHex: the raw
// ECDH x-coordinate. Callers should wipe it.
func NIP04Key(s *SecretKey, pubHex string) ([]byte, error) {
	return sharedX(s, pubHex)
}

// EncryptNIP04 encrypts with AES-256-CBC and a random IV.
func EncryptNIP04(plaintext []byte, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, padded)
	return B64(ct) + nip04IVSep + B64(iv), nil
}

// DecryptNIP04 reverses EncryptNIP04.
func DecryptNIP04(content string, key []byte) ([]byte, error) {
	ctB64, ivB64, ok := strings.Cut(content, nip04IVSep)
	if !ok {
		return nil, ErrNIP04Payload
	}
	ct, err := unB64(ctB64)
	if err != nil {
		return nil, ErrNIP04Payload
	}
	iv, err := unB64(ivB64)
	if err != nil || len(iv) != aes.BlockSize {
		return nil, ErrNIP04Payload
	}
	if len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return nil, ErrNIP04Payload
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ct)
	return pkcs7Unpad(out, aes.BlockSize)
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	out := make([]byte, len(b)+n)
	copy(out, b)
	for i := len(b); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

func pkcs7Unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 {
		return nil, ErrNIP04Payload
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, ErrNIP04Payload
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, ErrNIP04Payload
		}
	}
	return b[:len(b)-n], nil
}

// IsNIP04Payload reports whether content looks like a NIP-04 ciphertext.
func IsNIP04Payload(content string) bool {
	return strings.Contains(content, nip04IVSep)
}
