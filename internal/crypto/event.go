package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"keybridge/internal/domain"
)

var (
	ErrBadEventID   = errors.New("event id does not match content")
	ErrBadSignature = errors.New("invalid event signature")
)

// Serialize returns the NIP-01 canonical form
// [0,pubkey,created_at,kind,tags,content] that the event id hashes.
func Serialize(evt domain.Event) []byte {
	dst := make([]byte, 0, 128+len(evt.Content))
	dst = append(dst, `[0,`...)
	dst = appendQuoted(dst, evt.PubKey)
	dst = append(dst, ',')
	dst = strconv.AppendInt(dst, evt.CreatedAt, 10)
	dst = append(dst, ',')
	dst = strconv.AppendInt(dst, int64(evt.Kind), 10)
	dst = append(dst, `,[`...)
	for i, tag := range evt.Tags {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = append(dst, '[')
		for j, v := range tag {
			if j > 0 {
				dst = append(dst, ',')
			}
			dst = appendQuoted(dst, v)
		}
		dst = append(dst, ']')
	}
	dst = append(dst, `],`...)
	dst = appendQuoted(dst, evt.Content)
	return append(dst, ']')
}

// EventID returns the sha256 of the canonical serialization.
func EventID(evt domain.Event) [32]byte {
	return sha256.Sum256(Serialize(evt))
}

// SignEvent sets PubKey, ID and Sig on evt using s.
func SignEvent(evt *domain.Event, s *SecretKey) error {
	evt.PubKey = s.PublicKey()
	if evt.Tags == nil {
		evt.Tags = [][]string{}
	}
	id := EventID(*evt)
	sig, err := schnorr.Sign(s.k, id[:])
	if err != nil {
		return err
	}
	evt.ID = hex.EncodeToString(id[:])
	evt.Sig = hex.EncodeToString(sig.Serialize())
	return nil
}

// VerifyEvent checks both the id and the Schnorr signature of evt.
func VerifyEvent(evt domain.Event) error {
	id := EventID(evt)
	if hex.EncodeToString(id[:]) != evt.ID {
		return ErrBadEventID
	}
	pub, err := ParsePubKey(evt.PubKey)
	if err != nil {
		return err
	}
	raw, err := hex.DecodeString(evt.Sig)
	if err != nil {
		return ErrBadSignature
	}
	sig, err := schnorr.ParseSignature(raw)
	if err != nil {
		return ErrBadSignature
	}
	if !sig.Verify(id[:], pub) {
		return ErrBadSignature
	}
	return nil
}

const hexDigits = "0123456789abcdef"

// appendQuoted writes s as a JSON string using the NIP-01 escaping rules,
// which differ from encoding/json (no HTML or U+2028 escaping).
func appendQuoted(dst []byte, s string) []byte {
	dst = append(dst, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			dst = append(dst, '\\', '"')
		case '\\':
			dst = append(dst, '\\', '\\')
		case '\n':
			dst = append(dst, '\\', 'n')
		case '\r':
			dst = append(dst, '\\', 'r')
		case '\t':
			dst = append(dst, '\\', 't')
		case '\b':
			dst = append(dst, '\\', 'b')
		case '\f':
			dst = append(dst, '\\', 'f')
		default:
			if c < 0x20 {
				dst = append(dst, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xf])
				continue
			}
			dst = append(dst, c)
		}
	}
	return append(dst, '"')
}
