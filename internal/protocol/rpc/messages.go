package rpc

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Methods understood by NIP-46 remote signers.
const (
	MethodConnect      = "connect"
	MethodGetPublicKey = "get_public_key"
	MethodSignEvent    = "sign_event"
	MethodPing         = "ping"
	MethodNIP04Encrypt = "nip04_encrypt"
	MethodNIP04Decrypt = "nip04_decrypt"
	MethodNIP44Encrypt = "nip44_encrypt"
	MethodNIP44Decrypt = "nip44_decrypt"
)

// AuthURLResult marks a response whose Error field carries a URL the user
// must visit before the signer answers for real.
const AuthURLResult = "auth_url"

// Request is the plaintext of an outgoing envelope.
type Request struct {
	ID     string   `json:"id"`
	Method string   `json:"method"`
	Params []string `json:"params"`
}

// Response is the plaintext of an inbound envelope.
type Response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// ResultString returns Result as a string. Signers send JSON strings; any
// other JSON value is returned verbatim.
func (r Response) ResultString() string {
	if len(r.Result) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(r.Result, &s); err == nil {
		return s
	}
	return string(r.Result)
}

// NewID returns a random request id. Ids are not sequential so that
// requests from earlier processes on the same relays never collide.
func NewID() string { return uuid.NewString() }
