package types

// SessionRecordVersion is the layout version written with every session.
const SessionRecordVersion = 1

// Session is the durable state of an established pairing.
//
// ClientSecret/ClientPubKey are the ephemeral identity used to address and
// sign transport envelopes. UserPubKey is the identity the remote signer
// controls on our behalf.
type Session struct {
	Version      int      `json:"v"`
	RemotePubKey string   `json:"remote_pubkey"`
	Relays       []string `json:"relays"`
	ClientSecret string   `json:"client_secret"`
	ClientPubKey string   `json:"client_pubkey"`
	UserPubKey   string   `json:"user_pubkey"`
	Secret       string   `json:"secret,omitempty"`
	Perms        []string `json:"perms,omitempty"`
	Name         string   `json:"name,omitempty"`
	LastContact  int64    `json:"last_contact"`
}

// Redacted returns a copy safe to print or log.
func (s Session) Redacted() Session {
	out := s
	out.Relays = append([]string(nil), s.Relays...)
	out.Perms = append([]string(nil), s.Perms...)
	if out.ClientSecret != "" {
		out.ClientSecret = "<redacted>"
	}
	if out.Secret != "" {
		out.Secret = "<redacted>"
	}
	return out
}
