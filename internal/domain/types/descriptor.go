package types

// Scheme names the pairing token flavour.
type Scheme string

const (
	// SchemeBunker tokens are handed out by the remote signer.
	SchemeBunker Scheme = "bunker"
	// SchemeNostrConnect tokens are offered by a client.
	SchemeNostrConnect Scheme = "nostrconnect"
)

// ConnectionDescriptor is the parsed form of a pairing token.
type ConnectionDescriptor struct {
	Scheme       Scheme
	RemotePubKey string   // 64 lowercase hex characters
	Relays       []string // at least one
	Secret       string
	Perms        []string
	Name         string
}
