package types

// KindNostrConnect is the event kind carrying NIP-46 RPC envelopes.
const KindNostrConnect = 24133

// Event is a NIP-01 event as published to and received from relays.
type Event struct {
	ID        string     `json:"id"`
	PubKey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

// TagValues returns the first value of every tag named name.
func (e Event) TagValues(name string) []string {
	var out []string
	for _, tag := range e.Tags {
		if len(tag) >= 2 && tag[0] == name {
			out = append(out, tag[1])
		}
	}
	return out
}

// Addresses reports whether a "p" tag on the event names pubkey.
func (e Event) Addresses(pubkey string) bool {
	for _, v := range e.TagValues("p") {
		if v == pubkey {
			return true
		}
	}
	return false
}

// Filter is the subset of a NIP-01 subscription filter used here.
type Filter struct {
	Kinds []int    `json:"kinds,omitempty"`
	PTags []string `json:"#p,omitempty"`
	Since int64    `json:"since,omitempty"`
}
