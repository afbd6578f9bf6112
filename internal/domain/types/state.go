package types

// State is the pairing state of the remote signer engine.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateReady      State = "ready"
	StateError      State = "error"
)

// String returns the string form of the state.
func (s State) String() string { return string(s) }
