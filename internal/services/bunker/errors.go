package bunker

import "errors"

var (
	ErrNotConnected      = errors.New("remote signer not connected")
	ErrDisconnected      = errors.New("remote signer disconnected")
	ErrClosed            = errors.New("engine closed")
	ErrBusy              = errors.New("pairing already in progress")
	ErrUnexpectedAck     = errors.New("unexpected connect response")
	ErrUnexpectedResult  = errors.New("unexpected rpc result")
	ErrCorruptSession    = errors.New("persisted session is unusable")
	ErrUnreachable       = errors.New("no session relay reachable")
	ErrSignatureMismatch = errors.New("signed event does not match request")
)
