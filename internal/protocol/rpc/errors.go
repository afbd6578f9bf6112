package rpc

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrTimeout     = errors.New("rpc timeout")
	ErrDuplicateID = errors.New("duplicate request id")
)

// TimeoutError is returned when no response arrived before the deadline.
// errors.Is(err, ErrTimeout) holds for it.
type TimeoutError struct {
	ID     string
	Method string
	After  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: no response to request %s after %s", e.Method, e.ID, e.After)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// RemoteError carries the error string a signer returned.
type RemoteError struct {
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s rejected by remote signer: %s", e.Method, e.Message)
}
