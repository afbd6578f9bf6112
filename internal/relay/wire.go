package relay

import (
	"encoding/json"
	"errors"
)

// NIP-01 message labels.
const (
	labelEvent  = "EVENT"
	labelReq    = "REQ"
	labelClose  = "CLOSE"
	labelOK     = "OK"
	labelEOSE   = "EOSE"
	labelNotice = "NOTICE"
	labelClosed = "CLOSED"
)

var errBadMessage = errors.New("malformed relay message")

// encodeMessage renders a NIP-01 array message.
func encodeMessage(label string, parts ...any) ([]byte, error) {
	msg := make([]any, 0, len(parts)+1)
	msg = append(msg, label)
	msg = append(msg, parts...)
	return json.Marshal(msg)
}

// decodeMessage splits a NIP-01 array message into its label and the raw
// remaining elements.
func decodeMessage(b []byte) (string, []json.RawMessage, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return "", nil, err
	}
	if len(raw) == 0 {
		return "", nil, errBadMessage
	}
	var label string
	if err := json.Unmarshal(raw[0], &label); err != nil {
		return "", nil, errBadMessage
	}
	return label, raw[1:], nil
}

func decodeString(raw json.RawMessage) (string, error) {
	var s string
	err := json.Unmarshal(raw, &s)
	return s, err
}
