package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"keybridge/internal/domain"
)

// SessionKey is where the active pairing is persisted.
const SessionKey = "bunker/session"

var (
	ErrSessionVersion = errors.New("unsupported session record version")
	ErrCorruptRecord  = errors.New("session record is not valid json")
)

// SessionStore reads and writes the single session record as JSON.
type SessionStore struct {
	kv  domain.KeyValueStore
	key string
}

func NewSessionStore(kv domain.KeyValueStore) *SessionStore {
	return &SessionStore{kv: kv, key: SessionKey}
}

// Load returns the persisted session, if any. A record that is present but
// unreadable is an error; callers decide whether to clear it.
func (s *SessionStore) Load() (domain.Session, bool, error) {
	b, ok, err := s.kv.Get(s.key)
	if err != nil || !ok {
		return domain.Session{}, false, err
	}
	var sess domain.Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return domain.Session{}, false, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if sess.Version == 0 || sess.Version > domain.SessionRecordVersion {
		return domain.Session{}, false, fmt.Errorf("%w: %d", ErrSessionVersion, sess.Version)
	}
	return sess, true, nil
}

func (s *SessionStore) Save(sess domain.Session) error {
	sess.Version = domain.SessionRecordVersion
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.kv.Set(s.key, b)
}

func (s *SessionStore) Clear() error { return s.kv.Delete(s.key) }
