package store

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"sync"

	"keybridge/internal/domain"
)

var ErrBadKey = errors.New("invalid store key")

// FileStore keeps one file per key under dir. Keys are path-escaped, so
// "bunker/session" lands in a single file rather than a subdirectory.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

var _ domain.KeyValueStore = (*FileStore)(nil)

func NewFileStore(dir string) *FileStore { return &FileStore{dir: dir} }

func (s *FileStore) Get(key string) ([]byte, bool, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := readFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}
	if b == nil {
		return nil, false, nil
	}
	return b, true, nil
}

func (s *FileStore) Set(key string, value []byte) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeFile(path, value, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (s *FileStore) Delete(key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return removeFile(path)
}

func (s *FileStore) path(key string) (string, error) {
	name := url.PathEscape(key)
	if name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrBadKey, key)
	}
	return filepath.Join(s.dir, name), nil
}
