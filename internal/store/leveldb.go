package store

import (
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"keybridge/internal/domain"
)

// LevelStore is a KeyValueStore on a LevelDB database directory.
type LevelStore struct {
	db   *leveldb.DB
	path string
}

var _ domain.KeyValueStore = (*LevelStore)(nil)

// OpenLevelStore opens (or creates) the database at path.
func OpenLevelStore(path string) (*LevelStore, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{
		BlockCacheCapacity: 1 << 20,
		WriteBuffer:        1 << 20,
	})
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return &LevelStore{db: db, path: path}, nil
}

func (s *LevelStore) Get(key string) ([]byte, bool, error) {
	b, err := s.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("leveldb get %s: %w", key, err)
	}
	return b, true, nil
}

func (s *LevelStore) Set(key string, value []byte) error {
	if err := s.db.Put([]byte(key), value, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("leveldb put %s: %w", key, err)
	}
	return nil
}

func (s *LevelStore) Delete(key string) error {
	if err := s.db.Delete([]byte(key), &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("leveldb delete %s: %w", key, err)
	}
	return nil
}

// Close releases the database lock.
func (s *LevelStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
