package blob

import (
	"fmt"
	"os"
	"path/filepath"
)

// Store is the blob source the ingestion orchestrator reads price lists
// from, keyed the way an object bucket is.
type Store interface {
	Get(key string) ([]byte, error)
	Put(key string, data []byte) error
}

// LocalStore keeps blobs under a base directory, one file per key.
type LocalStore struct {
	base string
}

func NewLocalStore(base string) *LocalStore {
	return &LocalStore{base: base}
}

func (s *LocalStore) Get(key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob not found: %s", key)
		}
		return nil, err
	}
	return data, nil
}

func (s *LocalStore) Put(key string, data []byte) error {
	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.base, filepath.FromSlash(key))
}
