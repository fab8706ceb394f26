package localstore

import (
	"sync"

	"github.com/semed/merenda/core"
)

// MemStore is a volatile core.KVStore, used for tests and `:memory:` sessions.
type MemStore struct {
	mu   sync.RWMutex
	data map[string]string
}

var _ core.KVStore = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string]string)}
}

func (s *MemStore) Get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.data[key]
	if !ok {
		return "", core.ErrKeyNotFound
	}
	return val, nil
}

func (s *MemStore) Set(key, value string) error {
	s.mu.Lock()
	s.data[key] = value
	s.mu.Unlock()
	return nil
}

func (s *MemStore) SetMany(pairs map[string]string) error {
	s.mu.Lock()
	for k, v := range pairs {
		s.data[k] = v
	}
	s.mu.Unlock()
	return nil
}

func (s *MemStore) Delete(keys ...string) error {
	s.mu.Lock()
	for _, k := range keys {
		delete(s.data, k)
	}
	s.mu.Unlock()
	return nil
}
