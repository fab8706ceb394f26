package auth

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/semed/merenda/core"
)

// storage keys
const (
	AccessKey  = "semed_access_token"
	RefreshKey = "semed_refresh_token"
)

// Store holds the access/refresh credential pair in a core.KVStore.
// It also owns the "already notified expiry" flag, which every Set resets.
type Store struct {
	kv     core.KVStore
	logger core.Logger

	mu       sync.Mutex
	notified bool
}

func NewStore(kv core.KVStore, logger core.Logger) *Store {
	if logger == nil {
		logger = core.NopLogger
	}
	return &Store{kv: kv, logger: logger}
}

// Access returns the stored access credential.
func (s *Store) Access() (string, bool) {
	return s.get(AccessKey)
}

// Refresh returns the stored refresh credential.
func (s *Store) Refresh() (string, bool) {
	return s.get(RefreshKey)
}

func (s *Store) get(key string) (string, bool) {
	val, err := s.kv.Get(key)
	if err != nil {
		if errors.Cause(err) != core.ErrKeyNotFound {
			s.logger.Warn("reading "+key, err)
		}
		return "", false
	}
	if val == "" {
		return "", false
	}
	return val, true
}

// Set overwrites both credentials.
func (s *Store) Set(access, refresh string) error {
	if err := s.kv.SetMany(map[string]string{AccessKey: access, RefreshKey: refresh}); err != nil {
		return errors.Wrap(err, "storing credentials")
	}
	s.mu.Lock()
	s.notified = false
	s.mu.Unlock()
	return nil
}

// Clear removes both credentials. Clearing an empty store is a no-op.
func (s *Store) Clear() error {
	return errors.Wrap(s.kv.Delete(AccessKey, RefreshKey), "clearing credentials")
}

// markNotified sets the expiry-notified flag and reports whether it was previously unset.
func (s *Store) markNotified() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notified {
		return false
	}
	s.notified = true
	return true
}
