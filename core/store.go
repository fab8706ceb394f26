package core

import "errors"

var ErrKeyNotFound = errors.New("key not found")

// KVStore is the durable client-side key-value storage the session and the quick-pick list live in.
type KVStore interface {
	// Get returns ErrKeyNotFound when key is absent.
	Get(key string) (string, error)
	Set(key, value string) error
	// SetMany writes all pairs in one transaction.
	SetMany(pairs map[string]string) error
	// Delete removes keys; absent keys are ignored.
	Delete(keys ...string) error
}
