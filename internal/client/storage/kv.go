package storage

import "context"

//go:generate moq -out kv_mock.go . KV

// KV defines a simple persistent key-value store over string keys.
// Used by the offline draft store.
type KV interface {
	// Get returns the value stored under key
	// Returns ErrNotFound if key doesn't exist
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error
	Delete(ctx context.Context, key string) error

	// Scan calls fn for every key with the given prefix, in key order
	Scan(ctx context.Context, prefix string, fn func(key string, value []byte) error) error
}
