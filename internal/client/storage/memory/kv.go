// Package memory provides an in-process storage.KV, used when no database
// file is configured and in tests.
package memory

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/iudanet/fieldsync/internal/client/storage"
)

var _ storage.KV = (*KV)(nil)

// KV is a map-backed key-value store.
type KV struct {
	data map[string][]byte
	mu   sync.RWMutex
}

// New creates an empty store.
func New() *KV {
	return &KV{data: make(map[string][]byte)}
}

// Get returns the value stored under key.
func (m *KV) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return bytes.Clone(v), nil
}

// Set stores value under key.
func (m *KV) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = bytes.Clone(value)
	return nil
}

// Delete removes key.
func (m *KV) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

// Scan calls fn for every key with prefix, in key order. fn runs on a
// snapshot, so it may call back into the store.
func (m *KV) Scan(ctx context.Context, prefix string, fn func(key string, value []byte) error) error {
	m.mu.RLock()
	keys := make([]string, 0, len(m.data))
	values := make(map[string][]byte)
	for k, v := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
			values[k] = bytes.Clone(v)
		}
	}
	m.mu.RUnlock()

	sort.Strings(keys)
	for _, k := range keys {
		if err := fn(k, values[k]); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of stored keys.
func (m *KV) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
