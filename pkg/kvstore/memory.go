package kvstore

import (
	"sort"
	"sync"

	"github.com/Combine-Capital/imoto/pkg/errors"
)

// Memory is an in-process Store bounded by a byte quota.
type Memory struct {
	mu    sync.RWMutex
	items map[string]string
	used  int
	quota int
}

// NewMemory creates an empty in-memory store. quota is the maximum number of
// bytes (keys plus values) the store accepts; 0 disables the limit.
func NewMemory(quota int) *Memory {
	return &Memory{
		items: make(map[string]string),
		quota: quota,
	}
}

// GetItem returns the value stored under key.
func (m *Memory) GetItem(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.items[key]
	return v, ok, nil
}

// SetItem stores value under key, failing with a CapacityError when the
// write would push the store over its quota.
func (m *Memory) SetItem(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.used + entrySize(key, value)
	if old, ok := m.items[key]; ok {
		next -= entrySize(key, old)
	}
	if m.quota > 0 && next > m.quota {
		return errors.NewCapacity("memory store quota exceeded", next, m.quota, nil)
	}

	m.items[key] = value
	m.used = next
	return nil
}

// RemoveItem deletes key.
func (m *Memory) RemoveItem(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.items[key]; ok {
		m.used -= entrySize(key, old)
		delete(m.items, key)
	}
	return nil
}

// Keys returns all keys in lexical order.
func (m *Memory) Keys() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Used returns the number of bytes currently counted against the quota.
func (m *Memory) Used() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.used
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}
