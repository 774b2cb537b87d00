// Package kvstore provides the durable key-value stores the cache manager
// persists into. A Store is synchronous and string-keyed, in the shape of a
// browser's localStorage: operations may fail (quota exceeded, backend down)
// and callers are expected to absorb those failures.
//
// Three backends are available:
//
//   - Memory: process-local map with an optional byte quota (tests, CLI one-shots)
//   - File: a single JSON document on disk, rewritten atomically on every change
//   - Redis: a Redis database shared by every process pointing at it
//
// Example usage:
//
//	store, err := kvstore.Open(ctx, cfg.Store)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	_ = store.SetItem("imoto_vehicles_active", payload)
package kvstore

import (
	"context"
	"fmt"

	"github.com/Combine-Capital/imoto/pkg/config"
)

// Store is a synchronous string key-value store.
type Store interface {
	// GetItem returns the value stored under key and whether it exists.
	GetItem(key string) (string, bool, error)

	// SetItem stores value under key, replacing any previous value.
	// Returns an errors.CapacityError when the store is full.
	SetItem(key, value string) error

	// RemoveItem deletes key. Removing a missing key is not an error.
	RemoveItem(key string) error

	// Keys returns every key currently in the store.
	Keys() ([]string, error)

	// Close releases resources held by the store.
	Close() error
}

// Open creates the store selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendMemory, "":
		return NewMemory(cfg.QuotaBytes), nil
	case config.BackendFile:
		return NewFile(cfg.Path, cfg.QuotaBytes)
	case config.BackendRedis:
		return NewRedis(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// entrySize is the number of bytes a key/value pair counts against a quota.
func entrySize(key, value string) int {
	return len(key) + len(value)
}
