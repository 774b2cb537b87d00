package kvstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/Combine-Capital/imoto/pkg/errors"
)

// File is a Store persisted as one JSON object on disk. Every mutation
// rewrites the file through a temp file and rename so a crash never leaves a
// half-written document behind.
type File struct {
	path  string
	quota int

	mu    sync.RWMutex
	items map[string]string
	used  int
}

// NewFile opens the store at path, creating parent directories as needed.
// A missing file starts empty. An unreadable or corrupt file is discarded and
// the store starts empty, since its contents are only a cache.
func NewFile(path string, quota int) (*File, error) {
	if path == "" {
		return nil, errors.NewInvalidInput("store.path", "path is required for the file store")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.NewPermanent("failed to create store directory", err)
	}

	f := &File{
		path:  path,
		quota: quota,
		items: make(map[string]string),
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(data, &f.items); jsonErr != nil {
			f.items = make(map[string]string)
			_ = os.Remove(path)
		}
	case os.IsNotExist(err):
	default:
		return nil, errors.NewTemporary("failed to read store file", err)
	}

	for k, v := range f.items {
		f.used += entrySize(k, v)
	}
	return f, nil
}

// GetItem returns the value stored under key.
func (f *File) GetItem(key string) (string, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	v, ok := f.items[key]
	return v, ok, nil
}

// SetItem stores value under key and flushes the file.
func (f *File) SetItem(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := f.used + entrySize(key, value)
	old, existed := f.items[key]
	if existed {
		next -= entrySize(key, old)
	}
	if f.quota > 0 && next > f.quota {
		return errors.NewCapacity("file store quota exceeded", next, f.quota, nil)
	}

	f.items[key] = value
	if err := f.flush(); err != nil {
		if existed {
			f.items[key] = old
		} else {
			delete(f.items, key)
		}
		return err
	}
	f.used = next
	return nil
}

// RemoveItem deletes key and flushes the file.
func (f *File) RemoveItem(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	old, ok := f.items[key]
	if !ok {
		return nil
	}

	delete(f.items, key)
	if err := f.flush(); err != nil {
		f.items[key] = old
		return err
	}
	f.used -= entrySize(key, old)
	return nil
}

// Keys returns all keys in lexical order.
func (f *File) Keys() ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	keys := make([]string, 0, len(f.items))
	for k := range f.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Path returns the location of the backing file.
func (f *File) Path() string {
	return f.path
}

// Close is a no-op; every mutation is already on disk.
func (f *File) Close() error {
	return nil
}

// flush writes the current map to disk. Caller must hold f.mu.
func (f *File) flush() error {
	data, err := json.Marshal(f.items)
	if err != nil {
		return errors.NewPermanent("failed to encode store file", err)
	}

	tmpPath := f.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return errors.NewTemporary("failed to write store file", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return errors.NewTemporary("failed to replace store file", err)
	}
	return nil
}
