package kvstore

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/Combine-Capital/imoto/pkg/config"
	"github.com/Combine-Capital/imoto/pkg/errors"
	"github.com/alicebob/miniredis/v2"
)

// storeFactories returns a fresh instance of every backend for shared behaviour tests.
func storeFactories(t *testing.T) map[string]func(quota int) Store {
	t.Helper()
	return map[string]func(int) Store{
		"memory": func(quota int) Store { return NewMemory(quota) },
		"file": func(quota int) Store {
			s, err := NewFile(filepath.Join(t.TempDir(), "store.json"), quota)
			if err != nil {
				t.Fatalf("NewFile() error = %v", err)
			}
			return s
		},
	}
}

// TestStoreBasics verifies get/set/remove/keys on every quota-bounded backend
func TestStoreBasics(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(0)
			defer s.Close()

			if _, ok, err := s.GetItem("missing"); err != nil || ok {
				t.Fatalf("GetItem(missing) = ok %v, err %v", ok, err)
			}

			if err := s.SetItem("b", "2"); err != nil {
				t.Fatalf("SetItem() error = %v", err)
			}
			if err := s.SetItem("a", "1"); err != nil {
				t.Fatalf("SetItem() error = %v", err)
			}

			v, ok, err := s.GetItem("a")
			if err != nil || !ok || v != "1" {
				t.Errorf("GetItem(a) = (%q, %v, %v), want (1, true, nil)", v, ok, err)
			}

			keys, err := s.Keys()
			if err != nil {
				t.Fatalf("Keys() error = %v", err)
			}
			if !reflect.DeepEqual(keys, []string{"a", "b"}) {
				t.Errorf("Keys() = %v, want [a b]", keys)
			}

			if err := s.RemoveItem("a"); err != nil {
				t.Fatalf("RemoveItem() error = %v", err)
			}
			if err := s.RemoveItem("a"); err != nil {
				t.Errorf("RemoveItem() of missing key error = %v", err)
			}
			if _, ok, _ := s.GetItem("a"); ok {
				t.Error("GetItem(a) found removed key")
			}
		})
	}
}

// TestStoreQuota verifies writes past the quota fail with a capacity error
func TestStoreQuota(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(20)
			defer s.Close()

			if err := s.SetItem("k1", "12345678"); err != nil {
				t.Fatalf("SetItem() error = %v", err)
			}

			err := s.SetItem("k2", "1234567890")
			if !errors.IsCapacity(err) {
				t.Fatalf("SetItem() over quota error = %v, want capacity error", err)
			}
			if _, ok, _ := s.GetItem("k2"); ok {
				t.Error("rejected write was stored")
			}

			// Overwriting an existing key only counts the difference.
			if err := s.SetItem("k1", "123456789012345678"); err != nil {
				t.Errorf("SetItem() overwrite within quota error = %v", err)
			}

			if err := s.RemoveItem("k1"); err != nil {
				t.Fatalf("RemoveItem() error = %v", err)
			}
			if err := s.SetItem("k2", "1234567890"); err != nil {
				t.Errorf("SetItem() after freeing space error = %v", err)
			}
		})
	}
}

func TestMemoryUsed(t *testing.T) {
	m := NewMemory(0)
	_ = m.SetItem("abc", "12345")
	_ = m.SetItem("abc", "12")
	if m.Used() != 5 {
		t.Errorf("Used() = %d, want 5", m.Used())
	}
	_ = m.RemoveItem("abc")
	if m.Used() != 0 {
		t.Errorf("Used() after remove = %d, want 0", m.Used())
	}
}

// TestFilePersistence verifies a reopened file store sees earlier writes
func TestFilePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "store.json")

	s, err := NewFile(path, 0)
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	if err := s.SetItem("imoto_vehicles_active", `{"data":[]}`); err != nil {
		t.Fatalf("SetItem() error = %v", err)
	}

	reopened, err := NewFile(path, 0)
	if err != nil {
		t.Fatalf("NewFile() reopen error = %v", err)
	}
	v, ok, _ := reopened.GetItem("imoto_vehicles_active")
	if !ok || v != `{"data":[]}` {
		t.Errorf("GetItem() after reopen = (%q, %v)", v, ok)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind: %v", err)
	}
}

// TestFileCorrupt verifies a corrupt store file is discarded
func TestFileCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	s, err := NewFile(path, 0)
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	keys, _ := s.Keys()
	if len(keys) != 0 {
		t.Errorf("Keys() = %v, want empty", keys)
	}
	if err := s.SetItem("k", "v"); err != nil {
		t.Errorf("SetItem() after corrupt load error = %v", err)
	}
}

func TestFileRequiresPath(t *testing.T) {
	if _, err := NewFile("", 0); !errors.IsInvalidInput(err) {
		t.Errorf("NewFile(\"\") error = %v, want invalid input", err)
	}
}

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	r, err := NewRedis(context.Background(), config.StoreConfig{
		Host:        mr.Host(),
		Port:        mr.Server().Addr().Port,
		DialTimeout: time.Second,
		OpTimeout:   time.Second,
	})
	if err != nil {
		t.Fatalf("NewRedis() error = %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r, mr
}

// TestRedisStore verifies the Redis backend against miniredis
func TestRedisStore(t *testing.T) {
	r, mr := newTestRedis(t)

	if _, ok, err := r.GetItem("missing"); err != nil || ok {
		t.Fatalf("GetItem(missing) = ok %v, err %v", ok, err)
	}

	if err := r.SetItem("imoto_vehicle_details_v1", `{"v":1}`); err != nil {
		t.Fatalf("SetItem() error = %v", err)
	}
	if got, _ := mr.Get("imoto_vehicle_details_v1"); got != `{"v":1}` {
		t.Errorf("miniredis value = %q", got)
	}
	if ttl := mr.TTL("imoto_vehicle_details_v1"); ttl != 0 {
		t.Errorf("TTL = %v, want none", ttl)
	}

	v, ok, err := r.GetItem("imoto_vehicle_details_v1")
	if err != nil || !ok || v != `{"v":1}` {
		t.Errorf("GetItem() = (%q, %v, %v)", v, ok, err)
	}

	_ = r.SetItem("imoto_vehicle_details_v1_timestamp", "1700000000000")
	keys, err := r.Keys()
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("Keys() = %v, want 2 keys", keys)
	}

	if err := r.RemoveItem("imoto_vehicle_details_v1"); err != nil {
		t.Fatalf("RemoveItem() error = %v", err)
	}
	if mr.Exists("imoto_vehicle_details_v1") {
		t.Error("key still exists after RemoveItem()")
	}

	if err := r.CheckHealth(context.Background()); err != nil {
		t.Errorf("CheckHealth() error = %v", err)
	}
}

// TestRedisUnavailable verifies backend failures surface as temporary errors
func TestRedisUnavailable(t *testing.T) {
	r, mr := newTestRedis(t)
	mr.Close()

	if _, _, err := r.GetItem("k"); !errors.IsTemporary(err) {
		t.Errorf("GetItem() error = %v, want temporary", err)
	}
	if err := r.SetItem("k", "v"); !errors.IsTemporary(err) {
		t.Errorf("SetItem() error = %v, want temporary", err)
	}
}

func TestNewRedisConnectFailure(t *testing.T) {
	_, err := NewRedis(context.Background(), config.StoreConfig{
		Host:        "127.0.0.1",
		Port:        1,
		DialTimeout: 100 * time.Millisecond,
	})
	if !errors.IsTemporary(err) {
		t.Errorf("NewRedis() error = %v, want temporary", err)
	}
}

// TestOpen verifies backend selection
func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.StoreConfig{Backend: config.BackendMemory})
	if err != nil {
		t.Fatalf("Open(memory) error = %v", err)
	}
	if _, ok := s.(*Memory); !ok {
		t.Errorf("Open(memory) = %T, want *Memory", s)
	}

	s, err = Open(ctx, config.StoreConfig{Backend: config.BackendFile, Path: filepath.Join(t.TempDir(), "s.json")})
	if err != nil {
		t.Fatalf("Open(file) error = %v", err)
	}
	if _, ok := s.(*File); !ok {
		t.Errorf("Open(file) = %T, want *File", s)
	}

	if _, err := Open(ctx, config.StoreConfig{Backend: "indexeddb"}); err == nil {
		t.Error("Open(unknown) error = nil, want error")
	}
}
