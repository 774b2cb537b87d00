// Package cache implements the client-side vehicle cache: a stale-while-
// revalidate layer over a durable key-value store.
//
// Every entry is stored as a JSON envelope carrying a payload, its write
// time and a schema version, with a companion "<key>_timestamp" side key
// so staleness can be checked without decoding the payload. Reads reject
// entries that are expired, written under another version, or corrupt, and
// purge them as a side effect. Writes enforce a per-entry size ceiling and,
// when the store refuses a write, evict the oldest entries to make room for
// the next attempt.
//
// No Manager operation returns an error. Store and codec failures are logged
// and turned into a miss, a false, or a no-op, so the cache can only ever
// make a read faster, never make it fail.
//
// Example usage:
//
//	m := cache.New(store, cfg.Cache, cache.WithLogger(logger))
//
//	key := m.Key(cache.KindVehicles, "active")
//	if vehicles, ok := cache.Get[[]vehicles.Vehicle](m, key); ok {
//	    return vehicles
//	}
//
//	cache.Set(m, key, fresh)
package cache

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Combine-Capital/imoto/pkg/config"
	"github.com/Combine-Capital/imoto/pkg/errors"
	"github.com/Combine-Capital/imoto/pkg/kvstore"
	"github.com/Combine-Capital/imoto/pkg/logging"
	"github.com/Combine-Capital/imoto/pkg/metrics"
)

// NoExpiry disables the age check in GetWithMaxAge. It is also the age
// reported for keys that have no timestamp.
const NoExpiry time.Duration = math.MaxInt64

// Manager is the cache API over a kvstore.Store. It is safe for concurrent use
// to the extent the underlying store is; concurrent writes to one key are
// last-write-wins.
type Manager struct {
	store   kvstore.Store
	logger  *logging.Logger
	metrics *metrics.Collectors
	now     func() time.Time

	prefix         string
	legacyPrefixes []string
	version        string
	ttl            time.Duration
	staleThreshold time.Duration
	maxEntrySize   int
	evictionBatch  int

	mu       sync.Mutex
	rejected map[string]struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *logging.Logger) Option {
	return func(m *Manager) {
		m.logger = logger.WithComponent("cache")
	}
}

// WithMetrics sets the collectors hits, misses, writes and evictions are recorded on.
func WithMetrics(c *metrics.Collectors) Option {
	return func(m *Manager) {
		m.metrics = c
	}
}

// WithClock replaces time.Now, letting tests move time forward.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// New creates a Manager over store. Zero values in cfg fall back to the
// package defaults (5m TTL, 2m stale threshold, 5 MiB entries, batches of 5).
func New(store kvstore.Store, cfg config.CacheConfig, opts ...Option) *Manager {
	m := &Manager{
		store:          store,
		logger:         logging.Nop(),
		now:            time.Now,
		prefix:         cfg.Prefix,
		legacyPrefixes: cfg.LegacyPrefixes,
		version:        cfg.Version,
		ttl:            cfg.DefaultTTL,
		staleThreshold: cfg.StaleThreshold,
		maxEntrySize:   cfg.MaxEntrySize,
		evictionBatch:  cfg.EvictionBatch,
		rejected:       make(map[string]struct{}),
	}

	defaults := config.Default().Cache
	if m.prefix == "" {
		m.prefix = defaults.Prefix
	}
	if m.version == "" {
		m.version = defaults.Version
	}
	if m.ttl <= 0 {
		m.ttl = defaults.DefaultTTL
	}
	if m.staleThreshold <= 0 {
		m.staleThreshold = defaults.StaleThreshold
	}
	if m.maxEntrySize <= 0 {
		m.maxEntrySize = defaults.MaxEntrySize
	}
	if m.evictionBatch <= 0 {
		m.evictionBatch = defaults.EvictionBatch
	}

	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Key returns the key for an entry kind and optional identifier under the
// manager's namespace, e.g. Key(KindVehicleDetails, "v123").
func (m *Manager) Key(kind, id string) string {
	return Key(m.prefix, kind, id)
}

// Prefix returns the namespace prefix.
func (m *Manager) Prefix() string {
	return m.prefix
}

// Version returns the schema tag written into new entries.
func (m *Manager) Version() string {
	return m.version
}

// TTL returns the default max age used by Get.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Get returns the payload stored under key if it is younger than the default TTL.
func Get[T any](m *Manager, key string) (T, bool) {
	return GetWithMaxAge[T](m, key, m.ttl)
}

// GetWithMaxAge returns the payload stored under key if it exists, was written
// under the current version, and is no older than maxAge. Pass NoExpiry to
// accept an entry of any age. Expired, mismatched and corrupt entries are
// deleted before returning a miss.
func GetWithMaxAge[T any](m *Manager, key string, maxAge time.Duration) (T, bool) {
	data, fresh, _ := lookup[T](m, key, maxAge, true)
	if !fresh {
		var zero T
		return zero, false
	}
	return data, true
}

// Lookup is Get that keeps an expired entry. It returns the payload, whether
// it is within the default TTL, and whether a readable entry was found at
// all. Callers serve fresh data directly and hold on to expired data as a
// fallback while they fetch a replacement.
func Lookup[T any](m *Manager, key string) (data T, fresh, found bool) {
	return lookup[T](m, key, m.ttl, false)
}

func lookup[T any](m *Manager, key string, maxAge time.Duration, purgeExpired bool) (T, bool, bool) {
	var zero T
	kind := KindOf(m.prefix, key)

	raw, ok, err := m.store.GetItem(key)
	if err != nil {
		m.logger.Error().Err(err).Str(logging.CacheKey, key).Msg("cache get failed")
		m.metrics.CacheMiss(kind, metrics.MissError)
		return zero, false, false
	}
	if !ok {
		m.logger.Debug().Str(logging.CacheKey, key).Msg("cache miss")
		m.metrics.CacheMiss(kind, metrics.MissAbsent)
		return zero, false, false
	}

	entry, err := decode[T](key, raw)
	if err != nil {
		m.logger.Warn().Err(err).Str(logging.CacheKey, key).Msg("discarding corrupt cache entry")
		m.Delete(key)
		m.metrics.CacheMiss(kind, metrics.MissCorrupt)
		return zero, false, false
	}

	if entry.Version != m.version {
		m.logger.Warn().
			Str(logging.CacheKey, key).
			Str("entry_version", entry.Version).
			Str("want_version", m.version).
			Msg("cache version mismatch")
		m.Delete(key)
		m.metrics.CacheMiss(kind, metrics.MissVersion)
		return zero, false, false
	}

	age := m.since(entry.Timestamp)
	if age > maxAge {
		m.logger.Info().
			Str(logging.CacheKey, key).
			Int64(logging.Age, age.Milliseconds()).
			Msg("cache entry expired")
		m.metrics.CacheMiss(kind, metrics.MissExpired)
		if purgeExpired {
			m.Delete(key)
			return zero, false, false
		}
		return entry.Data, false, true
	}

	m.logger.Debug().
		Str(logging.CacheKey, key).
		Int64(logging.Age, age.Milliseconds()).
		Msg("cache hit")
	m.metrics.CacheHit(kind)
	return entry.Data, true, true
}

type setOptions struct {
	skipTimestamp bool
}

// SetOption adjusts a single Set call.
type SetOption func(*setOptions)

// WithoutTimestamp skips writing the timestamp side key.
func WithoutTimestamp() SetOption {
	return func(o *setOptions) {
		o.skipTimestamp = true
	}
}

// Set stores data under key with the current time and version, plus the
// timestamp side key. It returns false without writing anything when the
// encoded entry exceeds the per-entry ceiling. When the store refuses the
// write, the oldest entries are evicted so a later attempt can succeed, and
// Set still returns false.
func Set[T any](m *Manager, key string, data T, opts ...SetOption) bool {
	var o setOptions
	for _, opt := range opts {
		opt(&o)
	}

	ts := m.now().UnixMilli()
	raw, err := encode(Entry[T]{
		Data:      data,
		Timestamp: ts,
		Version:   m.version,
	})
	if err != nil {
		m.logger.Error().Err(err).Str(logging.CacheKey, key).Msg("cache set failed")
		m.metrics.CacheWrite(metrics.WriteEncodeErr)
		return false
	}

	if len(raw) > m.maxEntrySize {
		m.logger.Warn().
			Str(logging.CacheKey, key).
			Int(logging.SizeBytes, len(raw)).
			Int("limit_bytes", m.maxEntrySize).
			Msg("cache entry exceeds size limit")
		m.metrics.CacheWrite(metrics.WriteTooLarge)
		return false
	}

	if err := m.store.SetItem(key, raw); err != nil {
		m.writeFailed(key, err)
		return false
	}
	if !o.skipTimestamp {
		if err := m.store.SetItem(TimestampKey(key), strconv.FormatInt(ts, 10)); err != nil {
			if rmErr := m.store.RemoveItem(key); rmErr != nil {
				m.logger.Error().Err(rmErr).Str(logging.CacheKey, key).Msg("failed to remove entry without timestamp")
			}
			m.writeFailed(key, err)
			return false
		}
	}

	m.mu.Lock()
	delete(m.rejected, key)
	m.mu.Unlock()

	m.logger.Debug().
		Str(logging.CacheKey, key).
		Int(logging.SizeBytes, len(raw)).
		Msg("cache set")
	m.metrics.CacheWrite(metrics.WriteOK)
	return true
}

// writeFailed evicts the oldest entries after a refused write. If eviction
// frees nothing the key is marked rejected and only its first failure is
// logged.
func (m *Manager) writeFailed(key string, err error) {
	m.metrics.CacheWrite(metrics.WriteStoreError)

	freed := m.clearOldest(m.evictionBatch)
	if freed > 0 {
		m.logger.Error().
			Err(err).
			Str(logging.CacheKey, key).
			Int(logging.Count, freed).
			Msg("cache set failed, evicted oldest entries")
		return
	}

	m.mu.Lock()
	_, seen := m.rejected[key]
	m.rejected[key] = struct{}{}
	m.mu.Unlock()

	if !seen {
		event := m.logger.Warn().Err(err).Str(logging.CacheKey, key)
		var ce *errors.CapacityError
		if errors.As(err, &ce) {
			event = event.Int(logging.SizeBytes, ce.Size())
		}
		event.Msg("cache write rejected, nothing left to evict")
	}
}

// IsStale reports whether key is older than the default stale threshold or
// has no timestamp at all.
func (m *Manager) IsStale(key string) bool {
	return m.IsOlderThan(key, m.staleThreshold)
}

// IsOlderThan reports whether key is older than threshold or has no timestamp.
func (m *Manager) IsOlderThan(key string, threshold time.Duration) bool {
	ts, ok := m.timestamp(key)
	if !ok {
		return true
	}
	return m.since(ts) > threshold
}

// GetAge returns the time since key was written, or NoExpiry if it has no timestamp.
func (m *Manager) GetAge(key string) time.Duration {
	ts, ok := m.timestamp(key)
	if !ok {
		return NoExpiry
	}
	return m.since(ts)
}

// Delete removes key and its timestamp side key. Deleting a missing key is a no-op.
func (m *Manager) Delete(key string) {
	if err := m.store.RemoveItem(key); err != nil {
		m.logger.Error().Err(err).Str(logging.CacheKey, key).Msg("cache delete failed")
	}
	if err := m.store.RemoveItem(TimestampKey(key)); err != nil {
		m.logger.Error().Err(err).Str(logging.CacheKey, key).Msg("cache timestamp delete failed")
	}
	m.logger.Debug().Str(logging.CacheKey, key).Msg("cache delete")
}

// ClearAll removes every key under the namespace prefix or a legacy prefix
// and returns how many keys were removed.
func (m *Manager) ClearAll() int {
	keys, err := m.store.Keys()
	if err != nil {
		m.logger.Error().Err(err).Msg("cache clear failed")
		return 0
	}

	removed := 0
	for _, key := range keys {
		if !m.owns(key) {
			continue
		}
		if err := m.store.RemoveItem(key); err != nil {
			m.logger.Error().Err(err).Str(logging.CacheKey, key).Msg("cache clear failed for key")
			continue
		}
		removed++
	}

	m.mu.Lock()
	m.rejected = make(map[string]struct{})
	m.mu.Unlock()

	m.logger.Info().Int(logging.Count, removed).Msg("cache cleared")
	return removed
}

// ClearUserCache removes the entries scoped to userID: their own vehicles
// and their saved vehicles.
func (m *Manager) ClearUserCache(userID string) {
	if userID == "" {
		return
	}
	m.Delete(m.Key(KindUserVehicles, userID))
	m.Delete(m.Key(KindSavedVehicles, userID))
	m.logger.Info().Str(logging.UserID, userID).Msg("user cache cleared")
}

// Stats is a diagnostic snapshot of the namespace.
type Stats struct {
	TotalEntries int           `json:"total_entries"`
	TotalSize    int           `json:"total_size"`
	OldestEntry  string        `json:"oldest_entry,omitempty"`
	OldestAge    time.Duration `json:"oldest_age"`
}

// GetStats counts the namespaced entries (excluding timestamp side keys),
// sums their stored lengths, and finds the oldest one by timestamp.
func (m *Manager) GetStats() Stats {
	var stats Stats

	keys, err := m.store.Keys()
	if err != nil {
		m.logger.Error().Err(err).Msg("cache stats failed")
		return stats
	}

	var oldest int64
	for _, key := range keys {
		if !strings.HasPrefix(key, m.prefix+"_") || IsTimestampKey(key) {
			continue
		}
		raw, ok, err := m.store.GetItem(key)
		if err != nil || !ok {
			continue
		}
		stats.TotalEntries++
		stats.TotalSize += len(raw)

		ts, ok := m.timestamp(key)
		if ok && (stats.OldestEntry == "" || ts < oldest) {
			oldest = ts
			stats.OldestEntry = key
		}
	}

	if stats.OldestEntry != "" {
		stats.OldestAge = m.since(oldest)
	}
	return stats
}

// clearOldest deletes the count entries with the oldest timestamps and
// returns how many were deleted. Equal timestamps are broken by key order.
// An unparseable timestamp sorts as the oldest.
func (m *Manager) clearOldest(count int) int {
	keys, err := m.store.Keys()
	if err != nil {
		m.logger.Error().Err(err).Msg("cache eviction failed")
		return 0
	}

	type candidate struct {
		key string
		ts  int64
	}
	var candidates []candidate
	for _, key := range keys {
		if !IsTimestampKey(key) || !m.owns(key) {
			continue
		}
		raw, ok, err := m.store.GetItem(key)
		if err != nil || !ok {
			continue
		}
		ts, _ := strconv.ParseInt(raw, 10, 64)
		candidates = append(candidates, candidate{key: strings.TrimSuffix(key, timestampSuffix), ts: ts})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].ts != candidates[j].ts {
			return candidates[i].ts < candidates[j].ts
		}
		return candidates[i].key < candidates[j].key
	})

	if count > len(candidates) {
		count = len(candidates)
	}
	for _, c := range candidates[:count] {
		m.Delete(c.key)
	}

	m.metrics.CacheEvictions(count)
	m.logger.Info().Int(logging.Count, count).Msg("evicted oldest cache entries")
	return count
}

// timestamp reads the side key for key.
func (m *Manager) timestamp(key string) (int64, bool) {
	raw, ok, err := m.store.GetItem(TimestampKey(key))
	if err != nil {
		m.logger.Error().Err(err).Str(logging.CacheKey, key).Msg("cache timestamp read failed")
		return 0, false
	}
	if !ok {
		return 0, false
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}

func (m *Manager) since(ts int64) time.Duration {
	return time.Duration(m.now().UnixMilli()-ts) * time.Millisecond
}

// owns reports whether key belongs to this cache's namespace or a legacy one.
func (m *Manager) owns(key string) bool {
	if strings.HasPrefix(key, m.prefix+"_") {
		return true
	}
	for _, p := range m.legacyPrefixes {
		if p != "" && strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}
