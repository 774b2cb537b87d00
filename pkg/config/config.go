// Package config provides configuration management for the Imoto data layer.
// It loads YAML or JSON files and environment variables through viper, applies
// defaults that match the browser-era cache behaviour (5 minute TTL, 2 minute
// background refresh threshold, 5 MB entry ceiling) and validates the result.
//
// Example usage:
//
//	cfg, err := config.Load("imoto.yaml", "IMOTO")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Or panic on error:
//	cfg := config.MustLoad("imoto.yaml", "IMOTO")
package config

import (
	"time"
)

// Store backend names.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Config represents the complete configuration of an Imoto client.
type Config struct {
	Service ServiceConfig `mapstructure:"service"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Store   StoreConfig   `mapstructure:"store"`
	Remote  RemoteConfig  `mapstructure:"remote"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// ServiceConfig contains general service information.
type ServiceConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
	Env     string `mapstructure:"env"` // development, staging, production
}

// CacheConfig controls the cache manager.
type CacheConfig struct {
	// Prefix namespaces every key the cache writes (e.g. "imoto").
	Prefix string `mapstructure:"prefix"`

	// LegacyPrefixes are additional key prefixes removed by ClearAll.
	// Default: ["cached_"].
	LegacyPrefixes []string `mapstructure:"legacy_prefixes"`

	// Version is the schema tag written into every entry. Entries carrying
	// any other tag are treated as absent and purged. Default: "1.0".
	Version string `mapstructure:"version"`

	// DefaultTTL is the max age after which an entry is treated as absent.
	// Default: 5 minutes.
	DefaultTTL time.Duration `mapstructure:"default_ttl"`

	// StaleThreshold is the age after which a hit schedules a background
	// refresh. Must be below DefaultTTL. Default: 2 minutes.
	StaleThreshold time.Duration `mapstructure:"stale_threshold"`

	// MaxEntrySize is the serialized size ceiling per entry in bytes.
	// Default: 5 MiB.
	MaxEntrySize int `mapstructure:"max_entry_size"`

	// EvictionBatch is how many of the oldest entries are removed when the
	// store reports it is full. Default: 5.
	EvictionBatch int `mapstructure:"eviction_batch"`
}

// StoreConfig selects and configures the durable key-value store.
type StoreConfig struct {
	// Backend is "memory", "file" or "redis". Default: "memory".
	Backend string `mapstructure:"backend"`

	// Path is the JSON file used by the file backend.
	Path string `mapstructure:"path"`

	// QuotaBytes bounds the memory and file backends. Default: 10 MiB.
	QuotaBytes int `mapstructure:"quota_bytes"`

	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`

	// OpTimeout bounds every synchronous Redis call. Default: 2 seconds.
	OpTimeout time.Duration `mapstructure:"op_timeout"`
}

// RemoteConfig contains the hosted data service connection settings.
type RemoteConfig struct {
	// BaseURL is the REST root of the backend (e.g. "https://xyz.supabase.co/rest/v1").
	BaseURL string `mapstructure:"base_url"`

	// APIKey is sent as the "apikey" header on every request.
	APIKey string `mapstructure:"api_key"`

	// AccessToken is the bearer token of the signed-in user. Falls back to
	// APIKey when empty.
	AccessToken string `mapstructure:"access_token"`

	// Timeout bounds a single HTTP attempt. Default: 10 seconds.
	Timeout time.Duration `mapstructure:"timeout"`

	// RetryMaxAttempts counts the first attempt. Default: 4 (1 + 3 retries).
	RetryMaxAttempts uint `mapstructure:"retry_max_attempts"`

	// RetryInitialDelay is the first backoff delay. Default: 1 second.
	RetryInitialDelay time.Duration `mapstructure:"retry_initial_delay"`

	// RetryMaxDelay caps the backoff delay. Default: 10 seconds.
	RetryMaxDelay time.Duration `mapstructure:"retry_max_delay"`

	// RateLimitPerSecond is the maximum requests per second (0 = unlimited).
	RateLimitPerSecond float64 `mapstructure:"rate_limit_per_second"`

	// RateLimitBurst is the maximum burst size for rate limiting. Default: 1.
	RateLimitBurst int `mapstructure:"rate_limit_burst"`
}

// LogConfig contains structured logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
	Output string `mapstructure:"output"` // stdout, stderr
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"` // Metric prefix
}

// TracingConfig contains OpenTelemetry tracing configuration.
type TracingConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Endpoint     string        `mapstructure:"endpoint"`      // OTLP/HTTP collector (e.g., "localhost:4318")
	SampleRate   float64       `mapstructure:"sample_rate"`   // 0.0 to 1.0
	ServiceName  string        `mapstructure:"service_name"`  // Override service name for traces
	Insecure     bool          `mapstructure:"insecure"`      // Plain HTTP to the collector
	BatchTimeout time.Duration `mapstructure:"batch_timeout"` // Batch export timeout
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}
