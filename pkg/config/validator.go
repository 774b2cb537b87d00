package config

import (
	"fmt"
	"time"
)

// Validate validates the configuration and returns an error if any required fields are missing
// or have invalid values.
func Validate(cfg *Config) error {
	// Cache config
	if cfg.Cache.Prefix == "" {
		return fmt.Errorf("cache.prefix is required")
	}
	if cfg.Cache.Version == "" {
		return fmt.Errorf("cache.version is required")
	}
	if cfg.Cache.DefaultTTL <= 0 {
		return fmt.Errorf("cache.default_ttl must be positive")
	}
	if cfg.Cache.StaleThreshold <= 0 || cfg.Cache.StaleThreshold >= cfg.Cache.DefaultTTL {
		return fmt.Errorf("cache.stale_threshold must be positive and below cache.default_ttl (%s)", cfg.Cache.DefaultTTL)
	}
	if cfg.Cache.MaxEntrySize <= 0 {
		return fmt.Errorf("cache.max_entry_size must be positive")
	}
	if cfg.Cache.EvictionBatch <= 0 {
		return fmt.Errorf("cache.eviction_batch must be positive")
	}

	// Store config
	switch cfg.Store.Backend {
	case BackendMemory:
	case BackendFile:
		if cfg.Store.Path == "" {
			return fmt.Errorf("store.path is required for the file backend")
		}
	case BackendRedis:
		if cfg.Store.Host == "" {
			return fmt.Errorf("store.host is required for the redis backend")
		}
		if cfg.Store.Port == 0 {
			return fmt.Errorf("store.port is required when store.host is set")
		}
	default:
		return fmt.Errorf("store.backend %q is not one of memory, file, redis", cfg.Store.Backend)
	}
	if cfg.Store.QuotaBytes < 0 {
		return fmt.Errorf("store.quota_bytes must be non-negative")
	}

	// Remote config
	if cfg.Remote.Timeout < 0 {
		return fmt.Errorf("remote.timeout must be non-negative")
	}
	if cfg.Remote.RetryMaxDelay < cfg.Remote.RetryInitialDelay {
		return fmt.Errorf("remote.retry_max_delay must not be below remote.retry_initial_delay")
	}
	if cfg.Remote.RateLimitPerSecond < 0 {
		return fmt.Errorf("remote.rate_limit_per_second must be non-negative")
	}

	// Tracing config
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing.endpoint is required when tracing is enabled")
	}
	if cfg.Tracing.SampleRate < 0 || cfg.Tracing.SampleRate > 1 {
		return fmt.Errorf("tracing.sample_rate must be between 0 and 1")
	}

	return nil
}

// applyDefaults applies default values to the configuration where values are not set.
func applyDefaults(cfg *Config) {
	// Service defaults
	if cfg.Service.Name == "" {
		cfg.Service.Name = "imoto"
	}
	if cfg.Service.Env == "" {
		cfg.Service.Env = "development"
	}

	// Cache defaults
	if cfg.Cache.Prefix == "" {
		cfg.Cache.Prefix = "imoto"
	}
	if cfg.Cache.LegacyPrefixes == nil {
		cfg.Cache.LegacyPrefixes = []string{"cached_"}
	}
	if cfg.Cache.Version == "" {
		cfg.Cache.Version = "1.0"
	}
	if cfg.Cache.DefaultTTL == 0 {
		cfg.Cache.DefaultTTL = 5 * time.Minute
	}
	if cfg.Cache.StaleThreshold == 0 {
		cfg.Cache.StaleThreshold = 2 * time.Minute
	}
	if cfg.Cache.MaxEntrySize == 0 {
		cfg.Cache.MaxEntrySize = 5 * 1024 * 1024
	}
	if cfg.Cache.EvictionBatch == 0 {
		cfg.Cache.EvictionBatch = 5
	}

	// Store defaults
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = BackendMemory
	}
	if cfg.Store.QuotaBytes == 0 {
		cfg.Store.QuotaBytes = 10 * 1024 * 1024
	}
	if cfg.Store.Port == 0 && cfg.Store.Host != "" {
		cfg.Store.Port = 6379
	}
	if cfg.Store.DialTimeout == 0 {
		cfg.Store.DialTimeout = 5 * time.Second
	}
	if cfg.Store.OpTimeout == 0 {
		cfg.Store.OpTimeout = 2 * time.Second
	}

	// Remote defaults
	if cfg.Remote.Timeout == 0 {
		cfg.Remote.Timeout = 10 * time.Second
	}
	if cfg.Remote.RetryMaxAttempts == 0 {
		cfg.Remote.RetryMaxAttempts = 4
	}
	if cfg.Remote.RetryInitialDelay == 0 {
		cfg.Remote.RetryInitialDelay = time.Second
	}
	if cfg.Remote.RetryMaxDelay == 0 {
		cfg.Remote.RetryMaxDelay = 10 * time.Second
	}
	if cfg.Remote.RateLimitBurst == 0 && cfg.Remote.RateLimitPerSecond > 0 {
		cfg.Remote.RateLimitBurst = 1
	}

	// Log defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stderr"
	}

	// Metrics defaults
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = cfg.Service.Name
	}

	// Tracing defaults
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = cfg.Service.Name
	}
	if cfg.Tracing.BatchTimeout == 0 {
		cfg.Tracing.BatchTimeout = 5 * time.Second
	}
}
