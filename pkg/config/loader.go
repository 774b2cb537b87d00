package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// envKeys lists the keys bound to environment variables. Viper only picks up
// env overrides for keys it knows about, so nested keys are bound explicitly
// to make env-only configuration work without a file.
var envKeys = []string{
	"service.name", "service.version", "service.env",
	"cache.prefix", "cache.version", "cache.default_ttl", "cache.stale_threshold",
	"cache.max_entry_size", "cache.eviction_batch",
	"store.backend", "store.path", "store.quota_bytes", "store.host", "store.port",
	"store.password", "store.db", "store.dial_timeout", "store.op_timeout",
	"remote.base_url", "remote.api_key", "remote.access_token", "remote.timeout",
	"remote.retry_max_attempts", "remote.retry_initial_delay", "remote.retry_max_delay",
	"remote.rate_limit_per_second", "remote.rate_limit_burst",
	"log.level", "log.format", "log.output",
	"metrics.enabled", "metrics.namespace",
	"tracing.enabled", "tracing.endpoint", "tracing.sample_rate", "tracing.service_name",
	"tracing.insecure", "tracing.batch_timeout",
}

// Load loads configuration from a file and environment variables.
// The prefix parameter is used for environment variable names (e.g., "IMOTO" -> IMOTO_CACHE_DEFAULT_TTL).
// If configPath is empty, only environment variables will be used.
func Load(configPath, envPrefix string) (*Config, error) {
	v := viper.New()

	// Configure environment variable handling
	if envPrefix != "" {
		v.SetEnvPrefix(envPrefix)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply defaults
	applyDefaults(&cfg)

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration and panics on error.
// This is useful in main() where configuration errors should be fatal.
func MustLoad(configPath, envPrefix string) *Config {
	cfg, err := Load(configPath, envPrefix)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// LoadFromEnv loads configuration only from environment variables (no config file).
func LoadFromEnv(envPrefix string) (*Config, error) {
	return Load("", envPrefix)
}
