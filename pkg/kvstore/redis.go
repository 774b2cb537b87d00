package kvstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Combine-Capital/imoto/pkg/config"
	"github.com/Combine-Capital/imoto/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Redis is a Store backed by a Redis database. Each call is synchronous and
// bounded by the configured operation timeout.
type Redis struct {
	client    *redis.Client
	opTimeout time.Duration
}

// NewRedis connects to Redis and verifies the connection with PING.
func NewRedis(ctx context.Context, cfg config.StoreConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.NewTemporary("failed to connect to Redis", err)
	}

	timeout := cfg.OpTimeout
	if timeout == 0 {
		timeout = 2 * time.Second
	}

	return &Redis{client: client, opTimeout: timeout}, nil
}

func (r *Redis) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.opTimeout)
}

// GetItem returns the value stored under key.
func (r *Redis) GetItem(key string) (string, bool, error) {
	ctx, cancel := r.opContext()
	defer cancel()

	v, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.NewTemporary("failed to get key from Redis", err)
	}
	return v, true, nil
}

// SetItem stores value under key without expiry. Expiry is decided by the
// cache manager from the entry timestamp, not by Redis.
func (r *Redis) SetItem(key, value string) error {
	ctx, cancel := r.opContext()
	defer cancel()

	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		if isOutOfMemory(err) {
			return errors.NewCapacity("redis out of memory", len(value), 0, err)
		}
		return errors.NewTemporary("failed to set key in Redis", err)
	}
	return nil
}

// RemoveItem deletes key.
func (r *Redis) RemoveItem(key string) error {
	ctx, cancel := r.opContext()
	defer cancel()

	if err := r.client.Del(ctx, key).Err(); err != nil {
		return errors.NewTemporary("failed to delete key from Redis", err)
	}
	return nil
}

// Keys returns every key in the database using SCAN.
func (r *Redis) Keys() ([]string, error) {
	ctx, cancel := r.opContext()
	defer cancel()

	var keys []string
	iter := r.client.Scan(ctx, 0, "*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, errors.NewTemporary("failed to scan Redis keys", err)
	}
	return keys, nil
}

// CheckHealth verifies connectivity using PING.
func (r *Redis) CheckHealth(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return errors.NewTemporary("Redis health check failed", err)
	}
	return nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

// isOutOfMemory reports whether Redis rejected a write because maxmemory was reached.
func isOutOfMemory(err error) bool {
	return strings.HasPrefix(err.Error(), "OOM")
}
