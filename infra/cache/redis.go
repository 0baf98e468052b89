// Package cache implements core/cache.Cache on top of Redis so several
// matching instances can share workload and quality assessments.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/kilianp07/crisismatch/core/logger"
)

// Config holds the Redis connection settings.
type Config struct {
	URL          string        `json:"url"`
	Prefix       string        `json:"prefix"`
	PoolSize     int           `json:"pool_size"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	MaxRetries   int           `json:"max_retries"`
}

// DefaultConfig returns conservative timeouts suited to a hot match path.
func DefaultConfig() Config {
	return Config{
		Prefix:       "crisismatch:",
		PoolSize:     10,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
		MaxRetries:   1,
	}
}

// NewClient parses cfg.URL and verifies connectivity.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.PoolSize > 0 {
		opt.PoolSize = cfg.PoolSize
	}
	if cfg.DialTimeout > 0 {
		opt.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opt.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opt.WriteTimeout = cfg.WriteTimeout
	}
	opt.MaxRetries = cfg.MaxRetries
	rdb := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return rdb, nil
}

// RedisCache stores JSON encoded values under a namespace.
// Failures are logged and treated as cache misses.
type RedisCache[V any] struct {
	rdb    redis.Cmdable
	prefix string
	log    logger.Logger
}

// NewRedisCache returns a cache whose keys are prefixed with namespace.
func NewRedisCache[V any](rdb redis.Cmdable, namespace string, log logger.Logger) *RedisCache[V] {
	return &RedisCache[V]{rdb: rdb, prefix: namespace, log: log}
}

func (c *RedisCache[V]) key(k string) string { return c.prefix + k }

func (c *RedisCache[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V
	raw, err := c.rdb.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warnf("redis get %s: %v", key, err)
		}
		return zero, false
	}
	var v V
	if err := json.Unmarshal(raw, &v); err != nil {
		c.log.Warnf("redis decode %s: %v", key, err)
		return zero, false
	}
	return v, true
}

func (c *RedisCache[V]) Set(ctx context.Context, key string, v V, ttl time.Duration) {
	raw, err := json.Marshal(v)
	if err != nil {
		c.log.Warnf("redis encode %s: %v", key, err)
		return
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := c.rdb.Set(ctx, c.key(key), raw, ttl).Err(); err != nil {
		c.log.Warnf("redis set %s: %v", key, err)
	}
}

func (c *RedisCache[V]) Delete(ctx context.Context, key string) {
	if err := c.rdb.Del(ctx, c.key(key)).Err(); err != nil {
		c.log.Warnf("redis del %s: %v", key, err)
	}
}
