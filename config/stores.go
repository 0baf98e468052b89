package config

import (
	"fmt"

	"github.com/kilianp07/crisismatch/infra/cache"
	"github.com/kilianp07/crisismatch/infra/profile"
)

// CacheConfig selects where workload and quality assessments are cached.
type CacheConfig struct {
	// Backend is "memory" or "redis".
	Backend string       `json:"backend"`
	Redis   cache.Config `json:"redis"`
}

func (c *CacheConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	def := cache.DefaultConfig()
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = def.Prefix
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = def.PoolSize
	}
	if c.Redis.DialTimeout == 0 {
		c.Redis.DialTimeout = def.DialTimeout
	}
	if c.Redis.ReadTimeout == 0 {
		c.Redis.ReadTimeout = def.ReadTimeout
	}
	if c.Redis.WriteTimeout == 0 {
		c.Redis.WriteTimeout = def.WriteTimeout
	}
}

func (c CacheConfig) Validate() error {
	switch c.Backend {
	case "memory":
	case "redis":
		if c.Redis.URL == "" {
			return fmt.Errorf("redis.url is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
	return nil
}

// ProfilesConfig selects the responder profile source.
type ProfilesConfig struct {
	// Backend is "memory", "sqlite", "postgres" or "http".
	Backend string `json:"backend"`
	// Path is the sqlite database file.
	Path string `json:"path"`
	// DSN is the postgres connection string.
	DSN string `json:"dsn"`
	// Seed is an optional YAML roster loaded into memory or SQL stores.
	Seed string             `json:"seed"`
	HTTP profile.HTTPConfig `json:"http"`
}

func (c *ProfilesConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.Backend == "sqlite" && c.Path == "" {
		c.Path = "profiles.db"
	}
}

func (c ProfilesConfig) Validate() error {
	switch c.Backend {
	case "memory", "sqlite":
	case "postgres":
		if c.DSN == "" {
			return fmt.Errorf("dsn is required for the postgres backend")
		}
	case "http":
		if c.HTTP.BaseURL == "" {
			return fmt.Errorf("http.base_url is required for the http backend")
		}
		if c.Seed != "" {
			return fmt.Errorf("seed is not supported with the read-only http backend")
		}
	default:
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
	return nil
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr string `json:"addr"`
	// Token, when set, is required as a bearer token on /api routes.
	Token string `json:"token"`
	// ShutdownSeconds bounds graceful shutdown.
	ShutdownSeconds int `json:"shutdown_seconds"`
}

func (c *HTTPConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ShutdownSeconds <= 0 {
		c.ShutdownSeconds = 10
	}
}

func (c HTTPConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	return nil
}
