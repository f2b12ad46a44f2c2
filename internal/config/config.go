// Package config provides configuration loading for circd.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/fenwicklabs/circd/internal/logging"
)

// Config is the full circd configuration tree.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	ILS         ILSConfig         `koanf:"ils"`
	Cache       CacheConfig       `koanf:"cache"`
	Idempotency IdempotencyConfig `koanf:"idempotency"`
	Audit       AuditConfig       `koanf:"audit"`
	Logging     logging.Config    `koanf:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string   `koanf:"addr"`
	ReadTimeout     Duration `koanf:"read_timeout"`
	WriteTimeout    Duration `koanf:"write_timeout"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// ILSConfig points at the backend gateway.
type ILSConfig struct {
	BaseURL     string   `koanf:"base_url"`
	Username    string   `koanf:"username"`
	Password    Secret   `koanf:"password"`
	CallTimeout Duration `koanf:"call_timeout"`
	RateLimit   float64  `koanf:"rate_limit"`
	RateBurst   int      `koanf:"rate_burst"`
}

// CacheConfig bounds the catalog lookup caches.
type CacheConfig struct {
	TTL        Duration `koanf:"ttl"`
	MaxEntries int      `koanf:"max_entries"`
}

// IdempotencyConfig bounds the replay store.
type IdempotencyConfig struct {
	TTL        Duration `koanf:"ttl"`
	MaxEntries int      `koanf:"max_entries"`
}

// AuditConfig sizes the audit pipeline.
type AuditConfig struct {
	BufferSize int `koanf:"buffer_size"`
}

// NewDefaultConfig returns a configuration with production defaults.
// The ILS base URL has no sensible default and must be supplied.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8642",
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
		},
		ILS: ILSConfig{
			CallTimeout: Duration(20 * time.Second),
			RateLimit:   50,
			RateBurst:   100,
		},
		Cache: CacheConfig{
			TTL:        Duration(5 * time.Minute),
			MaxEntries: 4096,
		},
		Idempotency: IdempotencyConfig{
			TTL:        Duration(15 * time.Minute),
			MaxEntries: 8192,
		},
		Audit: AuditConfig{
			BufferSize: 1024,
		},
		Logging: *logging.NewDefaultConfig(),
	}
}

// Validate checks the configuration for contradictions and holes.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.ILS.BaseURL == "" {
		return fmt.Errorf("ils.base_url is required")
	}
	u, err := url.Parse(c.ILS.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("ils.base_url %q is not an absolute URL", c.ILS.BaseURL)
	}
	if c.ILS.RateLimit <= 0 {
		return fmt.Errorf("ils.rate_limit must be positive")
	}
	if c.ILS.RateBurst <= 0 {
		return fmt.Errorf("ils.rate_burst must be positive")
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache.max_entries must be positive")
	}
	if c.Idempotency.TTL.Duration() <= 0 {
		return fmt.Errorf("idempotency.ttl must be positive")
	}
	if c.Audit.BufferSize <= 0 {
		return fmt.Errorf("audit.buffer_size must be positive")
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}
