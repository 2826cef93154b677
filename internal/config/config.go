// Package config loads daemon configuration from defaults, a YAML file and
// QUASAR_* environment variables; each layer overrides the previous one.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/oriys/quasar/internal/cache"
	"github.com/oriys/quasar/internal/circuitbreaker"
	"github.com/oriys/quasar/internal/observability"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid config")

// Source kinds.
const (
	SourceMemory   = "memory"
	SourceRedis    = "redis"
	SourcePostgres = "postgres"
	SourceTiered   = "tiered"
)

// CacheConfig sizes the store.
type CacheConfig struct {
	Capacity int           `yaml:"capacity"`
	Prune    int           `yaml:"prune"`
	TTL      time.Duration `yaml:"ttl"`      // 0 disables expiry
	Coalesce bool          `yaml:"coalesce"` // share one resolver call per key
}

// Store converts c into the store configuration.
func (c CacheConfig) Store() cache.Config {
	return cache.Config{Capacity: c.Capacity, Prune: c.Prune, TTL: c.TTL}
}

// SourceConfig selects where misses are resolved from.
type SourceConfig struct {
	Kind    string                `yaml:"kind"`
	L1TTL   time.Duration         `yaml:"l1_ttl"`  // tiered only
	Breaker circuitbreaker.Config `yaml:"breaker"` // zero value disables
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr                string `yaml:"addr"`
	Password            string `yaml:"password"`
	DB                  int    `yaml:"db"`
	KeyPrefix           string `yaml:"key_prefix"`
	InvalidationChannel string `yaml:"invalidation_channel"`
	Invalidation        bool   `yaml:"invalidation"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

// DaemonConfig holds daemon-specific settings.
type DaemonConfig struct {
	HTTPAddr  string `yaml:"http_addr"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	AccessLog string `yaml:"access_log"` // JSON lines file, empty for console only
}

// ObservabilityConfig groups telemetry settings.
type ObservabilityConfig struct {
	Tracing        observability.Config `yaml:"tracing"`
	MetricsEnabled bool                 `yaml:"metrics_enabled"`
}

// Config is the central configuration struct.
type Config struct {
	Cache         CacheConfig         `yaml:"cache"`
	Source        SourceConfig        `yaml:"source"`
	Redis         RedisConfig         `yaml:"redis"`
	Postgres      PostgresConfig      `yaml:"postgres"`
	Daemon        DaemonConfig        `yaml:"daemon"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			Capacity: 10000,
			Prune:    1000,
		},
		Source: SourceConfig{
			Kind:  SourceMemory,
			L1TTL: 10 * time.Second,
		},
		Redis: RedisConfig{
			Addr:                "localhost:6379",
			InvalidationChannel: cache.DefaultInvalidationChannel,
		},
		Postgres: PostgresConfig{
			Table: "quasar_entries",
		},
		Daemon: DaemonConfig{
			HTTPAddr:  ":8080",
			LogLevel:  "info",
			LogFormat: "text",
		},
		Observability: ObservabilityConfig{
			Tracing: observability.Config{
				Exporter:    "otlp-http",
				Endpoint:    "localhost:4318",
				ServiceName: "quasar",
				SampleRate:  1.0,
			},
			MetricsEnabled: true,
		},
	}
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML on top of the defaults. Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// LoadFromEnv applies environment variable overrides to cfg. Malformed
// numeric values are reported rather than ignored.
func LoadFromEnv(cfg *Config) error {
	if v := os.Getenv("QUASAR_CAPACITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("QUASAR_CAPACITY: %w", err)
		}
		cfg.Cache.Capacity = n
	}
	if v := os.Getenv("QUASAR_PRUNE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("QUASAR_PRUNE: %w", err)
		}
		cfg.Cache.Prune = n
	}
	if v := os.Getenv("QUASAR_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("QUASAR_TTL: %w", err)
		}
		cfg.Cache.TTL = d
	}
	if v := os.Getenv("QUASAR_COALESCE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("QUASAR_COALESCE: %w", err)
		}
		cfg.Cache.Coalesce = b
	}
	if v := os.Getenv("QUASAR_SOURCE"); v != "" {
		cfg.Source.Kind = v
	}
	if v := os.Getenv("QUASAR_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("QUASAR_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("QUASAR_PG_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("QUASAR_HTTP_ADDR"); v != "" {
		cfg.Daemon.HTTPAddr = v
	}
	if v := os.Getenv("QUASAR_LOG_LEVEL"); v != "" {
		cfg.Daemon.LogLevel = v
	}
	if v := os.Getenv("QUASAR_LOG_FORMAT"); v != "" {
		cfg.Daemon.LogFormat = v
	}
	if v := os.Getenv("QUASAR_OTLP_ENDPOINT"); v != "" {
		cfg.Observability.Tracing.Endpoint = v
		cfg.Observability.Tracing.Enabled = true
	}
	return nil
}

// Validate checks the preconditions the store itself does not enforce.
func (c *Config) Validate() error {
	if c.Cache.Capacity <= 0 {
		return fmt.Errorf("%w: cache.capacity must be positive, got %d", ErrInvalid, c.Cache.Capacity)
	}
	if c.Cache.Prune <= 0 || c.Cache.Prune > c.Cache.Capacity {
		return fmt.Errorf("%w: cache.prune must be in [1, %d], got %d", ErrInvalid, c.Cache.Capacity, c.Cache.Prune)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("%w: cache.ttl must not be negative", ErrInvalid)
	}
	switch c.Source.Kind {
	case SourceMemory:
	case SourceRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("%w: redis.addr is required for source %q", ErrInvalid, c.Source.Kind)
		}
	case SourcePostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("%w: postgres.dsn is required for source %q", ErrInvalid, c.Source.Kind)
		}
	case SourceTiered:
		if c.Redis.Addr == "" || c.Postgres.DSN == "" {
			return fmt.Errorf("%w: source %q needs redis.addr and postgres.dsn", ErrInvalid, c.Source.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown source kind %q", ErrInvalid, c.Source.Kind)
	}
	if b := c.Source.Breaker; b.ErrorPct < 0 || b.ErrorPct > 100 {
		return fmt.Errorf("%w: source.breaker.error_pct must be in [0, 100], got %g", ErrInvalid, b.ErrorPct)
	}
	if c.Redis.Invalidation && c.Redis.Addr == "" {
		return fmt.Errorf("%w: redis.invalidation needs redis.addr", ErrInvalid)
	}
	return nil
}
