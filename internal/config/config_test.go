package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Source.Kind != SourceMemory {
		t.Fatalf("expected memory source by default, got %q", cfg.Source.Kind)
	}
}

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
cache:
  capacity: 3
  prune: 2
  ttl: 1500ms
  coalesce: true
source:
  kind: redis
  breaker:
    error_pct: 50
    window: 30s
    open_duration: 5s
redis:
  addr: redis:6379
  invalidation: true
daemon:
  log_format: json
observability:
  tracing:
    enabled: true
    sample_rate: 0.25
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Cache.Capacity != 3 || cfg.Cache.Prune != 2 || cfg.Cache.TTL != 1500*time.Millisecond || !cfg.Cache.Coalesce {
		t.Fatalf("unexpected cache section: %+v", cfg.Cache)
	}
	if cfg.Source.Kind != SourceRedis || cfg.Redis.Addr != "redis:6379" || !cfg.Redis.Invalidation {
		t.Fatalf("unexpected source/redis: %+v %+v", cfg.Source, cfg.Redis)
	}
	if !cfg.Source.Breaker.Enabled() || cfg.Source.Breaker.WindowDuration != 30*time.Second {
		t.Fatalf("unexpected breaker: %+v", cfg.Source.Breaker)
	}
	// Untouched fields keep their defaults.
	if cfg.Daemon.HTTPAddr != ":8080" || cfg.Daemon.LogFormat != "json" {
		t.Fatalf("unexpected daemon section: %+v", cfg.Daemon)
	}
	if !cfg.Observability.Tracing.Enabled || cfg.Observability.Tracing.SampleRate != 0.25 {
		t.Fatalf("unexpected tracing section: %+v", cfg.Observability.Tracing)
	}

	st := cfg.Cache.Store()
	if st.Capacity != 3 || st.Prune != 2 || st.TTL != 1500*time.Millisecond {
		t.Fatalf("unexpected store config: %+v", st)
	}
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil) failed: %v", err)
	}
	if cfg.Cache.Capacity != DefaultConfig().Cache.Capacity {
		t.Fatal("expected defaults for empty input")
	}
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	if _, err := Parse([]byte("cache:\n  capacty: 3\n")); err == nil {
		t.Fatal("expected error for misspelled field")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quasar.yaml")
	if err := os.WriteFile(path, []byte("cache:\n  capacity: 42\n  prune: 2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.Cache.Capacity != 42 {
		t.Fatalf("expected capacity 42, got %d", cfg.Cache.Capacity)
	}

	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("QUASAR_CAPACITY", "50")
	t.Setenv("QUASAR_PRUNE", "5")
	t.Setenv("QUASAR_TTL", "2s")
	t.Setenv("QUASAR_COALESCE", "true")
	t.Setenv("QUASAR_SOURCE", "postgres")
	t.Setenv("QUASAR_PG_DSN", "postgres://localhost/quasar")
	t.Setenv("QUASAR_OTLP_ENDPOINT", "collector:4318")

	cfg := DefaultConfig()
	if err := LoadFromEnv(cfg); err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}
	if cfg.Cache.Capacity != 50 || cfg.Cache.Prune != 5 || cfg.Cache.TTL != 2*time.Second || !cfg.Cache.Coalesce {
		t.Fatalf("unexpected cache section: %+v", cfg.Cache)
	}
	if cfg.Source.Kind != SourcePostgres || cfg.Postgres.DSN == "" {
		t.Fatalf("unexpected source: %+v", cfg.Source)
	}
	if !cfg.Observability.Tracing.Enabled || cfg.Observability.Tracing.Endpoint != "collector:4318" {
		t.Fatalf("unexpected tracing: %+v", cfg.Observability.Tracing)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config: %v", err)
	}
}

func TestLoadFromEnv_Malformed(t *testing.T) {
	t.Setenv("QUASAR_TTL", "soon")
	if err := LoadFromEnv(DefaultConfig()); err == nil {
		t.Fatal("expected error for malformed QUASAR_TTL")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "zero capacity", mutate: func(c *Config) { c.Cache.Capacity = 0 }},
		{name: "zero prune", mutate: func(c *Config) { c.Cache.Prune = 0 }},
		{name: "prune above capacity", mutate: func(c *Config) { c.Cache.Capacity = 2; c.Cache.Prune = 3 }},
		{name: "negative ttl", mutate: func(c *Config) { c.Cache.TTL = -time.Second }},
		{name: "unknown source", mutate: func(c *Config) { c.Source.Kind = "memcached" }},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Source.Kind = SourcePostgres }},
		{name: "tiered without dsn", mutate: func(c *Config) { c.Source.Kind = SourceTiered }},
		{name: "redis without addr", mutate: func(c *Config) { c.Source.Kind = SourceRedis; c.Redis.Addr = "" }},
		{name: "breaker above 100%", mutate: func(c *Config) { c.Source.Breaker.ErrorPct = 150 }},
		{name: "invalidation without addr", mutate: func(c *Config) { c.Redis.Invalidation = true; c.Redis.Addr = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
}
