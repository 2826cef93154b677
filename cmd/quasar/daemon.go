package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oriys/quasar/internal/api"
	"github.com/oriys/quasar/internal/cache"
	"github.com/oriys/quasar/internal/circuitbreaker"
	"github.com/oriys/quasar/internal/config"
	"github.com/oriys/quasar/internal/logging"
	"github.com/oriys/quasar/internal/metrics"
	"github.com/oriys/quasar/internal/observability"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func daemonCmd() *cobra.Command {
	var (
		configPath string
		httpAddr   string
		logLevel   string
		source     string
		quiet      bool
	)

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the cache daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if httpAddr != "" {
				cfg.Daemon.HTTPAddr = httpAddr
			}
			if logLevel != "" {
				cfg.Daemon.LogLevel = logLevel
			}
			if source != "" {
				cfg.Source.Kind = source
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			if err := logging.InitStructured(cfg.Daemon.LogFormat, cfg.Daemon.LogLevel); err != nil {
				return err
			}
			return runDaemon(cfg, !quiet)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
	cmd.Flags().StringVar(&httpAddr, "http", "", "HTTP listen address (overrides config)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (overrides config)")
	cmd.Flags().StringVar(&source, "source", "", "Resolver source: memory, redis, postgres or tiered")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Disable access logging")

	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = config.LoadFromFile(path); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}
	if err := config.LoadFromEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runDaemon(cfg *config.Config, accessLog bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := observability.Init(ctx, cfg.Observability.Tracing); err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := observability.Shutdown(shutdownCtx); err != nil {
			logging.Op().Warn("tracing shutdown failed", "error", err)
		}
	}()

	src, redisClient, err := openSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = src.Ping(pingCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("source %s unreachable: %w", cfg.Source.Kind, err)
	}

	var m *metrics.CacheMetrics
	opts := []cache.Option{cache.WithLogger(logging.Op().With("component", "cache"))}
	if cfg.Observability.MetricsEnabled {
		m = metrics.NewCacheMetrics("quasar", nil)
		opts = append(opts, cache.WithObserver(m))
	}
	if cfg.Cache.Coalesce {
		opts = append(opts, cache.WithCoalescing())
	}

	resolve := observability.TraceResolver(cfg.Source.Kind, cache.SourceResolver(src))
	if cfg.Source.Breaker.Enabled() {
		resolve = circuitbreaker.Resolver(circuitbreaker.New(cfg.Source.Breaker), resolve)
	}
	store := cache.New(resolve, cfg.Cache.Store(), opts...)

	var inv *cache.Invalidator
	if cfg.Redis.Invalidation {
		if redisClient == nil {
			redisClient = redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			defer redisClient.Close()
		}
		inv = cache.NewInvalidator(store, redisClient, cfg.Redis.InvalidationChannel)
		go inv.Start(ctx)
		defer inv.Close()
	}

	access := logging.NewAccessLogger(os.Stdout)
	access.SetEnabled(accessLog)
	if cfg.Daemon.AccessLog != "" {
		if err := access.SetOutput(cfg.Daemon.AccessLog); err != nil {
			return fmt.Errorf("open access log: %w", err)
		}
	}
	defer access.Close()

	server := api.StartHTTPServer(cfg.Daemon.HTTPAddr, api.ServerConfig{
		Store:       store,
		CacheConfig: cfg.Cache.Store(),
		Source:      src,
		Invalidator: inv,
		Metrics:     m,
		AccessLog:   access,
	})

	logging.Op().Info("quasar daemon started",
		"source", cfg.Source.Kind,
		"capacity", cfg.Cache.Capacity,
		"prune", cfg.Cache.Prune,
		"ttl", cfg.Cache.TTL,
		"coalesce", cfg.Cache.Coalesce,
		"version", observability.ServiceVersion,
	)

	<-ctx.Done()
	logging.Op().Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// openSource builds the configured source. The Redis client is returned so
// the invalidator can share its connection pool; it is nil for sources that
// do not use Redis.
func openSource(ctx context.Context, cfg *config.Config) (cache.Source, *redis.Client, error) {
	redisSource := func() *cache.RedisSource {
		return cache.NewRedisSource(cache.RedisSourceConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
	}

	switch cfg.Source.Kind {
	case config.SourceMemory:
		return cache.NewMemorySource(), nil, nil
	case config.SourceRedis:
		rs := redisSource()
		return rs, rs.Client(), nil
	case config.SourcePostgres:
		ps, err := cache.NewPostgresSource(ctx, cfg.Postgres.DSN, cfg.Postgres.Table)
		if err != nil {
			return nil, nil, err
		}
		return ps, nil, nil
	case config.SourceTiered:
		ps, err := cache.NewPostgresSource(ctx, cfg.Postgres.DSN, cfg.Postgres.Table)
		if err != nil {
			return nil, nil, err
		}
		rs := redisSource()
		return cache.NewTieredSource(rs, ps, cfg.Source.L1TTL), rs.Client(), nil
	default:
		return nil, nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
	}
}
