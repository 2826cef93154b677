package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/oriys/quasar/internal/cache"
	"github.com/oriys/quasar/internal/config"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quasar.yaml")
	data := []byte("cache:\n  capacity: 50\n  prune: 5\n  ttl: 30s\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	t.Setenv("QUASAR_PRUNE", "10")

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 50, cfg.Cache.Capacity)
	require.Equal(t, 10, cfg.Cache.Prune)
	require.Equal(t, 30*time.Second, cfg.Cache.TTL)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestOpenSource_Memory(t *testing.T) {
	cfg := config.DefaultConfig()
	src, client, err := openSource(context.Background(), cfg)
	require.NoError(t, err)
	defer src.Close()

	require.Nil(t, client)
	require.IsType(t, &cache.MemorySource{}, src)
}

func TestOpenSource_RedisSharesClient(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Source.Kind = config.SourceRedis
	src, client, err := openSource(context.Background(), cfg)
	require.NoError(t, err)
	defer src.Close()

	require.NotNil(t, client)
	require.Same(t, client, src.(*cache.RedisSource).Client())
}

func TestOpenSource_UnknownKind(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Source.Kind = "etcd"
	_, _, err := openSource(context.Background(), cfg)
	require.ErrorContains(t, err, "unknown source kind")
}
