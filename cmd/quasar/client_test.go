package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/oriys/quasar/internal/api"
	"github.com/oriys/quasar/internal/cache"
	"github.com/stretchr/testify/require"
)

func startTestDaemon(t *testing.T) *cache.MemorySource {
	t.Helper()
	src := cache.NewMemorySource()
	cfg := cache.Config{Capacity: 10, Prune: 2}
	ts := httptest.NewServer(api.NewHandler(api.ServerConfig{
		Store:       cache.New(cache.SourceResolver(src), cfg),
		CacheConfig: cfg,
		Source:      src,
	}))
	t.Cleanup(ts.Close)

	prev := serverAddr
	serverAddr = ts.URL
	t.Cleanup(func() { serverAddr = prev })
	return src
}

func TestPutThenGet(t *testing.T) {
	src := startTestDaemon(t)

	put := putCmd()
	put.SetArgs([]string{"greeting", "hello"})
	require.NoError(t, put.Execute())

	v, err := src.Get(context.Background(), "greeting")
	require.NoError(t, err)
	require.Equal(t, "hello", string(v))

	var out bytes.Buffer
	get := getCmd()
	get.SetArgs([]string{"greeting"})
	get.SetOut(&out)
	require.NoError(t, get.Execute())
	require.Equal(t, "hello", out.String())
}

func TestPutFromStdinWithTTL(t *testing.T) {
	src := startTestDaemon(t)

	put := putCmd()
	put.SetArgs([]string{"k", "--ttl", "1h"})
	put.SetIn(strings.NewReader("from stdin"))
	require.NoError(t, put.Execute())

	v, err := src.Get(context.Background(), "k")
	require.NoError(t, err)
	require.Equal(t, "from stdin", string(v))
}

func TestGetMissingReportsError(t *testing.T) {
	startTestDaemon(t)

	get := getCmd()
	get.SetArgs([]string{"missing"})
	get.SilenceUsage = true
	get.SilenceErrors = true
	err := get.Execute()
	require.ErrorContains(t, err, "key not found")
	require.ErrorContains(t, err, "404")
}
