package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/oriys/quasar/internal/cache"
	"github.com/stretchr/testify/require"
)

func TestInit_DisabledIsNoop(t *testing.T) {
	require.NoError(t, Init(context.Background(), Config{Enabled: false}))
	require.False(t, Enabled())

	ctx, span := StartSpan(context.Background(), "noop")
	span.End()
	require.Empty(t, GetTraceID(ctx))
	require.NoError(t, Shutdown(context.Background()))
}

func TestInit_UnknownExporter(t *testing.T) {
	err := Init(context.Background(), Config{Enabled: true, Exporter: "carrier-pigeon"})
	require.Error(t, err)
}

func TestInit_DiscardExporterRecordsSpans(t *testing.T) {
	require.NoError(t, Init(context.Background(), Config{Enabled: true, Exporter: "none"}))
	defer func() {
		require.NoError(t, Shutdown(context.Background()))
		require.NoError(t, Init(context.Background(), Config{}))
	}()

	require.True(t, Enabled())
	ctx, span := StartSpan(context.Background(), "op")
	defer span.End()
	require.NotEmpty(t, GetTraceID(ctx))

	h := http.Header{}
	InjectHTTP(ctx, h)
	require.NotEmpty(t, h.Get("traceparent"))
}

func TestTraceResolver_PassesThrough(t *testing.T) {
	errBoom := errors.New("boom")
	r := TraceResolver("test", cache.Resolver[string, []byte](func(_ context.Context, key string) ([]byte, error) {
		if key == "bad" {
			return nil, errBoom
		}
		return []byte("v:" + key), nil
	}))

	v, err := r(context.Background(), "a")
	require.NoError(t, err)
	require.Equal(t, []byte("v:a"), v)

	_, err = r(context.Background(), "bad")
	require.Equal(t, errBoom, err)
}

func TestHTTPMiddleware_CapturesStatus(t *testing.T) {
	require.NoError(t, Init(context.Background(), Config{Enabled: true, Exporter: "none"}))
	defer func() {
		require.NoError(t, Shutdown(context.Background()))
		require.NoError(t, Init(context.Background(), Config{}))
	}()

	var traceID string
	h := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = GetTraceID(r.Context())
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/cache/a", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)
	require.NotEmpty(t, traceID)
}
