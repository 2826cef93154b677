package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/oriys/quasar/internal/cache"
	"github.com/oriys/quasar/internal/logging"
	"github.com/oriys/quasar/internal/metrics"
	"github.com/oriys/quasar/internal/observability"
	"go.opentelemetry.io/otel/trace"
)

// RequestIDHeader carries the request id on every response.
const RequestIDHeader = "X-Request-ID"

// ServerConfig contains dependencies for the HTTP server.
type ServerConfig struct {
	Store       *cache.Store[string, []byte]
	CacheConfig cache.Config
	Source      cache.Source
	Invalidator *cache.Invalidator    // Optional: publish deletes to peers
	Metrics     *metrics.CacheMetrics // Optional: request counters and /metrics
	AccessLog   *logging.AccessLogger // Optional
}

// NewHandler builds the routed, instrumented handler.
func NewHandler(cfg ServerConfig) http.Handler {
	mux := http.NewServeMux()

	h := &Handler{
		Store:       cfg.Store,
		CacheConfig: cfg.CacheConfig,
		Source:      cfg.Source,
		Invalidator: cfg.Invalidator,
	}
	h.RegisterRoutes(mux)
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics.Handler())
	}

	var handler http.Handler = mux
	handler = requestMiddleware(cfg.Metrics, cfg.AccessLog)(handler)
	handler = observability.HTTPMiddleware(handler)
	return handler
}

// StartHTTPServer creates and starts the HTTP server in the background.
func StartHTTPServer(addr string, cfg ServerConfig) *http.Server {
	server := &http.Server{
		Addr:              addr,
		Handler:           NewHandler(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Op().Error("HTTP server error", "error", err)
		}
	}()

	logging.Op().Info("HTTP server listening", "addr", addr)
	return server
}

// requestMiddleware assigns a request id, counts the request and writes an
// access line once the handler returns.
func requestMiddleware(m *metrics.CacheMetrics, access *logging.AccessLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := r.Header.Get(RequestIDHeader)
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, reqID)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			// The mux records the matched pattern and path values on the
			// request it is given, so keep a handle on that copy.
			r = r.WithContext(withRequestID(r.Context(), reqID))
			trace.SpanFromContext(r.Context()).SetAttributes(observability.AttrRequestID.String(reqID))
			next.ServeHTTP(rec, r)

			if m != nil {
				m.RecordRequest(routeLabel(r), rec.status)
			}
			access.Log(&logging.AccessLog{
				RequestID:  reqID,
				TraceID:    observability.GetTraceID(r.Context()),
				Method:     r.Method,
				Path:       r.URL.Path,
				Key:        r.PathValue("key"),
				Status:     rec.status,
				DurationMs: time.Since(start).Milliseconds(),
				Bytes:      rec.bytes,
				Error:      rec.errMsg,
			})
		})
	}
}

// routeLabel keeps metric cardinality bounded by using the matched pattern
// instead of the raw path.
func routeLabel(r *http.Request) string {
	if r.Pattern == "" {
		return "unmatched"
	}
	return r.Pattern
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	errMsg string
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}
