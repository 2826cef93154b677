package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/oriys/quasar/internal/cache"
	"github.com/oriys/quasar/internal/circuitbreaker"
	"github.com/oriys/quasar/internal/logging"
)

// Handler serves the cache API.
type Handler struct {
	Store       *cache.Store[string, []byte]
	CacheConfig cache.Config
	Source      cache.Source
	Invalidator *cache.Invalidator
}

// RegisterRoutes registers all cache routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/cache/{key}", h.GetKey)
	mux.HandleFunc("DELETE /v1/cache/{key}", h.DeleteKey)
	mux.HandleFunc("DELETE /v1/cache", h.Clear)
	mux.HandleFunc("PUT /v1/source/{key}", h.PutSource)
	mux.HandleFunc("POST /v1/cache/prune", h.Prune)
	mux.HandleFunc("GET /v1/stats", h.Stats)
	mux.HandleFunc("GET /health", h.Health)
}

// StatsResponse is the body of GET /v1/stats and POST /v1/cache/prune.
type StatsResponse struct {
	cache.Stats
	Capacity int      `json:"capacity"`
	Prune    int      `json:"prune"`
	TTLMs    int64    `json:"ttl_ms,omitempty"`
	Keys     []string `json:"keys,omitempty"`
}

// GetKey handles GET /v1/cache/{key}
func (h *Handler) GetKey(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	val, err := h.Store.Get(r.Context(), key)
	if err != nil {
		status := resolveStatus(err)
		logging.OpWithRequest(requestID(r.Context())).Debug("cache get failed",
			"key", key, "status", status, "error", err)
		writeError(w, status, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(val)))
	w.Write(val)
}

// DeleteKey handles DELETE /v1/cache/{key}
func (h *Handler) DeleteKey(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	h.Store.Delete(key)
	h.publish(r, key)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) publish(r *http.Request, key string) {
	if h.Invalidator == nil {
		return
	}
	if err := h.Invalidator.Publish(r.Context(), key); err != nil {
		logging.OpWithRequest(requestID(r.Context())).Warn("publish invalidation failed",
			"key", key, "error", err)
	}
}

// maxValueBytes bounds the body of PUT /v1/source/{key}.
const maxValueBytes = 8 << 20

// PutSource handles PUT /v1/source/{key}. The body is written upstream, the
// local copy is dropped and peers are told to drop theirs, so the next GET
// resolves the new value. ?ttl= sets the upstream retention.
func (h *Handler) PutSource(w http.ResponseWriter, r *http.Request) {
	if h.Source == nil {
		writeError(w, http.StatusNotImplemented, errors.New("no writable source configured"))
		return
	}
	key := r.PathValue("key")

	var ttl time.Duration
	if v := r.URL.Query().Get("ttl"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid ttl %q", v))
			return
		}
		ttl = d
	}

	value, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxValueBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err)
			return
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.Source.Set(r.Context(), key, value, ttl); err != nil {
		logging.OpWithRequest(requestID(r.Context())).Warn("source write failed", "key", key, "error", err)
		writeError(w, http.StatusBadGateway, err)
		return
	}
	h.Store.Delete(key)
	h.publish(r, key)
	w.WriteHeader(http.StatusNoContent)
}

// Clear handles DELETE /v1/cache
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	h.Store.Clear()
	logging.OpWithRequest(requestID(r.Context())).Info("cache cleared")
	w.WriteHeader(http.StatusNoContent)
}

// Prune handles POST /v1/cache/prune
func (h *Handler) Prune(w http.ResponseWriter, r *http.Request) {
	h.Store.Prune()
	writeJSON(w, http.StatusOK, h.stats(false))
}

// Stats handles GET /v1/stats. ?keys=true adds the stored keys, oldest
// first.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	withKeys, _ := strconv.ParseBool(r.URL.Query().Get("keys"))
	writeJSON(w, http.StatusOK, h.stats(withKeys))
}

func (h *Handler) stats(withKeys bool) StatsResponse {
	resp := StatsResponse{
		Stats:    h.Store.Stats(),
		Capacity: h.CacheConfig.Capacity,
		Prune:    h.CacheConfig.Prune,
		TTLMs:    h.CacheConfig.TTL.Milliseconds(),
	}
	if withKeys {
		resp.Keys = h.Store.Keys()
	}
	return resp
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	sourceOK := h.Source == nil || h.Source.Ping(ctx) == nil
	if !sourceOK {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":  status,
		"source":  sourceOK,
		"entries": h.Store.Len(),
	})
}

func resolveStatus(err error) int {
	switch {
	case errors.Is(err, cache.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, circuitbreaker.ErrOpen):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	if rec, ok := w.(*statusRecorder); ok {
		rec.errMsg = err.Error()
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

type requestIDKey struct{}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
