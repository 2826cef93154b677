// Package metrics exposes store and HTTP metrics in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Default histogram buckets for resolver latency (in milliseconds).
var defaultBuckets = []float64{0.5, 1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

// CacheMetrics wraps the Prometheus collectors for one store. It satisfies
// cache.Observer.
type CacheMetrics struct {
	registry *prometheus.Registry

	// Counters
	hitsTotal      prometheus.Counter
	missesTotal    prometheus.Counter
	evictionsTotal *prometheus.CounterVec
	resolvesTotal  *prometheus.CounterVec
	requestsTotal  *prometheus.CounterVec

	// Histograms
	resolveDuration *prometheus.HistogramVec

	// Gauges
	entries prometheus.Gauge
	uptime  prometheus.GaugeFunc
}

// NewCacheMetrics creates collectors under namespace in a private registry
// that also carries the Go and process collectors. Nil buckets select the
// defaults.
func NewCacheMetrics(namespace string, buckets []float64) *CacheMetrics {
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	start := time.Now()
	m := &CacheMetrics{
		registry: registry,

		hitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Lookups answered from the store",
		}),
		missesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Lookups that had to call the resolver",
		}),
		evictionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Entries removed by pruning",
		}, []string{"reason"}),
		resolvesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_resolves_total",
			Help:      "Resolver calls by outcome",
		}, []string{"status"}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP API requests by route and status code",
		}, []string{"route", "code"}),

		resolveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cache_resolve_duration_milliseconds",
			Help:      "Duration of resolver calls in milliseconds",
			Buckets:   buckets,
		}, []string{"status"}),

		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Entries currently stored",
		}),
		uptime: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Seconds since the metrics were created",
		}, func() float64 { return time.Since(start).Seconds() }),
	}

	registry.MustRegister(
		m.hitsTotal,
		m.missesTotal,
		m.evictionsTotal,
		m.resolvesTotal,
		m.requestsTotal,
		m.resolveDuration,
		m.entries,
		m.uptime,
	)
	return m
}

func (m *CacheMetrics) Hit()  { m.hitsTotal.Inc() }
func (m *CacheMetrics) Miss() { m.missesTotal.Inc() }

func (m *CacheMetrics) Evicted(reason string, n int) {
	m.evictionsTotal.WithLabelValues(reason).Add(float64(n))
}

func (m *CacheMetrics) Resolved(d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.resolvesTotal.WithLabelValues(status).Inc()
	m.resolveDuration.WithLabelValues(status).Observe(float64(d) / float64(time.Millisecond))
}

func (m *CacheMetrics) Size(n int) { m.entries.Set(float64(n)) }

// RecordRequest counts one HTTP API request.
func (m *CacheMetrics) RecordRequest(route string, code int) {
	m.requestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// Handler returns the /metrics handler for this registry.
func (m *CacheMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the underlying registry.
func (m *CacheMetrics) Registry() *prometheus.Registry {
	return m.registry
}
