package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the HLS proxy.
type Metrics struct {
	registry                *prometheus.Registry
	requestsTotal           prometheus.Counter
	errorsTotal             prometheus.Counter
	playlistsRewrittenTotal prometheus.Counter
	cacheHitsTotal          prometheus.Counter
	cacheMissesTotal        prometheus.Counter
	prefetchSuccessTotal    prometheus.Counter
	prefetchFailuresTotal   prometheus.Counter
	activeSessions          prometheus.Gauge
}

// New creates and registers Prometheus metrics for the proxy.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	}

	m := &Metrics{
		registry:                registry,
		requestsTotal:           counter("hls_proxy_requests_total", "Total number of HTTP requests received"),
		errorsTotal:             counter("hls_proxy_errors_total", "Total number of HTTP responses with error status (4xx or 5xx)"),
		playlistsRewrittenTotal: counter("hls_proxy_playlists_rewritten_total", "Total number of playlists fetched and rewritten"),
		cacheHitsTotal:          counter("hls_proxy_cache_hits_total", "Segment requests served from the cache"),
		cacheMissesTotal:        counter("hls_proxy_cache_misses_total", "Segment requests that had to go upstream"),
		prefetchSuccessTotal:    counter("hls_proxy_prefetch_success_total", "Prefetches that populated the cache"),
		prefetchFailuresTotal:   counter("hls_proxy_prefetch_failures_total", "Prefetches that failed and left no entry"),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hls_proxy_active_sessions",
			Help: "Number of cookie sessions currently held",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.playlistsRewrittenTotal,
		m.cacheHitsTotal,
		m.cacheMissesTotal,
		m.prefetchSuccessTotal,
		m.prefetchFailuresTotal,
		m.activeSessions,
	)

	return m
}

// Every recorder is nil-safe so components can run without metrics in tests.

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	if m != nil {
		m.requestsTotal.Inc()
	}
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	if m != nil {
		m.errorsTotal.Inc()
	}
}

// IncPlaylistsRewritten increments the rewritten playlists counter.
func (m *Metrics) IncPlaylistsRewritten() {
	if m != nil {
		m.playlistsRewrittenTotal.Inc()
	}
}

// IncCacheHits increments the segment cache hit counter.
func (m *Metrics) IncCacheHits() {
	if m != nil {
		m.cacheHitsTotal.Inc()
	}
}

// IncCacheMisses increments the segment cache miss counter.
func (m *Metrics) IncCacheMisses() {
	if m != nil {
		m.cacheMissesTotal.Inc()
	}
}

// IncPrefetchSuccess increments the successful prefetch counter.
func (m *Metrics) IncPrefetchSuccess() {
	if m != nil {
		m.prefetchSuccessTotal.Inc()
	}
}

// IncPrefetchFailures increments the failed prefetch counter.
func (m *Metrics) IncPrefetchFailures() {
	if m != nil {
		m.prefetchFailuresTotal.Inc()
	}
}

// SetActiveSessions sets the active sessions gauge.
func (m *Metrics) SetActiveSessions(n int) {
	if m != nil {
		m.activeSessions.Set(float64(n))
	}
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. active sessions).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
