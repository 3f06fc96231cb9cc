package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tgvideohub"

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	latency         *prometheus.HistogramVec
	responseBytes   *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	rangeFallbacks  prometheus.Counter
	activeStreams   prometheus.Gauge
	rejectedStreams *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Time to first byte plus body for HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		responseBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "response_bytes_total",
			Help:      "Media body bytes written to clients by response kind.",
		}, []string{"kind"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by cache and result.",
		}, []string{"cache", "result"}),
		rangeFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "range_fallbacks_total",
			Help:      "Range requests answered with the full stream.",
		}),
		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_streams",
			Help:      "Streams and downloads currently in flight.",
		}),
		rejectedStreams: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_requests_total",
			Help:      "Requests refused by rate or concurrency limits.",
		}, []string{"reason"}),
	}
	m.registry.MustRegister(
		m.requests,
		m.latency,
		m.responseBytes,
		m.cacheLookups,
		m.rangeFallbacks,
		m.activeStreams,
		m.rejectedStreams,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveRequest(route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.latency.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (m *Metrics) AddResponseBytes(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.responseBytes.WithLabelValues(kind).Add(float64(n))
}

// CacheObserver returns a callback suitable for cache.WithObserver.
func (m *Metrics) CacheObserver(name string) func(hit bool) {
	if m == nil {
		return nil
	}
	hits := m.cacheLookups.WithLabelValues(name, "hit")
	misses := m.cacheLookups.WithLabelValues(name, "miss")
	return func(hit bool) {
		if hit {
			hits.Inc()
			return
		}
		misses.Inc()
	}
}

func (m *Metrics) RangeFallback() {
	if m == nil {
		return
	}
	m.rangeFallbacks.Inc()
}

func (m *Metrics) StreamStarted() {
	if m != nil {
		m.activeStreams.Inc()
	}
}

func (m *Metrics) StreamFinished() {
	if m != nil {
		m.activeStreams.Dec()
	}
}

func (m *Metrics) Rejected(reason string) {
	if m == nil {
		return
	}
	m.rejectedStreams.WithLabelValues(reason).Inc()
}
