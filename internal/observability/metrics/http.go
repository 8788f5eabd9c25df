package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	askTotal           *prometheus.CounterVec
	askDuration        *prometheus.HistogramVec
	searchAttempts     *prometheus.HistogramVec
	retrievedSources   *prometheus.HistogramVec
	noContextTotal     *prometheus.CounterVec
	providerUsedTotal  *prometheus.CounterVec
	fallbackTotal      *prometheus.CounterVec
	degradedTotal      *prometheus.CounterVec
	embeddingCacheHits *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "knight",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "knight",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "knight",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	askTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "knight",
			Subsystem: "rag",
			Name:      "ask_total",
			Help:      "Total completed ask requests.",
		},
		[]string{"service"},
	)
	askDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "knight",
			Subsystem: "rag",
			Name:      "ask_duration_seconds",
			Help:      "End-to-end ask duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	searchAttempts := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "knight",
			Subsystem: "rag",
			Name:      "search_attempts",
			Help:      "Distribution of search attempts per ask, refinements included.",
			Buckets:   []float64{1, 2, 3},
		},
		[]string{"service"},
	)
	retrievedSources := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "knight",
			Subsystem: "rag",
			Name:      "retrieved_sources",
			Help:      "Distribution of retrieved sources per completed ask.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)
	noContextTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "knight",
			Subsystem: "rag",
			Name:      "no_context_total",
			Help:      "Total asks answered without retrieved sources.",
		},
		[]string{"service"},
	)
	providerUsedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "knight",
			Subsystem: "generation",
			Name:      "provider_used_total",
			Help:      "Total generations served by provider.",
		},
		[]string{"service", "provider"},
	)
	fallbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "knight",
			Subsystem: "generation",
			Name:      "fallback_total",
			Help:      "Total generations served by a non-primary provider.",
		},
		[]string{"service"},
	)
	degradedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "knight",
			Subsystem: "generation",
			Name:      "degraded_total",
			Help:      "Total asks that fell through to the degraded response.",
		},
		[]string{"service"},
	)
	embeddingCacheHits := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "knight",
			Subsystem: "embedding_cache",
			Name:      "lookups_total",
			Help:      "Embedding cache lookups by outcome.",
		},
		[]string{"service", "outcome"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		askTotal,
		askDuration,
		searchAttempts,
		retrievedSources,
		noContextTotal,
		providerUsedTotal,
		fallbackTotal,
		degradedTotal,
		embeddingCacheHits,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		askTotal:           askTotal,
		askDuration:        askDuration,
		searchAttempts:     searchAttempts,
		retrievedSources:   retrievedSources,
		noContextTotal:     noContextTotal,
		providerUsedTotal:  providerUsedTotal,
		fallbackTotal:      fallbackTotal,
		degradedTotal:      degradedTotal,
		embeddingCacheHits: embeddingCacheHits,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	default:
		return path
	}
}

// RecordAsk captures one completed ask: its attempts, source count,
// winning provider and whether the run degraded or fell back.
func (m *HTTPServerMetrics) RecordAsk(service, provider string, attempts, sourceCount int, fellBack, degraded bool, duration time.Duration) {
	m.askTotal.WithLabelValues(service).Inc()
	m.askDuration.WithLabelValues(service).Observe(duration.Seconds())
	m.searchAttempts.WithLabelValues(service).Observe(float64(attempts))
	m.retrievedSources.WithLabelValues(service).Observe(float64(sourceCount))

	if sourceCount == 0 {
		m.noContextTotal.WithLabelValues(service).Inc()
	}
	if provider == "" {
		provider = "unknown"
	}
	m.providerUsedTotal.WithLabelValues(service, provider).Inc()
	if fellBack {
		m.fallbackTotal.WithLabelValues(service).Inc()
	}
	if degraded {
		m.degradedTotal.WithLabelValues(service).Inc()
	}
}

func (m *HTTPServerMetrics) RecordEmbeddingCacheLookup(service, outcome string) {
	m.embeddingCacheHits.WithLabelValues(service, outcome).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
