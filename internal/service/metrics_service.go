package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SystemMetrics is a lightweight snapshot of process counters.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CertificatesIssued       uint64    `json:"certificates_issued"`
	ReservationFailures      uint64    `json:"reservation_failures"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry            *prometheus.Registry
	handler             http.Handler
	requestDuration     *prometheus.HistogramVec
	requestTotal        *prometheus.CounterVec
	cacheLatency        prometheus.Observer
	cacheWrite          prometheus.Observer
	cacheHitRatio       prometheus.Gauge
	cacheHits           prometheus.Counter
	cacheMisses         prometheus.Counter
	reservationDuration *prometheus.HistogramVec
	issued              *prometheus.CounterVec
	statusChanges       *prometheus.CounterVec
	verifications       *prometheus.CounterVec
	renderDuration      prometheus.Observer
	skippedAssets       prometheus.Counter
	archives            *prometheus.CounterVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	issuedCount          uint64
	reservationFailed    uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	reservationDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "folio_reservation_duration_seconds",
		Help:    "Duration of folio sequence reservations including retries",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"backend", "outcome"})

	issued := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "certificates_issued_total",
		Help: "Certificates issued by type",
	}, []string{"type"})

	statusChanges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "certificate_status_changes_total",
		Help: "Certificate status transitions",
	}, []string{"from", "to"})

	verifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "certificate_verifications_total",
		Help: "Verification lookups by outcome",
	}, []string{"outcome"})

	renderDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "certificate_render_duration_seconds",
		Help:    "Time spent rendering certificate PDFs",
		Buckets: prometheus.DefBuckets,
	})

	skippedAssets := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "certificate_render_skipped_assets_total",
		Help: "Images skipped while rendering because they could not be loaded",
	})

	archives := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "certificate_documents_archived_total",
		Help: "Archived certificate documents by result",
	}, []string{"result"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		reservationDuration, issued, statusChanges, verifications, renderDuration, skippedAssets, archives, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:            registry,
		handler:             handler,
		requestDuration:     requestDuration,
		requestTotal:        requestTotal,
		cacheLatency:        cacheLatency,
		cacheWrite:          cacheWrite,
		cacheHitRatio:       cacheHitRatio,
		cacheHits:           cacheHits,
		cacheMisses:         cacheMisses,
		reservationDuration: reservationDuration,
		issued:              issued,
		statusChanges:       statusChanges,
		verifications:       verifications,
		renderDuration:      renderDuration,
		skippedAssets:       skippedAssets,
		archives:            archives,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveReservation records a folio reservation attempt.
func (m *MetricsService) ObserveReservation(backend, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	if backend == "" {
		backend = "unknown"
	}
	m.reservationDuration.WithLabelValues(backend, outcome).Observe(duration.Seconds())
	if outcome != "ok" {
		atomic.AddUint64(&m.reservationFailed, 1)
	}
}

// RecordIssued counts an issued certificate.
func (m *MetricsService) RecordIssued(certType string) {
	if m == nil {
		return
	}
	m.issued.WithLabelValues(certType).Inc()
	atomic.AddUint64(&m.issuedCount, 1)
}

// RecordStatusChange counts a lifecycle transition.
func (m *MetricsService) RecordStatusChange(from, to string) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(from, to).Inc()
}

// RecordVerification counts a verification outcome.
func (m *MetricsService) RecordVerification(outcome string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(outcome).Inc()
}

// ObserveRender records render latency and skipped images.
func (m *MetricsService) ObserveRender(duration time.Duration, skipped int) {
	if m == nil {
		return
	}
	m.renderDuration.Observe(duration.Seconds())
	if skipped > 0 {
		m.skippedAssets.Add(float64(skipped))
	}
}

// RecordArchive counts an archival attempt.
func (m *MetricsService) RecordArchive(result string) {
	if m == nil {
		return
	}
	m.archives.WithLabelValues(result).Inc()
}

// Snapshot returns aggregated counters.
func (m *MetricsService) Snapshot() SystemMetrics {
	if m == nil {
		return SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	if total := hits + misses; total > 0 {
		cacheRatio = float64(hits) / float64(total)
	}
	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return SystemMetrics{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		CacheHits:                hits,
		CacheMisses:              misses,
		CacheHitRatio:            cacheRatio,
		CertificatesIssued:       atomic.LoadUint64(&m.issuedCount),
		ReservationFailures:      atomic.LoadUint64(&m.reservationFailed),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
