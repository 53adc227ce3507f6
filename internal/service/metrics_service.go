package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/exam-seating-api/internal/models"
)

// MetricsService owns the Prometheus registry and keeps a few counters for
// the JSON summary endpoint. A nil *MetricsService is a valid no-op.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Histogram
	cacheWrite      prometheus.Histogram
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	dbQueryDuration *prometheus.HistogramVec
	seatingRuns     *prometheus.CounterVec
	seatingDuration prometheus.Histogram
	studentsSeated  prometheus.Counter
	studentsLeft    prometheus.Counter
	coursesCarried  prometheus.Counter
	exportJobs      *prometheus.CounterVec

	cacheHitCount      uint64
	cacheMissCount     uint64
	requestCount       uint64
	seatingRunCount    uint64
	computedRunCount   uint64
	studentsSeatedSum  uint64
	studentsLeftSum    uint64
	exportFinished     uint64
	exportFailed       uint64
	seatingDurationSum uint64
}

// NewMetricsService registers the collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_latency_seconds",
			Help:    "Latency for cache lookups",
			Buckets: prometheus.DefBuckets,
		}),
		cacheWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_write_seconds",
			Help:    "Latency for cache writes",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHitRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cache_hit_ratio",
			Help: "Ratio of cache hits to total cache lookups",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total cache misses",
		}),
		dbQueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"query"}),
		seatingRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seating_runs_total",
			Help: "Seating runs by input source and cache outcome",
		}, []string{"source", "cached"}),
		seatingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "seating_run_duration_seconds",
			Help:    "Wall time of a scheduler run",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		}),
		studentsSeated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "seating_students_seated_total",
			Help: "Students seated across all runs",
		}),
		studentsLeft: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "seating_students_unseated_total",
			Help: "Students left without a seat across all runs",
		}),
		coursesCarried: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "seating_courses_carried_total",
			Help: "Morning courses moved to the evening session",
		}),
		exportJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seating_export_jobs_total",
			Help: "Export jobs by final status",
		}, []string{"status"}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		m.requestDuration, m.requestTotal,
		m.cacheLatency, m.cacheWrite, m.cacheHitRatio, m.cacheHits, m.cacheMisses,
		m.dbQueryDuration,
		m.seatingRuns, m.seatingDuration, m.studentsSeated, m.studentsLeft, m.coursesCarried, m.exportJobs,
		goroutines,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
}

// RecordCacheOperation records a cache lookup and updates the hit ratio.
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
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration of cache writes.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveDBQuery records database operation timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// ObserveSeatingRun records the outcome of one scheduler run.
func (m *MetricsService) ObserveSeatingRun(source string, cached bool, stats models.SeatingStats, duration time.Duration) {
	if m == nil {
		return
	}
	m.seatingRuns.WithLabelValues(source, fmt.Sprintf("%t", cached)).Inc()
	atomic.AddUint64(&m.seatingRunCount, 1)
	if cached {
		return
	}
	atomic.AddUint64(&m.computedRunCount, 1)
	m.seatingDuration.Observe(duration.Seconds())
	m.studentsSeated.Add(float64(stats.StudentsSeated))
	m.studentsLeft.Add(float64(stats.StudentsUnseated))
	m.coursesCarried.Add(float64(stats.CoursesCarried))
	atomic.AddUint64(&m.studentsSeatedSum, uint64(stats.StudentsSeated))
	atomic.AddUint64(&m.studentsLeftSum, uint64(stats.StudentsUnseated))
	atomic.AddUint64(&m.seatingDurationSum, uint64(duration.Nanoseconds()))
}

// ObserveExportJob counts a finished or failed export.
func (m *MetricsService) ObserveExportJob(status models.ExportStatus) {
	if m == nil {
		return
	}
	m.exportJobs.WithLabelValues(string(status)).Inc()
	switch status {
	case models.ExportStatusFinished:
		atomic.AddUint64(&m.exportFinished, 1)
	case models.ExportStatusFailed:
		atomic.AddUint64(&m.exportFailed, 1)
	}
}

// Snapshot returns aggregated counters for the summary endpoint.
func (m *MetricsService) Snapshot() models.ServiceMetrics {
	if m == nil {
		return models.ServiceMetrics{GeneratedAt: time.Now().UTC()}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	runs := atomic.LoadUint64(&m.seatingRunCount)

	var ratio float64
	if hits+misses > 0 {
		ratio = float64(hits) / float64(hits+misses)
	}
	var avgRunMs float64
	if computed := atomic.LoadUint64(&m.computedRunCount); computed > 0 {
		avgRunMs = float64(atomic.LoadUint64(&m.seatingDurationSum)) / float64(computed) / float64(time.Millisecond)
	}

	return models.ServiceMetrics{
		RequestsTotal:       atomic.LoadUint64(&m.requestCount),
		CacheHits:           hits,
		CacheMisses:         misses,
		CacheHitRatio:       ratio,
		SeatingRuns:         runs,
		AverageSeatingRunMs: avgRunMs,
		StudentsSeated:      atomic.LoadUint64(&m.studentsSeatedSum),
		StudentsUnseated:    atomic.LoadUint64(&m.studentsLeftSum),
		ExportJobsFinished:  atomic.LoadUint64(&m.exportFinished),
		ExportJobsFailed:    atomic.LoadUint64(&m.exportFailed),
		Goroutines:          runtime.NumGoroutine(),
		GeneratedAt:         time.Now().UTC(),
	}
}
