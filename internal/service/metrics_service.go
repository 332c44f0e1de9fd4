package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/timetable-api/internal/scheduler"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the scheduler.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	dbQueryDuration *prometheus.HistogramVec

	runTotal       *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	groupsLastRun  *prometheus.GaugeVec
	tierTotal      *prometheus.CounterVec
	qualityLastRun prometheus.Gauge
	queueDepth     prometheus.Gauge
	importRows     *prometheus.CounterVec
	exportTotal    *prometheus.CounterVec

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers the collectors.
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
		Help:    "Latency for cache operations",
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

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	runTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_runs_total",
		Help: "Scheduling runs by mode and outcome",
	}, []string{"mode", "outcome"})

	runDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scheduler_run_duration_seconds",
		Help:    "Wall time of scheduling runs including persistence",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"mode"})

	groupsLastRun := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scheduler_last_run_groups",
		Help: "Link groups of the last successful run by final state",
	}, []string{"state"})

	tierTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_group_tier_total",
		Help: "Placed link groups by candidate tier",
	}, []string{"tier"})

	qualityLastRun := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scheduler_last_run_quality",
		Help: "Overall teacher quality score of the last successful run",
	})

	queueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scheduler_queue_depth",
		Help: "Scheduling runs waiting for a worker",
	})

	importRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "import_rows_total",
		Help: "Rows accepted from CSV uploads",
	}, []string{"kind"})

	exportTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_exports_total",
		Help: "Rendered timetable downloads",
	}, []string{"format"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses, dbQueryDuration,
		runTotal, runDuration, groupsLastRun, tierTotal, qualityLastRun, queueDepth, importRows, exportTotal, goroutines,
	)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		dbQueryDuration: dbQueryDuration,
		runTotal:        runTotal,
		runDuration:     runDuration,
		groupsLastRun:   groupsLastRun,
		tierTotal:       tierTotal,
		qualityLastRun:  qualityLastRun,
		queueDepth:      queueDepth,
		importRows:      importRows,
		exportTotal:     exportTotal,
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

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
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

func runMode(rebuild bool) string {
	if rebuild {
		return "rebuild"
	}
	return "incremental"
}

// RecordSchedulerRun records one finished run. A nil report marks a failure.
func (m *MetricsService) RecordSchedulerRun(rebuild bool, duration time.Duration, report *scheduler.Report) {
	if m == nil {
		return
	}
	mode := runMode(rebuild)
	m.runDuration.WithLabelValues(mode).Observe(duration.Seconds())
	if report == nil {
		m.runTotal.WithLabelValues(mode, "failed").Inc()
		return
	}
	m.runTotal.WithLabelValues(mode, "completed").Inc()
	m.groupsLastRun.WithLabelValues(string(scheduler.GroupScheduled)).Set(float64(report.ScheduledGroups))
	m.groupsLastRun.WithLabelValues(string(scheduler.GroupUnassigned)).Set(float64(report.PlaceholderGroups))
	m.groupsLastRun.WithLabelValues(string(scheduler.GroupPending)).Set(float64(report.PendingGroups))
	for tier, n := range report.TierCounts {
		m.tierTotal.WithLabelValues(tier).Add(float64(n))
	}
	m.qualityLastRun.Set(report.OverallQuality)
}

// SetQueueDepth publishes the number of runs waiting for a worker.
func (m *MetricsService) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// RecordImport counts rows accepted from an upload.
func (m *MetricsService) RecordImport(kind string, rows int) {
	if m == nil {
		return
	}
	m.importRows.WithLabelValues(kind).Add(float64(rows))
}

// RecordExport counts a rendered download.
func (m *MetricsService) RecordExport(format string) {
	if m == nil {
		return
	}
	m.exportTotal.WithLabelValues(format).Inc()
}
