// Package metrics exposes Prometheus collectors for the audit service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Label values for audit metrics.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
	LookupHit     = "hit"
	LookupMiss    = "miss"
	LookupRunning = "running"
)

var (
	auditJobsTotal             *prometheus.CounterVec
	auditPagesTotal            *prometheus.CounterVec
	auditCacheLookupsTotal     *prometheus.CounterVec
	auditRunningJobs           prometheus.Gauge
	auditJobDurationSeconds    prometheus.Histogram
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		auditJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_jobs_total",
				Help: "Total number of finished audit jobs, labeled by terminal status.",
			},
			[]string{"status"},
		)

		auditPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_pages_total",
				Help: "Total number of per-page audits, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		auditCacheLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_cache_lookups_total",
				Help: "Total number of result cache lookups, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		auditRunningJobs = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "audit_running_jobs",
				Help: "Number of audit jobs currently holding a lease.",
			},
		)

		auditJobDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "audit_job_duration_seconds",
				Help:    "Histogram of wall-clock audit job durations.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveJob increments the finished-job counter for the given status.
func ObserveJob(status string) {
	auditJobsTotal.WithLabelValues(status).Inc()
}

// ObservePage increments the per-page audit counter.
func ObservePage(outcome string) {
	auditPagesTotal.WithLabelValues(outcome).Inc()
}

// ObserveCacheLookup increments the cache lookup counter.
func ObserveCacheLookup(outcome string) {
	auditCacheLookupsTotal.WithLabelValues(outcome).Inc()
}

// IncRunningJobs increments the in-flight jobs gauge.
func IncRunningJobs() {
	auditRunningJobs.Inc()
}

// DecRunningJobs decrements the in-flight jobs gauge.
func DecRunningJobs() {
	auditRunningJobs.Dec()
}

// ObserveJobDuration records the wall-clock duration of a finished job.
func ObserveJobDuration(duration time.Duration) {
	auditJobDurationSeconds.Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
