// Package metrics exposes Prometheus collectors for the review crawler.
package metrics

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome and status label values.
const (
	OutcomeSuccess    = "success"
	OutcomeFetchError = "fetch_error"
	OutcomeParseError = "parse_error"

	StatusSucceeded = "succeeded"
	StatusExhausted = "exhausted"
	StatusCanceled  = "canceled"

	FlushOK     = "ok"
	FlushFailed = "failed"
)

var (
	fetchAttemptsTotal     *prometheus.CounterVec
	unitsTotal             *prometheus.CounterVec
	recordsWrittenTotal    *prometheus.CounterVec
	duplicatesDroppedTotal *prometheus.CounterVec
	flushesTotal           *prometheus.CounterVec
	mirrorFailuresTotal    *prometheus.CounterVec
	activeWorkers          prometheus.Gauge
	rateLimitDelaysSeconds *prometheus.HistogramVec
	fetchDurationSeconds   *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_fetch_attempts_total",
				Help: "Total number of fetch attempts, labeled by unit kind and outcome.",
			},
			[]string{"kind", "outcome"},
		)

		unitsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_units_total",
				Help: "Total number of finished work units, labeled by kind and terminal status.",
			},
			[]string{"kind", "status"},
		)

		recordsWrittenTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_records_written_total",
				Help: "Total number of records flushed to durable storage, labeled by kind.",
			},
			[]string{"kind"},
		)

		duplicatesDroppedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_duplicates_dropped_total",
				Help: "Total number of records dropped because their name was already seen.",
			},
			[]string{"kind"},
		)

		flushesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_flushes_total",
				Help: "Total number of pipeline flushes, labeled by status.",
			},
			[]string{"status"},
		)

		mirrorFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_mirror_failures_total",
				Help: "Total number of flushed batches that reached the primary table but not every mirror.",
			},
			[]string{"kind"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_active_workers",
				Help: "Number of workers currently running a unit.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawler_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawler_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies, labeled by fetcher.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"fetcher"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAttempt counts one fetch attempt.
func ObserveAttempt(kind, outcome string) {
	Init()
	fetchAttemptsTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveUnit counts one finished unit.
func ObserveUnit(kind, status string) {
	Init()
	unitsTotal.WithLabelValues(kind, status).Inc()
}

// ObserveFlush counts one flush and the records it wrote.
func ObserveFlush(kind string, written int, err error) {
	Init()
	if err != nil {
		flushesTotal.WithLabelValues(FlushFailed).Inc()
		return
	}
	flushesTotal.WithLabelValues(FlushOK).Inc()
	if written > 0 {
		recordsWrittenTotal.WithLabelValues(kind).Add(float64(written))
	}
}

// ObserveMirrorFailure counts one batch a mirror table rejected.
func ObserveMirrorFailure(kind string) {
	Init()
	mirrorFailuresTotal.WithLabelValues(kind).Inc()
}

// ObserveDuplicate counts one dropped duplicate.
func ObserveDuplicate(kind string) {
	Init()
	duplicatesDroppedTotal.WithLabelValues(kind).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(rawURL string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(SanitizeSite(rawURL)).Observe(duration.Seconds())
}

// ObserveFetchDuration records how long one fetch took.
func ObserveFetchDuration(fetcher string, duration time.Duration) {
	Init()
	fetchDurationSeconds.WithLabelValues(fetcher).Observe(duration.Seconds())
}
