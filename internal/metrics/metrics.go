// Package metrics exposes Prometheus collectors for the scraping service.
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

var (
	scrapeCacheLookupsTotal    *prometheus.CounterVec
	scrapeRunsTotal            *prometheus.CounterVec
	scrapeRunDurationSeconds   *prometheus.HistogramVec
	scrapeJobsTotal            *prometheus.CounterVec
	scrapeJobsActive           prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		scrapeCacheLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrape_cache_lookups_total",
				Help: "Total number of profile cache lookups, labeled by result.",
			},
			[]string{"result"},
		)

		scrapeRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrape_runs_total",
				Help: "Total number of actor runs, labeled by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		)

		scrapeRunDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scrape_run_duration_seconds",
				Help:    "Histogram of actor run durations, labeled by kind.",
				Buckets: []float64{5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"kind"},
		)

		scrapeJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrape_jobs_total",
				Help: "Total number of finished jobs, labeled by kind and status.",
			},
			[]string{"kind", "status"},
		)

		scrapeJobsActive = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scrape_jobs_active",
				Help: "Number of jobs currently being processed.",
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

// ObserveCacheLookups adds a batch of profile cache lookup results.
func ObserveCacheLookups(hits, misses int) {
	if hits > 0 {
		scrapeCacheLookupsTotal.WithLabelValues("hit").Add(float64(hits))
	}
	if misses > 0 {
		scrapeCacheLookupsTotal.WithLabelValues("miss").Add(float64(misses))
	}
}

// ObserveRun records one actor run with its outcome and duration.
func ObserveRun(kind, outcome string, duration time.Duration) {
	scrapeRunsTotal.WithLabelValues(kind, outcome).Inc()
	scrapeRunDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
}

// ObserveJob increments the finished job counter for the given kind and status.
func ObserveJob(kind, status string) {
	scrapeJobsTotal.WithLabelValues(kind, status).Inc()
}

// IncActiveJobs increments the active jobs gauge.
func IncActiveJobs() {
	scrapeJobsActive.Inc()
}

// DecActiveJobs decrements the active jobs gauge.
func DecActiveJobs() {
	scrapeJobsActive.Dec()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
