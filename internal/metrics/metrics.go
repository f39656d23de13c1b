// Package metrics exposes Prometheus collectors for the crawl sync service.
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
	crawlSubmissionsTotal      *prometheus.CounterVec
	crawlPagesFetchedTotal     prometheus.Counter
	crawlDocumentsTotal        prometheus.Counter
	crawlChunksTotal           prometheus.Counter
	crawlSyncRunsTotal         *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlSubmissionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawl_submissions_total",
				Help: "Total number of crawl submissions, labeled by mode.",
			},
			[]string{"mode"},
		)

		crawlPagesFetchedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawl_pages_fetched_total",
				Help: "Total number of result pages fetched from the provider.",
			},
		)

		crawlDocumentsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawl_documents_total",
				Help: "Total number of crawled documents processed.",
			},
		)

		crawlChunksTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawl_chunks_total",
				Help: "Total number of chunks produced by segmentation.",
			},
		)

		crawlSyncRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawl_sync_runs_total",
				Help: "Total number of per-request sync runs, labeled by outcome.",
			},
			[]string{"outcome"},
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

// ObserveSubmission increments the submission counter for the given mode,
// "provider" or "feed".
func ObserveSubmission(mode string) {
	crawlSubmissionsTotal.WithLabelValues(mode).Inc()
}

// ObservePagesFetched adds to the fetched result page counter.
func ObservePagesFetched(n int) {
	crawlPagesFetchedTotal.Add(float64(n))
}

// ObserveDocuments adds to the processed document counter.
func ObserveDocuments(n int) {
	crawlDocumentsTotal.Add(float64(n))
}

// ObserveChunks adds to the produced chunk counter.
func ObserveChunks(n int) {
	crawlChunksTotal.Add(float64(n))
}

// ObserveSyncRun increments the sync run counter for the given outcome.
func ObserveSyncRun(outcome string) {
	crawlSyncRunsTotal.WithLabelValues(outcome).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
