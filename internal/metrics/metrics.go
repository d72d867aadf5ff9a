// Package metrics exposes Prometheus collectors for the cityfeed service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ingestRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cityfeed_ingest_runs_total",
			Help: "Total number of ingestion runs, labeled by result.",
		},
		[]string{"result"},
	)

	ingestRunDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cityfeed_ingest_run_duration_seconds",
			Help:    "Histogram of full ingestion run durations.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		},
	)

	ingestArticlesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cityfeed_ingest_articles_total",
			Help: "Total number of articles upserted, labeled by source.",
		},
		[]string{"source"},
	)

	ingestFetchFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cityfeed_ingest_fetch_failures_total",
			Help: "Total fetch failures, labeled by source and stage.",
		},
		[]string{"source", "stage"},
	)

	ingestMediaTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cityfeed_ingest_media_total",
			Help: "Total media persistence attempts, labeled by result.",
		},
		[]string{"result"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cityfeed_http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cityfeed_http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)
)

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRun records a completed ingestion run.
func ObserveRun(ok bool, duration time.Duration) {
	ingestRunsTotal.WithLabelValues(resultLabel(ok)).Inc()
	ingestRunDurationSeconds.Observe(duration.Seconds())
}

// ObserveArticle increments the upserted-article counter for a source.
func ObserveArticle(source string) {
	ingestArticlesTotal.WithLabelValues(source).Inc()
}

// ObserveFetchFailure increments the fetch-failure counter. Stage is one of
// "listing", "detail", or "image".
func ObserveFetchFailure(source, stage string) {
	ingestFetchFailuresTotal.WithLabelValues(source, stage).Inc()
}

// ObserveMedia records one media persistence attempt.
func ObserveMedia(ok bool) {
	ingestMediaTotal.WithLabelValues(resultLabel(ok)).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method string, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

func resultLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
