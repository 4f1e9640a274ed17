// Package metrics registers ocrdesk's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingestion outcomes.
const (
	OutcomeStored  = "stored"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Summarization outcomes.
const (
	SummaryOK          = "ok"
	SummaryUnavailable = "unavailable"
	SummaryFailed      = "failed"
)

var (
	ingestFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocrdesk_ingest_files_total",
			Help: "Files processed by the ingestion pipeline, by outcome.",
		},
		[]string{"outcome"},
	)

	summariesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocrdesk_summaries_total",
			Help: "Summary generation attempts, by outcome.",
		},
		[]string{"outcome"},
	)

	summarizeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ocrdesk_summarize_duration_seconds",
			Help:    "Wall time of a full document summarization including retries.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
		},
	)

	// HTTPRequestsTotal counts HTTP requests by route pattern.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocrdesk_http_requests_total",
			Help: "HTTP requests served, by method, route, and status.",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration observes request latency by route pattern.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ocrdesk_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// ObserveIngest records one file's pipeline outcome.
func ObserveIngest(outcome string) {
	ingestFilesTotal.WithLabelValues(outcome).Inc()
}

// ObserveSummary records a summarization outcome and, on success, its duration.
func ObserveSummary(outcome string, elapsed time.Duration) {
	summariesTotal.WithLabelValues(outcome).Inc()
	if outcome == SummaryOK {
		summarizeDuration.Observe(elapsed.Seconds())
	}
}
