// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsrec_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "newsrec_api_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "newsrec_api_active_requests",
			Help: "Number of requests currently being served",
		},
	)

	IndexQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "newsrec_index_query_duration_seconds",
			Help:    "Nearest-neighbor query latency in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"index"},
	)

	CorpusArticles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "newsrec_corpus_articles",
			Help: "Number of articles loaded at startup",
		},
	)

	CorpusDimension = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "newsrec_corpus_embedding_dimension",
			Help: "Embedding dimensionality of the loaded corpus",
		},
	)

	FeedbackWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsrec_feedback_writes_total",
			Help: "Feedback submissions by store and outcome",
		},
		[]string{"store", "outcome"}, // outcome: stored, unavailable, error
	)

	FeedbackStoreUp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "newsrec_feedback_store_up",
			Help: "1 when a feedback store connection was established at startup",
		},
	)
)

// RecordAPIRequest records a completed request.
func RecordAPIRequest(method, route string, status int, d time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// TrackActiveRequest moves the in-flight gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordQuery records one index query.
func RecordQuery(index string, d time.Duration) {
	IndexQueryDuration.WithLabelValues(index).Observe(d.Seconds())
}

// SetCorpus records the size of the loaded corpus.
func SetCorpus(articles, dim int) {
	CorpusArticles.Set(float64(articles))
	CorpusDimension.Set(float64(dim))
}

// RecordFeedback counts a feedback submission outcome.
func RecordFeedback(store, outcome string) {
	FeedbackWrites.WithLabelValues(store, outcome).Inc()
}

// SetFeedbackStoreUp records whether feedback can be persisted.
func SetFeedbackStoreUp(up bool) {
	if up {
		FeedbackStoreUp.Set(1)
	} else {
		FeedbackStoreUp.Set(0)
	}
}
