package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Retrieval and chat Prometheus metrics.
var (
	RetrievalQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clinicrag",
			Name:      "retrieval_query_duration_seconds",
			Help:      "Per-category query duration in seconds, embedding included",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"category"},
	)

	RetrievalResults = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clinicrag",
			Name:      "retrieval_results",
			Help:      "Number of matches returned per category query",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 25, 50, 100},
		},
		[]string{"category"},
	)

	RetrievalErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clinicrag",
			Name:      "retrieval_errors_total",
			Help:      "Per-category query failures",
		},
		[]string{"category", "error_type"}, // "empty" / "not_built" / "failed"
	)

	IndexSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "clinicrag",
			Name:      "index_size",
			Help:      "Number of records in the current category index",
		},
		[]string{"category"},
	)

	IndexBuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clinicrag",
			Name:      "index_builds_total",
			Help:      "Category index builds",
		},
		[]string{"category", "status"},
	)

	ChatRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clinicrag",
			Name:      "chat_requests_total",
			Help:      "Chat questions answered",
		},
		[]string{"status"},
	)
)

var registerRetrieval sync.Once

// RegisterRetrievalMetrics registers retrieval and chat collectors. Safe to call more than once.
func RegisterRetrievalMetrics() {
	registerRetrieval.Do(func() {
		prometheus.MustRegister(
			RetrievalQueryDuration,
			RetrievalResults,
			RetrievalErrorsTotal,
			IndexSize,
			IndexBuildsTotal,
			ChatRequestsTotal,
		)
	})
}
