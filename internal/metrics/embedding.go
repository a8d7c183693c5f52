package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Embedding Prometheus metrics.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clinicrag",
			Name:      "embedding_requests_total",
			Help:      "Embedding provider calls, one per chunk",
		},
		[]string{"provider", "model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clinicrag",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding provider call duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider", "model"},
	)

	EmbeddingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clinicrag",
			Name:      "embedding_tokens_total",
			Help:      "Embedding tokens billed by the provider",
		},
		[]string{"provider", "model", "type"},
	)

	EmbeddingErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clinicrag",
			Name:      "embedding_errors_total",
			Help:      "Total embedding errors",
		},
		[]string{"provider", "model", "error_type"},
	)

	EmbeddingBatchSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clinicrag",
			Name:      "embedding_batch_size",
			Help:      "Number of texts per embedding call sent to the provider",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
		},
		[]string{"provider"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clinicrag",
			Name:      "embedding_cache_total",
			Help:      "Embedding cache lookups per text",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var registerEmbedding sync.Once

// RegisterEmbeddingMetrics registers the embedding collectors with the default registry.
// Safe to call more than once.
func RegisterEmbeddingMetrics() {
	registerEmbedding.Do(func() {
		prometheus.MustRegister(
			EmbeddingRequestsTotal,
			EmbeddingRequestDuration,
			EmbeddingTokensTotal,
			EmbeddingErrorsTotal,
			EmbeddingBatchSize,
			EmbeddingCacheTotal,
		)
	})
}
