package health

import (
	"context"

	"github.com/kailas-cloud/clinicrag/internal/usecase/retrieval"
)

// Pinger checks availability of a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// IndexReporter reports the state of every category index.
type IndexReporter interface {
	Status() []retrieval.Status
}
