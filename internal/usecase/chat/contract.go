package chat

import (
	"context"

	"github.com/kailas-cloud/clinicrag/internal/domain/search/result"
	"github.com/kailas-cloud/clinicrag/internal/domain/transcript"
)

// Retriever returns the per-category matches for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) (result.Set, error)
}

// Generator completes a rendered prompt with a language model.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// HistoryStore persists answered questions.
type HistoryStore interface {
	Save(ctx context.Context, query, response string) (transcript.Transcript, error)
	Recent(ctx context.Context, limit int) ([]transcript.Transcript, error)
}
