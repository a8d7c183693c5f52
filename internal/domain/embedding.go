package domain

import (
	"context"
	"fmt"
	"unicode/utf8"
)

// Embedder is the shared text vectorization contract between layers.
// One vector per input text, in input order. Embed(ctx, nil) returns an empty result.
type Embedder interface {
	Embed(ctx context.Context, texts []string) (EmbeddingResult, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vectors and token usage through the decorator chain.
type EmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// Dimensions returns the width of the first vector, 0 for an empty result.
func (r EmbeddingResult) Dimensions() int {
	if len(r.Embeddings) == 0 {
		return 0
	}
	return len(r.Embeddings[0])
}

// ValidateTexts rejects inputs that cannot be sent to an embedding backend.
func ValidateTexts(texts []string) error {
	for i, t := range texts {
		if !utf8.ValidString(t) {
			return fmt.Errorf("text [%d] is not valid UTF-8: %w", i, ErrEncoding)
		}
	}
	return nil
}

// CheckCount verifies a backend returned exactly one vector per input.
func CheckCount(res EmbeddingResult, want int) error {
	if len(res.Embeddings) != want {
		return fmt.Errorf("expected %d embeddings, got %d: %w", want, len(res.Embeddings), ErrEncoding)
	}
	return nil
}
