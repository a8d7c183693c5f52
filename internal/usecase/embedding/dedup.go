package embedding

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/clinicrag/internal/domain"
)

// DedupEmbedder collapses concurrent single-text calls for the same text into one inner call.
// The retrievers of one request all embed the same query; only one of them reaches the provider.
// Multi-text calls pass through unchanged.
//
// The shared call is detached from every caller's cancellation: a caller that gives up
// returns its own context error and leaves the flight running for the others. Token usage
// is charged to each caller's request.
type DedupEmbedder struct {
	inner domain.Embedder
	group singleflight.Group
}

// NewDedupEmbedder wraps inner.
func NewDedupEmbedder(inner domain.Embedder) *DedupEmbedder {
	return &DedupEmbedder{inner: inner}
}

// Embed implements domain.Embedder.
func (d *DedupEmbedder) Embed(ctx context.Context, texts []string) (domain.EmbeddingResult, error) {
	if len(texts) != 1 {
		return d.inner.Embed(ctx, texts)
	}

	ch := d.group.DoChan(texts[0], func() (any, error) {
		// Providers bound each call with their own timeout.
		shared, _ := domain.NewContextWithUsage(context.WithoutCancel(ctx))
		return d.inner.Embed(shared, texts)
	})

	select {
	case <-ctx.Done():
		return domain.EmbeddingResult{}, fmt.Errorf("embed query: %w", ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return domain.EmbeddingResult{}, r.Err
		}
		res, ok := r.Val.(domain.EmbeddingResult)
		if !ok {
			return domain.EmbeddingResult{}, fmt.Errorf("unexpected shared result %T: %w", r.Val, domain.ErrEncoding)
		}
		domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)
		return res, nil
	}
}
