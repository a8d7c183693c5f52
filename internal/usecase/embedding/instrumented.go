package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/clinicrag/internal/domain"
)

// DefaultMaxAPIBatchSize is the largest number of texts sent to the provider in one call.
const DefaultMaxAPIBatchSize = 256

// InstrumentedEmbedder splits large batches, logs every call and records token usage on the
// request context. Transport metrics (requests, duration, tokens) are recorded by the providers.
type InstrumentedEmbedder struct {
	inner    domain.Embedder
	provider string
	model    string
	maxBatch int
	logger   *zap.Logger
}

// NewInstrumentedEmbedder wraps an embedder with chunking and observability.
// maxBatch <= 0 selects DefaultMaxAPIBatchSize.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string, maxBatch int, logger *zap.Logger,
) *InstrumentedEmbedder {
	if maxBatch <= 0 {
		maxBatch = DefaultMaxAPIBatchSize
	}
	return &InstrumentedEmbedder{
		inner:    inner,
		provider: provider,
		model:    model,
		maxBatch: maxBatch,
		logger:   logger,
	}
}

// Embed delegates chunk by chunk and concatenates the vectors in input order.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, texts []string) (domain.EmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.EmbeddingResult{}, nil
	}

	start := time.Now()

	result, err := p.embedChunked(ctx, texts)
	if err != nil {
		return domain.EmbeddingResult{}, err
	}

	domain.UsageFromContext(ctx).AddTokens(result.TotalTokens)

	p.logger.Debug("Embedding completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("batch_size", len(texts)),
		zap.Int("dimensions", result.Dimensions()),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

// embedChunked разбивает тексты на чанки по maxBatch.
func (p *InstrumentedEmbedder) embedChunked(
	ctx context.Context, texts []string,
) (domain.EmbeddingResult, error) {
	all := make([][]float32, 0, len(texts))
	var totalPrompt, totalTokens int

	for offset := 0; offset < len(texts); offset += p.maxBatch {
		end := min(offset+p.maxBatch, len(texts))
		chunk := texts[offset:end]

		res, err := p.inner.Embed(ctx, chunk)
		if err == nil {
			err = domain.CheckCount(res, len(chunk))
		}
		if err != nil {
			p.logger.Error("Embedding request failed",
				zap.String("provider", p.provider),
				zap.String("model", p.model),
				zap.Int("chunk_offset", offset),
				zap.Int("chunk_size", len(chunk)),
				zap.Error(err),
			)
			return domain.EmbeddingResult{}, fmt.Errorf("embed chunk at %d: %w", offset, err)
		}

		all = append(all, res.Embeddings...)
		totalPrompt += res.PromptTokens
		totalTokens += res.TotalTokens
	}

	return domain.EmbeddingResult{
		Embeddings:   all,
		PromptTokens: totalPrompt,
		TotalTokens:  totalTokens,
	}, nil
}
