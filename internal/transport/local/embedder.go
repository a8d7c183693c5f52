// Package local runs embeddings and generation against a model served on the host by Ollama.
package local

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"go.uber.org/zap"

	"github.com/kailas-cloud/clinicrag/internal/domain"
	"github.com/kailas-cloud/clinicrag/internal/metrics"
)

// DefaultServerURL is the address Ollama listens on by default.
const DefaultServerURL = "http://localhost:11434"

// DefaultTimeout bounds a single embed or generate call when Config.Timeout is unset.
const DefaultTimeout = 60 * time.Second

// healthTTL is how long a health check result is reused before the model is asked again.
const healthTTL = 30 * time.Second

// Config holds the local model settings.
type Config struct {
	ServerURL string
	Model     string
	BatchSize int
	Timeout   time.Duration
	Logger    *zap.Logger
}

func (c *Config) serverURL() string {
	if c.ServerURL == "" {
		return DefaultServerURL
	}
	return c.ServerURL
}

func (c *Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

// Embedder implements domain.Embedder over a locally served embedding model.
type Embedder struct {
	embedder embeddings.Embedder
	model    string
	timeout  time.Duration
	logger   *zap.Logger

	healthMu  sync.Mutex
	healthTTL time.Duration
	checkedAt time.Time
	healthErr error
}

// NewEmbedder creates a local embedder. A missing model is a configuration error.
func NewEmbedder(cfg *Config) (*Embedder, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("local embedding model is required: %w", domain.ErrConfiguration)
	}

	llm, err := ollama.New(
		ollama.WithServerURL(cfg.serverURL()),
		ollama.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("ollama client: %w: %w", domain.ErrConfiguration, err)
	}

	opts := []embeddings.Option{embeddings.WithStripNewLines(true)}
	if cfg.BatchSize > 0 {
		opts = append(opts, embeddings.WithBatchSize(cfg.BatchSize))
	}
	emb, err := embeddings.NewEmbedder(llm, opts...)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w: %w", domain.ErrConfiguration, err)
	}

	return &Embedder{
		embedder: emb,
		model:    cfg.Model,
		timeout:   cfg.timeout(),
		logger:    cfg.Logger,
		healthTTL: healthTTL,
	}, nil
}

// Embed implements domain.Embedder. Local models report no token usage.
func (e *Embedder) Embed(ctx context.Context, texts []string) (domain.EmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.EmbeddingResult{}, nil
	}
	if e == nil || e.embedder == nil {
		return domain.EmbeddingResult{}, fmt.Errorf("no local model loaded: %w", domain.ErrConfiguration)
	}
	if err := domain.ValidateTexts(texts); err != nil {
		return domain.EmbeddingResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	duration := time.Since(start)
	metrics.EmbeddingBatchSize.WithLabelValues("local").Observe(float64(len(texts)))

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues("local", e.model, "error").Inc()
		if errors.Is(err, context.DeadlineExceeded) {
			metrics.EmbeddingErrorsTotal.WithLabelValues("local", e.model, "timeout").Inc()
			return domain.EmbeddingResult{}, fmt.Errorf("local embedding timed out: %w: %w", domain.ErrEncoding, err)
		}
		metrics.EmbeddingErrorsTotal.WithLabelValues("local", e.model, "model_error").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("local embedding: %w: %w", domain.ErrEncoding, err)
	}

	res := domain.EmbeddingResult{Embeddings: vectors}
	if err = domain.CheckCount(res, len(texts)); err != nil {
		metrics.EmbeddingErrorsTotal.WithLabelValues("local", e.model, "bad_response").Inc()
		return domain.EmbeddingResult{}, err
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues("local", e.model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues("local", e.model).Observe(duration.Seconds())
	return res, nil
}

// HealthCheck embeds a short text to confirm the model is loaded and answering.
// The outcome, success or failure, is reused for healthTTL so frequent /health
// polling does not keep the model busy.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if e == nil {
		return fmt.Errorf("no local model loaded: %w", domain.ErrConfiguration)
	}
	e.healthMu.Lock()
	defer e.healthMu.Unlock()

	if !e.checkedAt.IsZero() && time.Since(e.checkedAt) < e.healthTTL {
		return e.healthErr
	}

	e.healthErr = nil
	if _, err := e.Embed(ctx, []string{"ping"}); err != nil {
		e.healthErr = fmt.Errorf("local model check: %w", err)
	}
	e.checkedAt = time.Now()
	return e.healthErr
}
