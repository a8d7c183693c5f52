package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/clinicrag/internal/domain"
	"github.com/kailas-cloud/clinicrag/internal/metrics"
)

// DefaultTimeout bounds a single provider request when Config.Timeout is unset.
const DefaultTimeout = 30 * time.Second

// Embedder is an embedding provider using the OpenAI-compatible API (OpenAI, Nebius, vLLM).
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	user       string
	provider   string
	timeout    time.Duration
	logger     *zap.Logger
}

// Config holds the provider settings shared by the embedder and the generator.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	User       string
	Provider   string
	Timeout    time.Duration
	Logger     *zap.Logger
}

func newClient(cfg *Config) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientCfg)
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultTimeout
	}
	return d
}

// NewEmbedder creates an OpenAI-compatible embedding provider.
func NewEmbedder(cfg *Config) *Embedder {
	return &Embedder{
		client:     newClient(cfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		user:       cfg.User,
		provider:   cfg.Provider,
		timeout:    timeoutOrDefault(cfg.Timeout),
		logger:     cfg.Logger,
	}
}

// Embed implements domain.Embedder with one API request for all texts.
// The response is reordered by its index field so vectors line up with the inputs.
func (e *Embedder) Embed(ctx context.Context, texts []string) (domain.EmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.EmbeddingResult{}, nil
	}
	if e.model == "" {
		return domain.EmbeddingResult{}, fmt.Errorf("no embedding model configured: %w", domain.ErrConfiguration)
	}
	if err := domain.ValidateTexts(texts); err != nil {
		return domain.EmbeddingResult{}, err
	}

	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           e.user,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()

	resp, err := e.client.CreateEmbeddings(ctx, req)

	duration := time.Since(start)
	metrics.EmbeddingBatchSize.WithLabelValues(e.provider).Observe(float64(len(texts)))

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, string(e.model), "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, string(e.model), errorType(err)).Inc()
		return domain.EmbeddingResult{}, parseAPIError(err)
	}

	embeddings, err := orderByIndex(resp.Data, len(texts))
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, string(e.model), "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, string(e.model), "bad_response").Inc()
		return domain.EmbeddingResult{}, err
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, string(e.model), "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.provider, string(e.model)).Observe(duration.Seconds())

	totalTokens := resp.Usage.TotalTokens
	promptTokens := resp.Usage.PromptTokens
	if totalTokens > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, string(e.model), "prompt").Add(float64(promptTokens))
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, string(e.model), "total").Add(float64(totalTokens))
	}

	return domain.EmbeddingResult{
		Embeddings:   embeddings,
		PromptTokens: promptTokens,
		TotalTokens:  totalTokens,
	}, nil
}

// orderByIndex places every returned vector at its input position.
func orderByIndex(data []openai.Embedding, want int) ([][]float32, error) {
	if len(data) != want {
		return nil, fmt.Errorf("expected %d embeddings, got %d: %w", want, len(data), domain.ErrEncoding)
	}
	out := make([][]float32, want)
	for _, d := range data {
		if d.Index < 0 || d.Index >= want || out[d.Index] != nil {
			return nil, fmt.Errorf("invalid embedding index %d: %w", d.Index, domain.ErrEncoding)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Embedder) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// Provider returns the configured provider name.
func (e *Embedder) Provider() string { return e.provider }

// Model returns the embedding model name.
func (e *Embedder) Model() string { return string(e.model) }

func errorType(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "api_error"
}

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with domain.ErrEncoding; timeouts and cancellations keep the context error.
func parseAPIError(err error) error {
	wrap := domain.ErrEncoding

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("embedding request timed out: %w: %w", wrap, context.DeadlineExceeded)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("embedding request canceled: %w: %w", wrap, context.Canceled)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return fmt.Errorf("embedding API error %d: %s: %w", reqErr.HTTPStatusCode, detail, wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("embedding request failed: %w", wrap)
}

// extractDetail extracts the "detail" field from a JSON error body (Nebius error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
