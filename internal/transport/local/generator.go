package local

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"go.uber.org/zap"

	"github.com/kailas-cloud/clinicrag/internal/domain"
)

// GeneratorConfig holds local text generation settings.
type GeneratorConfig struct {
	Config
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// Generator completes prompts with a locally served chat model.
type Generator struct {
	llm     llms.Model
	model   string
	opts    []llms.CallOption
	timeout time.Duration
	logger  *zap.Logger
}

// NewGenerator creates a local generator. A missing model is a configuration error.
func NewGenerator(cfg *GeneratorConfig) (*Generator, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("local generation model is required: %w", domain.ErrConfiguration)
	}

	llm, err := ollama.New(
		ollama.WithServerURL(cfg.serverURL()),
		ollama.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("ollama client: %w: %w", domain.ErrConfiguration, err)
	}

	var opts []llms.CallOption
	if cfg.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(cfg.Temperature))
	}
	if cfg.TopP > 0 {
		opts = append(opts, llms.WithTopP(cfg.TopP))
	}
	if cfg.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(cfg.MaxTokens))
	}

	return &Generator{
		llm:     llm,
		model:   cfg.Model,
		opts:    opts,
		timeout: cfg.timeout(),
		logger:  cfg.Logger,
	}, nil
}

// Generate returns the model completion for prompt.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	out, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt, g.opts...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("local generation timed out: %w: %w", domain.ErrGeneration, err)
		}
		return "", fmt.Errorf("local generation: %w: %w", domain.ErrGeneration, err)
	}

	g.logger.Debug("Local generation finished",
		zap.String("model", g.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("response_len", len(out)),
	)
	return out, nil
}
