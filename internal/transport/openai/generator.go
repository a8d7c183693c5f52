package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/clinicrag/internal/domain"
)

// Generator completes prompts with an OpenAI-compatible chat model.
type Generator struct {
	client      *openai.Client
	model       string
	temperature float32
	topP        float32
	maxTokens   int
	timeout     time.Duration
	logger      *zap.Logger
}

// GeneratorConfig holds chat completion settings.
type GeneratorConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	TopP        float32
	MaxTokens   int
	Timeout     time.Duration
	Logger      *zap.Logger
}

// NewGenerator creates a chat completion generator.
func NewGenerator(cfg *GeneratorConfig) *Generator {
	return &Generator{
		client:      newClient(&Config{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL}),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
		maxTokens:   cfg.MaxTokens,
		timeout:     timeoutOrDefault(cfg.Timeout),
		logger:      cfg.Logger,
	}
}

// Generate sends prompt as a single user message and returns the first choice.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.model == "" {
		return "", fmt.Errorf("no generation model configured: %w", domain.ErrConfiguration)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		Temperature: g.temperature,
		TopP:        g.topP,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("chat completion timed out: %w: %w", domain.ErrGeneration, err)
		}
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("chat API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, domain.ErrGeneration)
		}
		return "", fmt.Errorf("chat completion: %w: %w", domain.ErrGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty chat completion: %w", domain.ErrGeneration)
	}

	g.logger.Debug("Chat completion finished",
		zap.String("model", g.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return resp.Choices[0].Message.Content, nil
}
