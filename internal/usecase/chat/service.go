package chat

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/clinicrag/internal/domain"
	"github.com/kailas-cloud/clinicrag/internal/domain/search/request"
	"github.com/kailas-cloud/clinicrag/internal/domain/search/result"
	"github.com/kailas-cloud/clinicrag/internal/domain/transcript"
	"github.com/kailas-cloud/clinicrag/internal/logger"
	"github.com/kailas-cloud/clinicrag/internal/metrics"
)

// Answer is the outcome of one chat question.
type Answer struct {
	Response string
	Results  result.Set
}

// Service answers clinic questions: retrieve, prompt, generate, persist.
type Service struct {
	retriever Retriever
	generator Generator
	history   HistoryStore
	intro     string
}

// New creates a chat Service. history can be nil to disable transcript persistence.
func New(r Retriever, g Generator, h HistoryStore, intro string) *Service {
	return &Service{retriever: r, generator: g, history: h, intro: intro}
}

// Ask answers q. Retrieval failures wrap domain.ErrRetrieval and generation failures
// wrap domain.ErrGeneration; no fallback text is produced.
// A transcript that cannot be saved is logged and does not fail the answer.
func (s *Service) Ask(ctx context.Context, q request.Request) (Answer, error) {
	ctx = logger.WithFields(ctx, zap.Int("top_k", q.TopK()))
	log := logger.FromContext(ctx)
	start := time.Now()

	set, err := s.retriever.Retrieve(ctx, q.Query(), q.TopK())
	if err != nil {
		metrics.ChatRequestsTotal.WithLabelValues("retrieval_error").Inc()
		return Answer{}, fmt.Errorf("retrieve: %w", err)
	}

	prompt, err := RenderPrompt(s.intro, q.Query(), set)
	if err != nil {
		metrics.ChatRequestsTotal.WithLabelValues("generation_error").Inc()
		return Answer{}, fmt.Errorf("%w: %w", domain.ErrGeneration, err)
	}

	raw, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		metrics.ChatRequestsTotal.WithLabelValues("generation_error").Inc()
		return Answer{}, fmt.Errorf("generate: %w", err)
	}
	response := ExtractResponse(raw)
	if response == "" {
		metrics.ChatRequestsTotal.WithLabelValues("generation_error").Inc()
		return Answer{}, fmt.Errorf("model returned an empty answer: %w", domain.ErrGeneration)
	}

	if s.history != nil {
		if _, err := s.history.Save(ctx, q.Query(), response); err != nil {
			log.Warn("Failed to save chat transcript", zap.Error(err))
		}
	}

	metrics.ChatRequestsTotal.WithLabelValues("ok").Inc()
	log.Info("Question answered",
		zap.Int("matches", set.Total()),
		zap.Int("prompt_bytes", len(prompt)),
		zap.Duration("duration", time.Since(start)),
	)
	return Answer{Response: response, Results: set}, nil
}

// History returns up to limit recent transcripts, newest first.
// Without a history store it returns an empty list.
func (s *Service) History(ctx context.Context, limit int) ([]transcript.Transcript, error) {
	if s.history == nil {
		return []transcript.Transcript{}, nil
	}
	entries, err := s.history.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("recent transcripts: %w", err)
	}
	return entries, nil
}
