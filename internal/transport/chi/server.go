package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/clinicrag/internal/domain"
	"github.com/kailas-cloud/clinicrag/internal/domain/search/request"
	"github.com/kailas-cloud/clinicrag/internal/domain/search/result"
	"github.com/kailas-cloud/clinicrag/internal/domain/transcript"
	"github.com/kailas-cloud/clinicrag/internal/metrics"
	"github.com/kailas-cloud/clinicrag/internal/usecase/chat"
	healthuc "github.com/kailas-cloud/clinicrag/internal/usecase/health"
)

const (
	maxBodyBytes        = 64 << 10
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// ChatService answers questions and lists past transcripts.
type ChatService interface {
	Ask(ctx context.Context, q request.Request) (chat.Answer, error)
	History(ctx context.Context, limit int) ([]transcript.Transcript, error)
}

// Retriever returns raw per-category matches.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) (result.Set, error)
}

// Refresher reloads the catalog and rebuilds the indexes.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Config holds request defaults for the API server.
type Config struct {
	DefaultTopK    int
	RequestTimeout time.Duration
	APIKeys        []string
}

// Server serves the clinicrag HTTP API.
type Server struct {
	chat          ChatService
	retriever     Retriever
	refresher     Refresher
	health        HealthChecker
	cfg           Config
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	chatSvc ChatService,
	retriever Retriever,
	refresher Refresher,
	health HealthChecker,
	cfg Config,
	logger *zap.Logger,
) *Server {
	s := &Server{
		chat:      chatSvc,
		retriever: retriever,
		refresher: refresher,
		health:    health,
		cfg:       cfg,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, ErrorCodeInvalidQuery),
		sentinelHandler(context.DeadlineExceeded, http.StatusGatewayTimeout, ErrorCodeTimeout),
		sentinelHandler(domain.ErrEncoding, http.StatusBadGateway, ErrorCodeEmbeddingProvider),
		sentinelHandler(domain.ErrGeneration, http.StatusBadGateway, ErrorCodeGenerationFailed),
		sentinelHandler(domain.ErrRetrieval, http.StatusBadGateway, ErrorCodeRetrievalFailed),
		sentinelHandler(domain.ErrSchema, http.StatusInternalServerError, ErrorCodeSchema),
		sentinelHandler(domain.ErrConfiguration, http.StatusInternalServerError, ErrorCodeConfiguration),
	}
	return s
}

// Router builds the chi router with the full middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(s.cfg.APIKeys))
	r.Use(metrics.Middleware())

	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/chat", s.Chat)
		r.Post("/retrieve", s.Retrieve)
		r.Get("/history", s.History)
		r.Post("/admin/refresh", s.Refresh)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrorCodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrorCodeBadRequest, "method not allowed")
	})
	return r
}

// Chat handles POST /api/v1/chat.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	q, err := request.New(req.Query, req.TopK, s.cfg.DefaultTopK)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	ctx, cancel := s.withTimeout(r.Context())
	defer cancel()
	ctx, usage := domain.NewContextWithUsage(ctx)

	ans, err := s.chat.Ask(ctx, q)
	setEmbeddingHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{Response: ans.Response})
}

// Retrieve handles POST /api/v1/retrieve.
func (s *Server) Retrieve(w http.ResponseWriter, r *http.Request) {
	var req RetrieveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	q, err := request.New(req.Query, req.TopK, s.cfg.DefaultTopK)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	ctx, cancel := s.withTimeout(r.Context())
	defer cancel()
	ctx, usage := domain.NewContextWithUsage(ctx)

	set, err := s.retriever.Retrieve(ctx, q.Query(), q.TopK())
	setEmbeddingHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, RetrieveResponse{Results: setToDTO(set)})
}

// History handles GET /api/v1/history?limit=N.
func (s *Server) History(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	entries, err := s.chat.History(r.Context(), limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]HistoryItem, len(entries))
	for i, e := range entries {
		items[i] = HistoryItem{ID: e.ID, Query: e.Query, Response: e.Response, CreatedAt: e.CreatedAt}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Items: items})
}

// Refresh handles POST /api/v1/admin/refresh.
func (s *Server) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := s.refresher.Refresh(r.Context()); err != nil {
		s.handleDomainError(w, err)
		return
	}
	report := s.health.Check(r.Context())
	writeJSON(w, http.StatusOK, RefreshResponse{Categories: categoriesToDTO(report.Categories)})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:     string(report.Status),
		Checks:     checks,
		Categories: categoriesToDTO(report.Categories),
	})
}

func (s *Server) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.RequestTimeout)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func setToDTO(set result.Set) map[string][]Match {
	out := make(map[string][]Match)
	for _, name := range set.Categories() {
		res, _ := set.Get(name)
		matches := res.Matches()
		dto := make([]Match, len(matches))
		for i, m := range matches {
			dto[i] = Match{Text: m.Text(), Score: m.Score(), Position: m.Position()}
		}
		out[name] = dto
	}
	return out
}

func categoriesToDTO(categories map[string]healthuc.Category) map[string]CategoryHealth {
	out := make(map[string]CategoryHealth, len(categories))
	for name, c := range categories {
		ch := CategoryHealth{Status: string(c.Result), Size: c.Size}
		if !c.BuiltAt.IsZero() {
			built := c.BuiltAt
			ch.BuiltAt = &built
		}
		out[name] = ch
	}
	return out
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if tokens, used := usage.Snapshot(); used {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(tokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
// Invalid queries keep their full message since it only describes the caller's input.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrInvalidQuery) {
		return err.Error()
	}
	sentinels := []error{
		context.DeadlineExceeded,
		domain.ErrEncoding,
		domain.ErrGeneration,
		domain.ErrRetrieval,
		domain.ErrSchema,
		domain.ErrConfiguration,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternal, "internal error")
}
