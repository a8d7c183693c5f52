package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/clinicrag/internal/domain"
	"github.com/kailas-cloud/clinicrag/internal/domain/search/request"
	"github.com/kailas-cloud/clinicrag/internal/domain/search/result"
	"github.com/kailas-cloud/clinicrag/internal/domain/transcript"
	"github.com/kailas-cloud/clinicrag/internal/usecase/chat"
	healthuc "github.com/kailas-cloud/clinicrag/internal/usecase/health"
)

type mockChat struct {
	askFn     func(ctx context.Context, q request.Request) (chat.Answer, error)
	historyFn func(ctx context.Context, limit int) ([]transcript.Transcript, error)
	gotQuery  request.Request
	gotLimit  int
}

func (m *mockChat) Ask(ctx context.Context, q request.Request) (chat.Answer, error) {
	m.gotQuery = q
	if m.askFn != nil {
		return m.askFn(ctx, q)
	}
	return chat.Answer{Response: "ok"}, nil
}

func (m *mockChat) History(ctx context.Context, limit int) ([]transcript.Transcript, error) {
	m.gotLimit = limit
	if m.historyFn != nil {
		return m.historyFn(ctx, limit)
	}
	return []transcript.Transcript{}, nil
}

type mockRetriever struct {
	retrieveFn func(ctx context.Context, query string, k int) (result.Set, error)
}

func (m *mockRetriever) Retrieve(ctx context.Context, query string, k int) (result.Set, error) {
	if m.retrieveFn != nil {
		return m.retrieveFn(ctx, query, k)
	}
	return result.NewSet([]string{"services", "branches", "social_media"}), nil
}

type mockRefresher struct {
	err   error
	calls int
}

func (m *mockRefresher) Refresh(_ context.Context) error {
	m.calls++
	return m.err
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

func healthyReport() healthuc.Report {
	return healthuc.Report{
		Status: healthuc.Healthy,
		Checks: map[string]healthuc.CheckResult{"embedding": healthuc.CheckOK},
		Categories: map[string]healthuc.Category{
			"services":     {Result: healthuc.CheckOK, Size: 3, BuiltAt: time.Now()},
			"social_media": {Result: healthuc.CheckEmpty},
		},
	}
}

type testDeps struct {
	chat      *mockChat
	retriever *mockRetriever
	refresher *mockRefresher
	health    *mockHealth
}

func newTestServer(t *testing.T, cfg Config) (http.Handler, *testDeps) {
	t.Helper()
	deps := &testDeps{
		chat:      &mockChat{},
		retriever: &mockRetriever{},
		refresher: &mockRefresher{},
		health:    &mockHealth{report: healthyReport()},
	}
	if cfg.DefaultTopK == 0 {
		cfg.DefaultTopK = 5
	}
	s := NewServer(deps.chat, deps.retriever, deps.refresher, deps.health, cfg, zap.NewNop())
	return s.Router(), deps
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

// usageEmbed simulates an embedding call that records tokens on the request context.
func usageEmbed(ctx context.Context, tokens int) {
	domain.UsageFromContext(ctx).AddTokens(tokens)
}
