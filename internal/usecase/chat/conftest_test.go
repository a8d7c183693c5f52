package chat

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/clinicrag/internal/domain/search/request"
	"github.com/kailas-cloud/clinicrag/internal/domain/search/result"
	"github.com/kailas-cloud/clinicrag/internal/domain/transcript"
)

type mockRetriever struct {
	retrieveFn func(ctx context.Context, query string, k int) (result.Set, error)
	gotK       int
}

func (m *mockRetriever) Retrieve(ctx context.Context, query string, k int) (result.Set, error) {
	m.gotK = k
	if m.retrieveFn != nil {
		return m.retrieveFn(ctx, query, k)
	}
	return result.NewSet([]string{"services", "branches", "social_media"}), nil
}

type mockGenerator struct {
	response string
	err      error
	prompt   string
}

func (m *mockGenerator) Generate(_ context.Context, prompt string) (string, error) {
	m.prompt = prompt
	return m.response, m.err
}

type mockHistory struct {
	saved   []transcript.Transcript
	saveErr error
	recent  []transcript.Transcript
}

func (m *mockHistory) Save(_ context.Context, query, response string) (transcript.Transcript, error) {
	if m.saveErr != nil {
		return transcript.Transcript{}, m.saveErr
	}
	t := transcript.Transcript{ID: int64(len(m.saved) + 1), Query: query, Response: response, CreatedAt: time.Now()}
	m.saved = append(m.saved, t)
	return t, nil
}

func (m *mockHistory) Recent(_ context.Context, limit int) ([]transcript.Transcript, error) {
	if limit < len(m.recent) {
		return m.recent[:limit], nil
	}
	return m.recent, nil
}

func clinicSet() result.Set {
	set := result.NewSet([]string{"services", "branches", "social_media"})
	set.Put("services", result.New([]result.Match{
		result.NewMatch("Teeth Cleaning 40", 0.91, 0),
		result.NewMatch("Root Canal 120", 0.42, 1),
	}))
	set.Put("branches", result.New([]result.Match{
		result.NewMatch("Main Branch Amman", 0.3, 0),
	}))
	return set
}

func mustRequest(t *testing.T, query string, k int) request.Request {
	t.Helper()
	q, err := request.New(query, k, 0)
	if err != nil {
		t.Fatalf("request.New: %v", err)
	}
	return q
}
