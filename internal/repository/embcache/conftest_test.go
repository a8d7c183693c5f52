package embcache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/clinicrag/internal/db"
	"github.com/kailas-cloud/clinicrag/internal/domain"
)

type mockEmbedder struct {
	vec    []float32
	tokens int
	err    error
	calls  int
	seen   [][]string
}

func (m *mockEmbedder) Embed(_ context.Context, texts []string) (domain.EmbeddingResult, error) {
	m.calls++
	m.seen = append(m.seen, texts)
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	embeddings := make([][]float32, len(texts))
	for i := range texts {
		embeddings[i] = m.vec
	}
	return domain.EmbeddingResult{
		Embeddings:   embeddings,
		PromptTokens: m.tokens * len(texts),
		TotalTokens:  m.tokens * len(texts),
	}, nil
}

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	mgetFn     func(ctx context.Context, keys []string) ([][]byte, error)
	setMultiFn func(ctx context.Context, items []db.SetItem, ttl time.Duration) error
}

func (m *mockKVStore) MGet(ctx context.Context, keys []string) ([][]byte, error) {
	if m.mgetFn != nil {
		return m.mgetFn(ctx, keys)
	}
	return make([][]byte, len(keys)), nil
}

func (m *mockKVStore) SetMulti(ctx context.Context, items []db.SetItem, ttl time.Duration) error {
	if m.setMultiFn != nil {
		return m.setMultiFn(ctx, items, ttl)
	}
	return nil
}

func newTestCachedEmbedder(t *testing.T, inner *mockEmbedder) (*CachedEmbedder, *mockKVStore) {
	t.Helper()
	ms := &mockKVStore{}
	ce := New(inner, ms, Config{Namespace: "test/model/3", TTL: time.Hour}, nil, zap.NewNop())
	return ce, ms
}
