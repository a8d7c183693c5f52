package retrieval

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"unicode"

	"go.uber.org/zap"

	"github.com/kailas-cloud/clinicrag/internal/domain"
	"github.com/kailas-cloud/clinicrag/internal/domain/collection"
	"github.com/kailas-cloud/clinicrag/internal/domain/search/result"
)

const vocabDims = 64

// vocabEmbedder is a deterministic bag-of-words embedder: every distinct word gets its own
// dimension on first sight. Dimension assignment order does not affect inner products.
type vocabEmbedder struct {
	mu    sync.Mutex
	vocab map[string]int
	calls atomic.Int32
	err   error
}

func newVocabEmbedder() *vocabEmbedder {
	return &vocabEmbedder{vocab: make(map[string]int)}
}

func (e *vocabEmbedder) Embed(_ context.Context, texts []string) (domain.EmbeddingResult, error) {
	e.calls.Add(1)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return domain.EmbeddingResult{}, e.err
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, vocabDims)
		for _, w := range tokenize(t) {
			dim, ok := e.vocab[w]
			if !ok {
				if len(e.vocab) == vocabDims {
					return domain.EmbeddingResult{}, errors.New("vocabulary exhausted")
				}
				dim = len(e.vocab)
				e.vocab[w] = dim
			}
			v[dim]++
		}
		out[i] = v
	}
	return domain.EmbeddingResult{Embeddings: out, TotalTokens: len(texts)}, nil
}

func (e *vocabEmbedder) setErr(err error) {
	e.mu.Lock()
	e.err = err
	e.mu.Unlock()
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// stubEmbedder returns fixed vectors regardless of input.
type stubEmbedder struct {
	vectors [][]float32
}

func (e *stubEmbedder) Embed(_ context.Context, _ []string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{Embeddings: e.vectors}, nil
}

// stubQuerier returns a canned result or error.
type stubQuerier struct {
	res result.Result
	err error
}

func (q *stubQuerier) Query(_ context.Context, _ string, _ int) (result.Result, error) {
	return q.res, q.err
}

func namesCollection(t *testing.T, name string, names ...string) collection.Collection {
	t.Helper()
	records := make([]collection.Record, len(names))
	for i, n := range names {
		records[i] = collection.Record{"name": n}
	}
	c, err := collection.New(name, []string{"name"}, records)
	if err != nil {
		t.Fatalf("collection.New: %v", err)
	}
	return c
}

func builtRetriever(t *testing.T, embed domain.Embedder, category string, names ...string) *Retriever {
	t.Helper()
	r := NewRetriever(category, []string{"name"}, embed, zap.NewNop())
	if err := r.Build(context.Background(), namesCollection(t, category, names...)); err != nil {
		t.Fatalf("Build: %v", err)
	}
	return r
}
