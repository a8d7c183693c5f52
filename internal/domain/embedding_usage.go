package domain

import (
	"context"
	"sync"
)

type embeddingUsageKey struct{}

// EmbeddingUsage collects token usage for a single HTTP request.
// The handler puts a pointer into the context; retrievers running in parallel add to it
// after embedding; the handler reads it for response headers.
type EmbeddingUsage struct {
	mu          sync.Mutex
	totalTokens int
	used        bool
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *EmbeddingUsage) {
	u := &EmbeddingUsage{}
	return context.WithValue(ctx, embeddingUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *EmbeddingUsage {
	u, _ := ctx.Value(embeddingUsageKey{}).(*EmbeddingUsage)
	return u
}

// AddTokens records consumed tokens. Safe on a nil receiver.
func (u *EmbeddingUsage) AddTokens(n int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.totalTokens += n
	u.used = true
	u.mu.Unlock()
}

// Snapshot returns the tokens recorded so far and whether any embedding call happened,
// even a cache hit with 0 tokens.
func (u *EmbeddingUsage) Snapshot() (totalTokens int, used bool) {
	if u == nil {
		return 0, false
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.totalTokens, u.used
}
