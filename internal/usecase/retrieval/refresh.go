package retrieval

import (
	"context"
	"fmt"
	"sync"

	"github.com/kailas-cloud/clinicrag/internal/domain/collection"
)

// Source loads the current collections, keyed by category.
type Source interface {
	Load(ctx context.Context) (map[string]collection.Collection, error)
}

// Refresher reloads collections from a source and rebuilds the engine.
// Concurrent refreshes are collapsed: a caller arriving while one runs waits for it
// and shares its outcome. The shared refresh runs detached from every caller's
// cancellation, so a caller that gives up only stops waiting.
type Refresher struct {
	engine *Engine
	source Source

	mu      sync.Mutex
	running *refreshCall
}

type refreshCall struct {
	done chan struct{}
	err  error
}

// NewRefresher creates a Refresher.
func NewRefresher(e *Engine, src Source) *Refresher {
	return &Refresher{engine: e, source: src}
}

// Refresh loads fresh collections and rebuilds every category.
func (r *Refresher) Refresh(ctx context.Context) error {
	r.mu.Lock()
	call := r.running
	if call == nil {
		call = &refreshCall{done: make(chan struct{})}
		r.running = call
		go r.run(context.WithoutCancel(ctx), call)
	}
	r.mu.Unlock()

	select {
	case <-call.done:
		return call.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Refresher) run(ctx context.Context, call *refreshCall) {
	call.err = r.refresh(ctx)

	r.mu.Lock()
	r.running = nil
	r.mu.Unlock()
	close(call.done)
}

func (r *Refresher) refresh(ctx context.Context) error {
	cols, err := r.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("load collections: %w", err)
	}
	return r.engine.Refresh(ctx, cols)
}
