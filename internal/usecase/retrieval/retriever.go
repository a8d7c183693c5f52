package retrieval

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/clinicrag/internal/domain"
	"github.com/kailas-cloud/clinicrag/internal/domain/collection"
	"github.com/kailas-cloud/clinicrag/internal/domain/search/result"
	"github.com/kailas-cloud/clinicrag/internal/domain/vector"
	"github.com/kailas-cloud/clinicrag/internal/index"
	"github.com/kailas-cloud/clinicrag/internal/metrics"
)

// snapshot is one fully built index with the texts it was built from.
// Never mutated after it is published.
type snapshot struct {
	index *index.Flat
	texts []string
	empty bool
	built time.Time
}

// Retriever owns the index of a single category.
// Query is lock-free; Build is serialized and publishes a new snapshot in one pointer store,
// so in-flight queries see either the old or the new index.
type Retriever struct {
	category string
	fields   []string
	embed    domain.Embedder
	logger   *zap.Logger

	buildMu sync.Mutex
	current atomic.Pointer[snapshot]
}

// NewRetriever creates an unbuilt retriever for category.
func NewRetriever(category string, fields []string, embed domain.Embedder, logger *zap.Logger) *Retriever {
	return &Retriever{
		category: category,
		fields:   slices.Clone(fields),
		embed:    embed,
		logger:   logger.With(zap.String("category", category)),
	}
}

// Category returns the category name.
func (r *Retriever) Category() string { return r.category }

// Build combines, embeds and indexes every record of c, replacing the current index.
// An empty collection is remembered as empty and reported with ErrEmptyCollection.
// On any other failure the previous index stays in place.
func (r *Retriever) Build(ctx context.Context, c collection.Collection) error {
	r.buildMu.Lock()
	defer r.buildMu.Unlock()

	start := time.Now()

	if c.Len() == 0 {
		r.current.Store(&snapshot{empty: true, built: time.Now()})
		metrics.IndexSize.WithLabelValues(r.category).Set(0)
		metrics.IndexBuildsTotal.WithLabelValues(r.category, "empty").Inc()
		r.logger.Warn("Collection is empty, category will return no matches")
		return fmt.Errorf("build %q: %w", r.category, domain.ErrEmptyCollection)
	}

	snap, err := r.build(ctx, c)
	if err != nil {
		metrics.IndexBuildsTotal.WithLabelValues(r.category, "error").Inc()
		r.logger.Error("Index build failed", zap.Error(err))
		return fmt.Errorf("build %q: %w", r.category, err)
	}

	r.current.Store(snap)
	metrics.IndexSize.WithLabelValues(r.category).Set(float64(snap.index.Len()))
	metrics.IndexBuildsTotal.WithLabelValues(r.category, "ok").Inc()

	r.logger.Info("Index built",
		zap.Int("records", snap.index.Len()),
		zap.Int("dimensions", snap.index.Dim()),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

func (r *Retriever) build(ctx context.Context, c collection.Collection) (*snapshot, error) {
	combined, err := collection.Combine(r.fields, c)
	if err != nil {
		return nil, fmt.Errorf("combine fields: %w", err)
	}
	texts := combined.Combined()

	emb, err := r.embed.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed records: %w", err)
	}
	if err = domain.CheckCount(emb, len(texts)); err != nil {
		return nil, err
	}

	normalized := make([][]float32, len(emb.Embeddings))
	for i, v := range emb.Embeddings {
		normalized[i] = vector.Normalize(v)
	}

	idx := index.NewFlat(0)
	if err = idx.Add(normalized...); err != nil {
		return nil, fmt.Errorf("index vectors: %w", err)
	}

	return &snapshot{index: idx, texts: texts, built: time.Now()}, nil
}

// Query returns up to min(k, size) matches for text, best first.
// k <= 0 yields an empty result without embedding the query.
func (r *Retriever) Query(ctx context.Context, text string, k int) (result.Result, error) {
	snap := r.current.Load()
	if snap == nil {
		return result.Result{}, fmt.Errorf("query %q: %w", r.category, domain.ErrNotBuilt)
	}
	if snap.empty {
		return result.Result{}, fmt.Errorf("query %q: %w", r.category, domain.ErrEmptyCollection)
	}
	if k <= 0 {
		return result.Empty(), nil
	}

	start := time.Now()
	defer func() {
		metrics.RetrievalQueryDuration.WithLabelValues(r.category).Observe(time.Since(start).Seconds())
	}()

	emb, err := r.embed.Embed(ctx, []string{text})
	if err != nil {
		return result.Result{}, fmt.Errorf("vectorize query: %w", err)
	}
	if err = domain.CheckCount(emb, 1); err != nil {
		return result.Result{}, err
	}

	hits, err := snap.index.Search(vector.Normalize(emb.Embeddings[0]), k)
	if err != nil {
		return result.Result{}, fmt.Errorf("search %q: %w", r.category, err)
	}

	matches := make([]result.Match, len(hits))
	for i, h := range hits {
		matches[i] = result.NewMatch(snap.texts[h.Position], vector.Clamp(h.Score), h.Position)
	}
	res := result.New(matches)
	metrics.RetrievalResults.WithLabelValues(r.category).Observe(float64(res.Len()))
	return res, nil
}

// Status reports the current index of the retriever.
func (r *Retriever) Status() Status {
	snap := r.current.Load()
	switch {
	case snap == nil:
		return Status{Category: r.category}
	case snap.empty:
		return Status{Category: r.category, Ready: true, Empty: true, BuiltAt: snap.built}
	default:
		return Status{Category: r.category, Ready: true, Size: snap.index.Len(), BuiltAt: snap.built}
	}
}

