package retrieval

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/clinicrag/internal/domain"
	"github.com/kailas-cloud/clinicrag/internal/domain/collection"
	"github.com/kailas-cloud/clinicrag/internal/domain/search/result"
)

// Engine owns one retriever per configured category.
// It is built once by the composition root and shared by all requests.
type Engine struct {
	categories []Category
	retrievers map[string]*Retriever
	logger     *zap.Logger
}

// NewEngine creates the retrievers and performs the initial build from collections.
// Empty categories are not an error; any other build failure is.
func NewEngine(
	ctx context.Context, categories []Category,
	collections map[string]collection.Collection,
	embed domain.Embedder, logger *zap.Logger,
) (*Engine, error) {
	if len(categories) == 0 {
		return nil, fmt.Errorf("no categories configured: %w", domain.ErrConfiguration)
	}

	e := &Engine{
		categories: categories,
		retrievers: make(map[string]*Retriever, len(categories)),
		logger:     logger,
	}
	for _, c := range categories {
		if _, dup := e.retrievers[c.Name]; dup {
			return nil, fmt.Errorf("duplicate category %q: %w", c.Name, domain.ErrConfiguration)
		}
		e.retrievers[c.Name] = NewRetriever(c.Name, c.Fields, embed, logger)
	}

	if err := e.Refresh(ctx, collections); err != nil {
		return nil, err
	}
	return e, nil
}

// Refresh rebuilds every category from collections.
// Categories that fail keep serving their previous index; the failures are returned joined.
func (e *Engine) Refresh(ctx context.Context, collections map[string]collection.Collection) error {
	var errs []error
	for _, c := range e.categories {
		coll, ok := collections[c.Name]
		if !ok {
			errs = append(errs, fmt.Errorf("no collection for category %q: %w", c.Name, domain.ErrConfiguration))
			continue
		}
		if err := e.retrievers[c.Name].Build(ctx, coll); err != nil && !errors.Is(err, domain.ErrEmptyCollection) {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	e.logger.Info("Engine refreshed", zap.Int("categories", len(e.categories)))
	return nil
}

// Retrieve queries all categories, in configured order.
func (e *Engine) Retrieve(ctx context.Context, query string, k int) (result.Set, error) {
	queriers := make(map[string]Querier, len(e.retrievers))
	for name, r := range e.retrievers {
		queriers[name] = r
	}
	return retrieve(ctx, query, e.Categories(), queriers, k)
}

// Categories returns the configured category names in order.
func (e *Engine) Categories() []string {
	names := make([]string, len(e.categories))
	for i, c := range e.categories {
		names[i] = c.Name
	}
	return names
}

// Status reports every category's index in configured order.
func (e *Engine) Status() []Status {
	out := make([]Status, len(e.categories))
	for i, c := range e.categories {
		out[i] = e.retrievers[c.Name].Status()
	}
	return out
}
