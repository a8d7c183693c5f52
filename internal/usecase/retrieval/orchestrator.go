package retrieval

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/clinicrag/internal/domain"
	"github.com/kailas-cloud/clinicrag/internal/domain/search/result"
	"github.com/kailas-cloud/clinicrag/internal/logger"
	"github.com/kailas-cloud/clinicrag/internal/metrics"
)

// Retrieve queries every retriever with the same text and collects one result per category.
// Empty or unbuilt categories yield an empty result. Any other failure aborts the whole call
// with ErrRetrieval wrapping the cause.
func Retrieve(ctx context.Context, query string, retrievers map[string]Querier, k int) (result.Set, error) {
	return retrieve(ctx, query, slices.Sorted(maps.Keys(retrievers)), retrievers, k)
}

func retrieve(
	ctx context.Context, query string, order []string, retrievers map[string]Querier, k int,
) (result.Set, error) {
	log := logger.FromContext(ctx)
	results := make([]result.Result, len(order))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range order {
		q := retrievers[name]
		g.Go(func() error {
			res, err := q.Query(gctx, query, k)
			switch {
			case err == nil:
				results[i] = res
				return nil
			case errors.Is(err, domain.ErrEmptyCollection):
				metrics.RetrievalErrorsTotal.WithLabelValues(name, "empty").Inc()
				log.Debug("Category has no records", zap.String("category", name))
				results[i] = result.Empty()
				return nil
			case errors.Is(err, domain.ErrNotBuilt):
				metrics.RetrievalErrorsTotal.WithLabelValues(name, "not_built").Inc()
				log.Error("Category queried before its index was built", zap.String("category", name))
				results[i] = result.Empty()
				return nil
			default:
				metrics.RetrievalErrorsTotal.WithLabelValues(name, "failed").Inc()
				return fmt.Errorf("category %q: %w", name, err)
			}
		})
	}

	if err := g.Wait(); err != nil {
		return result.Set{}, fmt.Errorf("%w: %w", domain.ErrRetrieval, err)
	}

	set := result.NewSet(order)
	for i, name := range order {
		set.Put(name, results[i])
	}
	return set, nil
}
