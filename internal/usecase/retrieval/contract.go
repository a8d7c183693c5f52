package retrieval

import (
	"context"
	"time"

	"github.com/kailas-cloud/clinicrag/internal/domain/search/result"
)

// Querier answers top-k queries for one category.
type Querier interface {
	Query(ctx context.Context, text string, k int) (result.Result, error)
}

// Category configures one retrievable collection: its name and the fields combined into
// the text that gets embedded.
type Category struct {
	Name   string
	Fields []string
}

// Status describes the index currently served for a category.
type Status struct {
	Category string
	Ready    bool
	Empty    bool
	Size     int
	BuiltAt  time.Time
}
