// Package index provides an exact in-memory inner-product index.
package index

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/kailas-cloud/clinicrag/internal/domain"
	"github.com/kailas-cloud/clinicrag/internal/domain/vector"
)

// Hit is a search hit: the position of the stored vector and its inner product with the query.
type Hit struct {
	Position int
	Score    float64
}

// Flat stores vectors in insertion order and scans all of them on search.
// Callers normalize vectors so inner product equals cosine similarity.
// A Flat is not safe for concurrent Add; once filled it may be searched concurrently.
type Flat struct {
	dim     int
	vectors [][]float32
}

// NewFlat creates an empty index. dim 0 takes the dimension of the first added vector.
func NewFlat(dim int) *Flat {
	return &Flat{dim: dim}
}

// Add appends vectors. Every vector must match the index dimension; on mismatch nothing is added.
func (f *Flat) Add(vectors ...[]float32) error {
	dim := f.dim
	for i, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("vector %d is empty: %w", i, domain.ErrVectorDimMismatch)
		}
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim {
			return fmt.Errorf("vector %d has dimension %d, index has %d: %w",
				i, len(v), dim, domain.ErrVectorDimMismatch)
		}
	}
	f.dim = dim
	for _, v := range vectors {
		f.vectors = append(f.vectors, slices.Clone(v))
	}
	return nil
}

// Len returns the number of stored vectors.
func (f *Flat) Len() int { return len(f.vectors) }

// Dim returns the vector dimension, 0 while the index is empty and unsized.
func (f *Flat) Dim() int { return f.dim }

// Search returns the min(k, Len()) stored vectors with the largest inner product against query,
// best first. Equal scores are ordered by ascending position.
func (f *Flat) Search(query []float32, k int) ([]Hit, error) {
	if k <= 0 || len(f.vectors) == 0 {
		return []Hit{}, nil
	}
	if len(query) != f.dim {
		return nil, fmt.Errorf("query has dimension %d, index has %d: %w",
			len(query), f.dim, domain.ErrVectorDimMismatch)
	}

	hits := make([]Hit, len(f.vectors))
	for i, v := range f.vectors {
		hits[i] = Hit{Position: i, Score: vector.Dot(query, v)}
	}
	slices.SortStableFunc(hits, func(a, b Hit) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Position, b.Position)
	})

	k = min(k, len(hits))
	return hits[:k:k], nil
}
