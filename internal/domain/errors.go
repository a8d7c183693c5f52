package domain

import (
	"errors"
)

var (
	// ErrEncoding signals an embedding backend that is unreachable or misbehaving.
	ErrEncoding = errors.New("encoding failed")
	// ErrConfiguration signals an embedder asked to encode with no model loaded.
	ErrConfiguration = errors.New("embedder not configured")
	// ErrEmptyCollection signals a category with zero source records.
	ErrEmptyCollection = errors.New("empty collection")
	// ErrNotBuilt signals a query against a category whose index was never built.
	ErrNotBuilt = errors.New("index not built")
	// ErrSchema signals a configured field absent from the records.
	ErrSchema = errors.New("schema mismatch")
	// ErrRetrieval wraps non-recoverable per-category failures surfaced by the orchestrator.
	ErrRetrieval = errors.New("retrieval failed")
	// ErrVectorDimMismatch signals vectors of different dimensions in one index.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrInvalidQuery signals a query rejected by request validation.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrGeneration signals a language model failure while synthesizing an answer.
	ErrGeneration = errors.New("generation failed")
)
