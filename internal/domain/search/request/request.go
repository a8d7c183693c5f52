package request

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/clinicrag/internal/domain"
)

// Query parameter limits.
const (
	// MaxQueryLength is the maximum allowed query length in bytes.
	MaxQueryLength = 4096
	DefaultTopK    = 10
	MaxTopK        = 100
)

// Request is a validated retrieval query.
type Request struct {
	query string
	topK  int
}

// New validates the query and normalizes top-k.
// topK <= 0 falls back to defaultTopK (DefaultTopK when that is also unset); values above MaxTopK are clamped.
func New(query string, topK, defaultTopK int) (Request, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Request{}, fmt.Errorf("query is required: %w", domain.ErrInvalidQuery)
	}
	if len(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("query too long (max %d bytes): %w", MaxQueryLength, domain.ErrInvalidQuery)
	}
	if !utf8.ValidString(query) {
		return Request{}, fmt.Errorf("query is not valid UTF-8: %w", domain.ErrInvalidQuery)
	}
	if topK <= 0 {
		topK = defaultTopK
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}
	return Request{query: query, topK: topK}, nil
}

// Query returns the trimmed query text.
func (r *Request) Query() string { return r.query }

// TopK returns the number of matches requested per category.
func (r *Request) TopK() int { return r.topK }
