// Package db defines the storage contracts shared by the cache drivers.
package db

import (
	"context"
	"time"
)

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// VectorCache is the bulk key-value surface the embedding cache needs.
// Values are opaque byte strings; encoding vectors is the caller's concern.
type VectorCache interface {
	Pinger
	// MGet returns one entry per key in key order; missing keys yield nil.
	MGet(ctx context.Context, keys []string) ([][]byte, error)
	// SetMulti stores all items in one pipelined round-trip. ttl <= 0 means no expiry.
	SetMulti(ctx context.Context, items []SetItem, ttl time.Duration) error
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// SetItem holds a single key+value pair for pipelined SET.
type SetItem struct {
	Key   string
	Value []byte
}
