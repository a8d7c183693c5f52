package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/clinicrag/internal/db"
)

var _ db.VectorCache = (*Store)(nil)

const (
	clientName      = "clinicrag"
	maxReadyBackoff = time.Second
)

// Config holds connection parameters for a Redis or Valkey server.
type Config struct {
	Addrs       []string
	Username    string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// Store caches embeddings in Redis or Valkey through rueidis.
// Both servers speak the same RESP commands, so one driver serves either.
type Store struct {
	client rueidis.Client
}

// NewStore connects to the first reachable address in cfg.Addrs.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("cache addrs is required")
	}

	opt := rueidis.ClientOption{
		InitAddress: cfg.Addrs,
		Username:    cfg.Username,
		Password:    cfg.Password,
		SelectDB:    cfg.DB,
		ClientName:  clientName,
		// Vectors are looked up in bulk by content hash; client-side caching buys nothing.
		DisableCache: true,
	}
	if cfg.DialTimeout > 0 {
		opt.Dialer.Timeout = cfg.DialTimeout
	}

	client, err := rueidis.NewClient(opt)
	if err != nil {
		return nil, fmt.Errorf("connect cache %v: %w", cfg.Addrs, err)
	}
	return &Store{client: client}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Do(ctx, s.client.B().Ping().Build()).Error(); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady pings with a doubling backoff until the server answers or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	backoff := 50 * time.Millisecond
	var lastErr error
	for {
		if lastErr = s.Ping(ctx); lastErr == nil {
			return nil
		}

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("cache not ready after %s: %w", timeout, lastErr)
		case <-t.C:
		}
		backoff = min(backoff*2, maxReadyBackoff)
	}
}
