package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/clinicrag/internal/db"
)

// MGet fetches keys with one GET per key in a single DoMulti round-trip.
// Per-key commands keep working on a cluster, where the hashed keys land in different slots
// and a multi-key MGET is rejected. Missing keys come back as nil entries.
func (s *Store) MGet(ctx context.Context, keys []string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	cmds := make(rueidis.Commands, len(keys))
	for i, key := range keys {
		cmds[i] = s.client.B().Get().Key(key).Build()
	}

	out := make([][]byte, len(keys))
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		data, err := res.AsBytes()
		if rueidis.IsRedisNil(err) {
			continue
		}
		if err != nil {
			return nil, &db.Error{Op: db.OpGet, Keys: len(keys), Err: fmt.Errorf("key %s: %w", keys[i], err)}
		}
		out[i] = data
	}
	return out, nil
}

// SetMulti stores all items in a single DoMulti round-trip.
func (s *Store) SetMulti(ctx context.Context, items []db.SetItem, ttl time.Duration) error {
	if len(items) == 0 {
		return nil
	}

	cmds := make(rueidis.Commands, len(items))
	for i, item := range items {
		set := s.client.B().Set().Key(item.Key).Value(rueidis.BinaryString(item.Value))
		if ttl > 0 {
			cmds[i] = set.Ex(ttl).Build()
		} else {
			cmds[i] = set.Build()
		}
	}

	var failed int
	var firstErr error
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			failed++
			if firstErr == nil {
				firstErr = fmt.Errorf("key %s: %w", items[i].Key, err)
			}
		}
	}
	if firstErr != nil {
		return &db.Error{Op: db.OpSet, Keys: failed, Err: firstErr}
	}
	return nil
}
