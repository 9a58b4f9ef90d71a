package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/bioportal/internal/db"
)

// MGet fetches all keys with a single MGET. Missing keys yield nil entries.
func (s *Store) MGet(ctx context.Context, keys []string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	cmd := s.b().Mget().Key(keys...).Build()
	msgs, err := s.client.Do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpMGet, Err: err}
	}

	out := make([][]byte, len(keys))
	for i, msg := range msgs {
		if i >= len(out) {
			break
		}
		if msg.IsNil() {
			continue
		}
		data, err := msg.AsBytes()
		if err != nil {
			continue
		}
		out[i] = data
	}
	return out, nil
}

// MSet writes all items in one pipelined DoMulti round-trip.
// ttl 0 stores without expiry. The first failure is returned alongside the
// per-item results.
func (s *Store) MSet(ctx context.Context, items []db.KVItem, ttl time.Duration) ([]bool, error) {
	if len(items) == 0 {
		return nil, nil
	}

	cmds := make([]rueidis.Completed, len(items))
	for i, item := range items {
		set := s.b().Set().Key(item.Key).Value(rueidis.BinaryString(item.Value))
		if ttl > 0 {
			cmds[i] = set.Ex(ttl).Build()
		} else {
			cmds[i] = set.Build()
		}
	}

	ok := make([]bool, len(items))
	var firstErr error
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			if firstErr == nil {
				firstErr = &db.Error{Op: db.OpSet, Err: err}
			}
			continue
		}
		ok[i] = true
	}
	return ok, firstErr
}
