package metacache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/bioportal/internal/db"
	"github.com/kailas-cloud/bioportal/internal/domain/cachekey"
)

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	data   map[string][]byte
	mgetFn func(ctx context.Context, keys []string) ([][]byte, error)
	msetFn func(ctx context.Context, items []db.KVItem, ttl time.Duration) ([]bool, error)

	lastTTL time.Duration
	sets    int
}

func (m *mockKVStore) MGet(ctx context.Context, keys []string) ([][]byte, error) {
	if m.mgetFn != nil {
		return m.mgetFn(ctx, keys)
	}
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = m.data[k]
	}
	return out, nil
}

func (m *mockKVStore) MSet(ctx context.Context, items []db.KVItem, ttl time.Duration) ([]bool, error) {
	m.lastTTL = ttl
	m.sets++
	if m.msetFn != nil {
		return m.msetFn(ctx, items, ttl)
	}
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	ok := make([]bool, len(items))
	for i, it := range items {
		m.data[it.Key] = it.Value
		ok[i] = true
	}
	return ok, nil
}

func newTestCache(t *testing.T) (*Cache, *mockKVStore) {
	t.Helper()
	ms := &mockKVStore{data: make(map[string][]byte)}
	return New(ms, "bp:", cachekey.LayoutBare, 7*24*time.Hour, nil, zap.NewNop()), ms
}
