package idcache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/bioportal/internal/db"
)

// mockIDStore implements the consumer interface for tests.
type mockIDStore struct {
	lists   map[string]db.IDList
	getFn   func(ctx context.Context, bucket, key string) (db.IDList, error)
	putFn   func(ctx context.Context, bucket, key string, list db.IDList) error
	purged  []string
	deleted []string
}

func (m *mockIDStore) GetIDs(ctx context.Context, bucket, key string) (db.IDList, error) {
	if m.getFn != nil {
		return m.getFn(ctx, bucket, key)
	}
	l, ok := m.lists[bucket+"/"+key]
	if !ok {
		return db.IDList{}, db.ErrKeyNotFound
	}
	return l, nil
}

func (m *mockIDStore) PutIDs(ctx context.Context, bucket, key string, list db.IDList) error {
	if m.putFn != nil {
		return m.putFn(ctx, bucket, key, list)
	}
	m.lists[bucket+"/"+key] = list
	return nil
}

func (m *mockIDStore) DeleteIDs(_ context.Context, bucket, key string) error {
	m.deleted = append(m.deleted, bucket+"/"+key)
	delete(m.lists, bucket+"/"+key)
	return nil
}

func (m *mockIDStore) PurgeBefore(_ context.Context, bucket string, _ time.Time) (int, error) {
	m.purged = append(m.purged, bucket)
	return 1, nil
}

func newTestCache(t *testing.T, maxAge time.Duration) (*Cache, *mockIDStore) {
	t.Helper()
	ms := &mockIDStore{lists: make(map[string]db.IDList)}
	return New(ms, maxAge, nil, zap.NewNop()), ms
}
