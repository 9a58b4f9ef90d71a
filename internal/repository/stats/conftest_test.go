package stats

import (
	"context"
	"testing"

	"github.com/kailas-cloud/bioportal/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	countFn func(ctx context.Context, q *db.DistinctQuery) (int64, error)
	queries []*db.DistinctQuery
}

func (m *mockStore) CountDistinct(ctx context.Context, q *db.DistinctQuery) (int64, error) {
	m.queries = append(m.queries, q)
	if m.countFn != nil {
		return m.countFn(ctx, q)
	}
	return 0, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, "primary"), ms
}
