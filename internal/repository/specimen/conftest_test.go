package specimen

import (
	"context"
	"testing"

	"github.com/kailas-cloud/bioportal/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	findIDsFn    func(ctx context.Context, q *db.IDQuery) ([]string, error)
	findByIDsFn  func(ctx context.Context, collection string, ids []string) ([]db.Document, error)
	findFn       func(ctx context.Context, q *db.FindQuery) ([]db.Document, error)
	groupByFn    func(ctx context.Context, q *db.GroupQuery) ([]db.GroupRow, error)
	groupPathsFn func(ctx context.Context, q *db.PathQuery) ([]db.PathRow, error)
}

func (m *mockStore) FindIDs(ctx context.Context, q *db.IDQuery) ([]string, error) {
	if m.findIDsFn != nil {
		return m.findIDsFn(ctx, q)
	}
	return []string{}, nil
}

func (m *mockStore) FindByIDs(ctx context.Context, collection string, ids []string) ([]db.Document, error) {
	if m.findByIDsFn != nil {
		return m.findByIDsFn(ctx, collection, ids)
	}
	return nil, nil
}

func (m *mockStore) Find(ctx context.Context, q *db.FindQuery) ([]db.Document, error) {
	if m.findFn != nil {
		return m.findFn(ctx, q)
	}
	return nil, nil
}

func (m *mockStore) GroupBy(ctx context.Context, q *db.GroupQuery) ([]db.GroupRow, error) {
	if m.groupByFn != nil {
		return m.groupByFn(ctx, q)
	}
	return nil, nil
}

func (m *mockStore) GroupPaths(ctx context.Context, q *db.PathQuery) ([]db.PathRow, error) {
	if m.groupPathsFn != nil {
		return m.groupPathsFn(ctx, q)
	}
	return nil, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, "primary"), ms
}
