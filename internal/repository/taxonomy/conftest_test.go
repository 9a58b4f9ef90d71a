package taxonomy

import (
	"context"
	"testing"

	"github.com/kailas-cloud/bioportal/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	findFn func(ctx context.Context, q *db.FindQuery) ([]db.Document, error)
}

func (m *mockStore) Find(ctx context.Context, q *db.FindQuery) ([]db.Document, error) {
	if m.findFn != nil {
		return m.findFn(ctx, q)
	}
	return nil, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, "taxonomy_summaries"), ms
}
