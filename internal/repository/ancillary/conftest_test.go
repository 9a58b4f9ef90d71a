package ancillary

import (
	"context"
	"testing"

	"github.com/kailas-cloud/bioportal/internal/db"
	"github.com/kailas-cloud/bioportal/internal/domain/ancillary"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	findFn   func(ctx context.Context, q *db.FindQuery) ([]db.Document, error)
	lookupFn func(ctx context.Context, q *db.LookupQuery) ([]db.Document, error)
}

func (m *mockStore) Find(ctx context.Context, q *db.FindQuery) ([]db.Document, error) {
	if m.findFn != nil {
		return m.findFn(ctx, q)
	}
	return nil, nil
}

func (m *mockStore) Lookup(ctx context.Context, q *db.LookupQuery) ([]db.Document, error) {
	if m.lookupFn != nil {
		return m.lookupFn(ctx, q)
	}
	return nil, nil
}

var countries = ancillary.Join{Registry: "countries", Summary: "country_summaries", RegistryKey: "name", SummaryKey: "country/ocean"}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms), ms
}
