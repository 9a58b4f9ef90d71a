package terms

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kailas-cloud/bioportal/internal/db"
	"github.com/kailas-cloud/bioportal/internal/domain"
	"github.com/kailas-cloud/bioportal/internal/domain/condition"
	"github.com/kailas-cloud/bioportal/internal/domain/triplet"
)

func TestHits_QueryShape(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.findFn = func(_ context.Context, q *db.FindQuery) ([]db.Document, error) {
		wantCriteria := []db.Criterion{
			{Field: "standardized_term", Op: db.OpPrefix, Values: []any{"danau"}},
			{Field: "scope", Op: db.OpEq, Values: []any{"tax"}},
		}
		if diff := cmp.Diff(wantCriteria, q.Criteria); diff != "" {
			t.Errorf("criteria mismatch (-want +got):\n%s", diff)
		}
		wantSort := []db.SortField{{Field: "records", Descending: true}, {Field: "standardized_term"}}
		if diff := cmp.Diff(wantSort, q.Sort); diff != "" {
			t.Errorf("sort mismatch (-want +got):\n%s", diff)
		}
		if q.Limit != 20 {
			t.Errorf("limit = %d", q.Limit)
		}
		return []db.Document{{"_id": "x", "term": "Danaus"}}, nil
	}

	hits, err := repo.Hits(context.Background(), "danau", "tax", 20)
	if err != nil {
		t.Fatalf("Hits: %v", err)
	}
	if _, ok := hits[0]["_id"]; ok {
		t.Error("expected _id stripped")
	}
}

func TestHits_NoScope(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.findFn = func(_ context.Context, q *db.FindQuery) ([]db.Document, error) {
		if len(q.Criteria) != 1 {
			t.Errorf("criteria = %+v", q.Criteria)
		}
		return nil, nil
	}
	if _, err := repo.Hits(context.Background(), "can", "", 5); err != nil {
		t.Fatalf("Hits: %v", err)
	}
}

func TestResolve(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.findFn = func(_ context.Context, q *db.FindQuery) ([]db.Document, error) {
		return []db.Document{
			{"scope": "tax", "field": "genus"},
			{"scope": "geo", "field": "country/ocean"},
			{"scope": "broken"},
		}, nil
	}

	got, err := repo.Resolve(context.Background(), "Panama")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := []triplet.Triplet{
		{Scope: "tax", Subscope: "genus", Value: "Panama"},
		{Scope: "geo", Subscope: "country/ocean", Value: "Panama"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("triplets mismatch (-want +got):\n%s", diff)
	}
}

func TestCounts_Sums(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.findFn = func(_ context.Context, q *db.FindQuery) ([]db.Document, error) {
		if !q.Terms || q.Where == nil {
			t.Errorf("expected terms condition, got %+v", q)
		}
		return []db.Document{
			{"records": json.Number("10"), "summaries": json.Number("2")},
			{"records": json.Number("5"), "summaries": json.Number("1")},
		}, nil
	}

	c, err := repo.Counts(context.Background(), condition.Condition{})
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if c != (domain.TermCounts{Records: 15, Summaries: 3}) {
		t.Errorf("counts = %+v", c)
	}
}
