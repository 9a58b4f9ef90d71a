package terms

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kailas-cloud/bioportal/internal/db"
	"github.com/kailas-cloud/bioportal/internal/domain"
	"github.com/kailas-cloud/bioportal/internal/domain/condition"
	"github.com/kailas-cloud/bioportal/internal/domain/fieldtable"
	"github.com/kailas-cloud/bioportal/internal/domain/triplet"
)

// --- Mocks ---

type mockRepo struct {
	hitsFn   func(ctx context.Context, prefix, scope string, limit int) ([]db.Document, error)
	resolved map[string][]triplet.Triplet
	where    condition.Condition
	counts   domain.TermCounts
}

func (m *mockRepo) Hits(ctx context.Context, prefix, scope string, limit int) ([]db.Document, error) {
	if m.hitsFn != nil {
		return m.hitsFn(ctx, prefix, scope, limit)
	}
	return nil, nil
}

func (m *mockRepo) Resolve(_ context.Context, term string) ([]triplet.Triplet, error) {
	return m.resolved[term], nil
}

func (m *mockRepo) Counts(_ context.Context, where condition.Condition) (domain.TermCounts, error) {
	m.where = where
	return m.counts, nil
}

func newService(repo *mockRepo) *Service {
	return New(condition.NewBuilder(fieldtable.V1), repo)
}

func tr(scope, sub, value string) triplet.Triplet {
	return triplet.Triplet{Scope: scope, Subscope: sub, Value: value}
}

// --- Tests ---

func TestComplete_ScopePrefix(t *testing.T) {
	var gotPrefix, gotScope string
	var gotLimit int
	repo := &mockRepo{hitsFn: func(_ context.Context, prefix, scope string, limit int) ([]db.Document, error) {
		gotPrefix, gotScope, gotLimit = prefix, scope, limit
		return []db.Document{{"term": "Danaus"}}, nil
	}}
	svc := newService(repo)

	hits, err := svc.Complete(context.Background(), `tax: Danaus Plex'ip?`, 0)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if gotPrefix != "danaus_plex-ip-" || gotScope != "tax" || gotLimit != DefaultLimit {
		t.Errorf("Hits(%q, %q, %d)", gotPrefix, gotScope, gotLimit)
	}
	if len(hits) != 1 {
		t.Errorf("hits = %v", hits)
	}
}

func TestComplete_UnknownScopeKept(t *testing.T) {
	var gotPrefix, gotScope string
	repo := &mockRepo{hitsFn: func(_ context.Context, prefix, scope string, _ int) ([]db.Document, error) {
		gotPrefix, gotScope = prefix, scope
		return nil, nil
	}}
	hits, err := newService(repo).Complete(context.Background(), "BOLD:AAA", 500)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if gotPrefix != "bold:aaa" || gotScope != "" {
		t.Errorf("Hits(%q, %q)", gotPrefix, gotScope)
	}
	if hits == nil {
		t.Error("expected empty list, got nil")
	}
}

func TestComplete_TooShort(t *testing.T) {
	_, err := newService(&mockRepo{}).Complete(context.Background(), "tax: ab ", 10)
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("err = %v, want ErrInvalidRequest", err)
	}
}

func TestPreprocess(t *testing.T) {
	repo := &mockRepo{resolved: map[string][]triplet.Triplet{
		"Canada": {tr("geo", "country/ocean", "Canada")},
		"Aus":    {tr("tax", "genus", "Aus"), tr("tax", "species", "Aus")},
	}}
	svc := newService(repo)

	tests := []struct {
		name  string
		query string
		want  Resolution
		ok    bool
	}{
		{
			name:  "unique match",
			query: "Canada",
			want: Resolution{
				Successful: []Match{{Submitted: "na:na:Canada", Matched: "geo:country/ocean:Canada"}},
				Failed:     []Match{},
			},
			ok: true,
		},
		{
			name:  "unresolved expands",
			query: "ABC-123",
			want: Resolution{
				Successful: []Match{{
					Submitted: "ABC-123",
					Matched:   "ids:processid:ABC-123;ids:sampleid:ABC-123;ids:insdcacs:ABC-123",
				}},
				Failed:     []Match{},
			},
			ok: true,
		},
		{
			name:  "ambiguous",
			query: "Aus",
			want: Resolution{
				Successful: []Match{},
				Failed:     []Match{{Submitted: "na:na:Aus", Matched: "tax:genus:Aus;tax:species:Aus"}},
			},
		},
		{
			name:  "subscope disambiguates",
			query: "tax:Genus:Aus",
			want: Resolution{
				Successful: []Match{{Submitted: "tax:Genus:Aus", Matched: "tax:genus:Aus"}},
				Failed:     []Match{},
			},
			ok: true,
		},
		{
			name:  "submitted keeps case",
			query: "GEO:Country/Ocean:Canada;TAX:Aus",
			want: Resolution{
				Successful: []Match{{Submitted: "GEO:Country/Ocean:Canada", Matched: "geo:country/ocean:Canada"}},
				Failed:     []Match{{Submitted: "TAX:na:Aus", Matched: "tax:genus:Aus;tax:species:Aus"}},
			},
		},
		{
			name:  "no tokens",
			query: " ; ",
			want:  Resolution{Successful: []Match{}, Failed: []Match{}},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.Preprocess(context.Background(), tc.query)
			if err != nil {
				t.Fatalf("Preprocess: %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("resolution mismatch (-want +got):\n%s", diff)
			}
			if got.OK() != tc.ok {
				t.Errorf("OK() = %v, want %v", got.OK(), tc.ok)
			}
		})
	}
}

func TestAmbiguity(t *testing.T) {
	res := Resolution{Failed: []Match{{Submitted: "na:na:Aus", Matched: "tax:genus:Aus;tax:species:Aus"}}}
	var amb *domain.AmbiguousTermError
	if !errors.As(Ambiguity(res), &amb) {
		t.Fatal("expected AmbiguousTermError")
	}
	if len(amb.Candidates) != 2 {
		t.Errorf("candidates = %v", amb.Candidates)
	}
	if Ambiguity(Resolution{}) != nil {
		t.Error("expected nil for a clean resolution")
	}
}

func TestCounts_UsesTermFields(t *testing.T) {
	repo := &mockRepo{counts: domain.TermCounts{Records: 7, Summaries: 2}}
	got, err := newService(repo).Counts(context.Background(), "inst:name:CBG;bin:uri:BOLD:AAA0001")
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if got.Records != 7 || got.Summaries != 2 {
		t.Errorf("counts = %+v", got)
	}
	fields := map[string]bool{}
	for _, g := range repo.where.Groups {
		for _, p := range g.Predicates {
			fields[p.Field] = true
		}
	}
	if !fields["name"] || !fields["uri"] {
		t.Errorf("term fields = %v, want name and uri", fields)
	}
}

func TestCounts_EmptyQuery(t *testing.T) {
	_, err := newService(&mockRepo{}).Counts(context.Background(), ";;")
	if !errors.Is(err, domain.ErrEmptyQuery) {
		t.Fatalf("err = %v, want ErrEmptyQuery", err)
	}
}
