// Package terms reads the accepted-terms collection.
package terms

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/bioportal/internal/db"
	"github.com/kailas-cloud/bioportal/internal/domain"
	"github.com/kailas-cloud/bioportal/internal/domain/aggregate"
	"github.com/kailas-cloud/bioportal/internal/domain/condition"
	"github.com/kailas-cloud/bioportal/internal/domain/triplet"
)

const (
	fieldTerm         = "term"
	fieldStandardized = "standardized_term"
	fieldScope        = "scope"
	fieldSubscope     = "field"
	fieldRecords      = "records"
	fieldSummaries    = "summaries"
)

// store is the consumer interface for accepted terms (ISP).
type store interface {
	Find(ctx context.Context, q *db.FindQuery) ([]db.Document, error)
}

// Repo implements usecase/terms.Repository.
type Repo struct {
	store      store
	collection string
}

// New creates a terms repository over collection.
func New(s store, collection string) *Repo {
	return &Repo{store: s, collection: collection}
}

// Hits returns up to limit terms whose standardized form starts with prefix,
// optionally within scope, most used first.
func (r *Repo) Hits(ctx context.Context, prefix, scope string, limit int) ([]db.Document, error) {
	where := db.Where().Prefix(fieldStandardized, prefix)
	if scope != "" {
		where = where.Eq(fieldScope, scope)
	}
	docs, err := r.store.Find(ctx, &db.FindQuery{
		Collection: r.collection,
		Criteria:   where.Build(),
		Sort: []db.SortField{
			{Field: fieldRecords, Descending: true},
			{Field: fieldStandardized},
		},
		Limit: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("term hits %q: %w", prefix, err)
	}
	for _, d := range docs {
		delete(d, "_id")
	}
	return docs, nil
}

// Resolve returns every accepted triplet whose value is exactly term.
func (r *Repo) Resolve(ctx context.Context, term string) ([]triplet.Triplet, error) {
	docs, err := r.store.Find(ctx, &db.FindQuery{
		Collection: r.collection,
		Criteria:   db.Where().Eq(fieldTerm, term).Build(),
		Fields:     []string{fieldScope, fieldSubscope},
	})
	if err != nil {
		return nil, fmt.Errorf("resolve term %q: %w", term, err)
	}
	out := make([]triplet.Triplet, 0, len(docs))
	for _, d := range docs {
		scope, _ := d[fieldScope].(string)
		sub, _ := d[fieldSubscope].(string)
		if scope == "" || sub == "" {
			continue
		}
		out = append(out, triplet.Triplet{Scope: scope, Subscope: sub, Value: term})
	}
	return out, nil
}

// Counts sums records and summaries of the terms matching where.
func (r *Repo) Counts(ctx context.Context, where condition.Condition) (domain.TermCounts, error) {
	docs, err := r.store.Find(ctx, &db.FindQuery{
		Collection: r.collection,
		Where:      &where,
		Terms:      true,
		Fields:     []string{fieldRecords, fieldSummaries},
	})
	if err != nil {
		return domain.TermCounts{}, fmt.Errorf("term counts: %w", err)
	}
	var c domain.TermCounts
	for _, d := range docs {
		c.Records += asInt(d[fieldRecords])
		c.Summaries += asInt(d[fieldSummaries])
	}
	return c, nil
}

func asInt(v any) int64 {
	n, _ := aggregate.Number(v)
	return int64(n)
}
