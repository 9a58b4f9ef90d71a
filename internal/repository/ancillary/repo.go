// Package ancillary reads registry collections joined with their summaries.
package ancillary

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/bioportal/internal/db"
	"github.com/kailas-cloud/bioportal/internal/domain/ancillary"
)

// store is the consumer interface for registry reads (ISP).
type store interface {
	Find(ctx context.Context, q *db.FindQuery) ([]db.Document, error)
	Lookup(ctx context.Context, q *db.LookupQuery) ([]db.Document, error)
}

// Repo implements usecase/ancillary.Repository.
type Repo struct {
	store store
}

// New creates an ancillary repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Match returns the registry rows whose key equals one of values, with their
// summary counts merged in. Numeric-looking values also match numeric keys.
func (r *Repo) Match(ctx context.Context, j ancillary.Join, key string, values []string) ([]db.Document, error) {
	docs, err := r.store.Lookup(ctx, &db.LookupQuery{
		Registry:    j.Registry,
		Summary:     j.Summary,
		RegistryKey: j.RegistryKey,
		SummaryKey:  j.SummaryKey,
		MatchKey:    key,
		Values:      typeless(values),
	})
	if err != nil {
		return nil, fmt.Errorf("ancillary %s: %w", j.Registry, err)
	}
	return strip(docs), nil
}

// All returns every registry row with its summary counts merged in.
// inner drops rows without a summary.
func (r *Repo) All(ctx context.Context, j ancillary.Join, inner bool) ([]db.Document, error) {
	docs, err := r.store.Lookup(ctx, &db.LookupQuery{
		Registry:    j.Registry,
		Summary:     j.Summary,
		RegistryKey: j.RegistryKey,
		SummaryKey:  j.SummaryKey,
		Inner:       inner,
	})
	if err != nil {
		return nil, fmt.Errorf("ancillary set %s: %w", j.Registry, err)
	}
	return strip(docs), nil
}

// Registry returns the first limit rows of a registry collection.
func (r *Repo) Registry(ctx context.Context, collection string, limit int) ([]db.Document, error) {
	docs, err := r.store.Find(ctx, &db.FindQuery{Collection: collection, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("registry %s: %w", collection, err)
	}
	return strip(docs), nil
}

func typeless(values []string) []any {
	out := make([]any, 0, len(values)*2)
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		out = append(out, v)
		if seen[v] {
			continue
		}
		seen[v] = true
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			out = append(out, f)
		}
	}
	return out
}

func strip(docs []db.Document) []db.Document {
	for _, d := range docs {
		delete(d, "_id")
	}
	return docs
}
