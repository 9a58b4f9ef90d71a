// Package specimen reads primary specimen records.
package specimen

import (
	"context"
	"fmt"
	"sort"

	"github.com/kailas-cloud/bioportal/internal/db"
	"github.com/kailas-cloud/bioportal/internal/domain/aggregate"
	"github.com/kailas-cloud/bioportal/internal/domain/condition"
	"github.com/kailas-cloud/bioportal/internal/domain/taxonomy"
)

// store is the consumer interface for primary records (ISP).
type store interface {
	FindIDs(ctx context.Context, q *db.IDQuery) ([]string, error)
	FindByIDs(ctx context.Context, collection string, ids []string) ([]db.Document, error)
	Find(ctx context.Context, q *db.FindQuery) ([]db.Document, error)
	GroupBy(ctx context.Context, q *db.GroupQuery) ([]db.GroupRow, error)
	GroupPaths(ctx context.Context, q *db.PathQuery) ([]db.PathRow, error)
}

// Repo implements the primary-record reads of the query, summary, documents,
// taxonomy and images services.
type Repo struct {
	store      store
	collection string
}

// New creates a specimen repository over collection.
func New(s store, collection string) *Repo {
	return &Repo{store: s, collection: collection}
}

// ResolveIDs returns the ascending IDs of records matching where.
// A bounded zero limit returns an empty list without a store round trip.
func (r *Repo) ResolveIDs(ctx context.Context, where condition.Condition, limit int, bounded bool) ([]string, error) {
	if bounded && limit <= 0 {
		return []string{}, nil
	}
	ids, err := r.store.FindIDs(ctx, &db.IDQuery{
		Collection: r.collection,
		Where:      where,
		Limit:      limit,
		Bounded:    bounded,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve ids: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// FetchByIDs returns the records with the given IDs in input order.
// Unknown IDs are skipped.
func (r *Repo) FetchByIDs(ctx context.Context, ids []string) ([]db.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	docs, err := r.store.FindByIDs(ctx, r.collection, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch %d records: %w", len(ids), err)
	}
	return docs, nil
}

// GroupByField groups records matching where by column.
func (r *Repo) GroupByField(ctx context.Context, where condition.Condition, column string) ([]aggregate.GroupRow, error) {
	rows, err := r.store.GroupBy(ctx, &db.GroupQuery{Collection: r.collection, Where: where, Field: column})
	if err != nil {
		return nil, fmt.Errorf("group by %s: %w", column, err)
	}
	out := make([]aggregate.GroupRow, len(rows))
	for i, row := range rows {
		out[i] = aggregate.GroupRow{Column: row.Field, Value: row.Value, ProcessIDs: row.ProcessIDs}
	}
	return out, nil
}

// TaxonomyPaths returns the distinct rank paths of records matching where,
// each weighted by its distinct specimens.
func (r *Repo) TaxonomyPaths(ctx context.Context, where condition.Condition) ([]taxonomy.Path, error) {
	rows, err := r.store.GroupPaths(ctx, &db.PathQuery{Collection: r.collection, Where: where, Ranks: taxonomy.Ranks})
	if err != nil {
		return nil, fmt.Errorf("taxonomy paths: %w", err)
	}
	out := make([]taxonomy.Path, 0, len(rows))
	for _, row := range rows {
		out = append(out, taxonomy.Path{Names: row.Names, Specimens: int64(aggregate.CountDistinct(row.ProcessIDs))})
	}
	return out, nil
}

// FieldValues returns the projected fields of up to limit records matching where.
func (r *Repo) FieldValues(ctx context.Context, where condition.Condition, fields []string, limit int) ([]db.Document, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	docs, err := r.store.Find(ctx, &db.FindQuery{
		Collection: r.collection,
		Where:      &where,
		Fields:     fields,
		Limit:      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("field values: %w", err)
	}
	return docs, nil
}
