// Package summary reads precomputed per-entity summary documents.
package summary

import (
	"context"
	"fmt"
	"sort"

	"github.com/kailas-cloud/bioportal/internal/db"
	"github.com/kailas-cloud/bioportal/internal/domain/aggregate"
	"github.com/kailas-cloud/bioportal/internal/domain/condition"
)

// store is the consumer interface for summary documents (ISP).
type store interface {
	FindIDs(ctx context.Context, q *db.IDQuery) ([]string, error)
	FindByIDs(ctx context.Context, collection string, ids []string) ([]db.Document, error)
	Find(ctx context.Context, q *db.FindQuery) ([]db.Document, error)
}

// Collections maps a scope group to its summary collection.
type Collections map[aggregate.ScopeGroup]string

// Repo implements the summary-document reads of the summary and taxonomy services.
type Repo struct {
	store       store
	collections Collections
}

// New creates a summary repository.
func New(s store, collections Collections) *Repo {
	return &Repo{store: s, collections: collections}
}

// Collection returns the summary collection serving group.
func (r *Repo) Collection(group aggregate.ScopeGroup) (string, bool) {
	c, ok := r.collections[group]
	return c, ok && c != ""
}

// IDs returns the ascending IDs of all summary documents of group matching where.
func (r *Repo) IDs(ctx context.Context, group aggregate.ScopeGroup, where condition.Condition) ([]string, error) {
	coll, err := r.collection(group)
	if err != nil {
		return nil, err
	}
	ids, err := r.store.FindIDs(ctx, &db.IDQuery{Collection: coll, Where: where})
	if err != nil {
		return nil, fmt.Errorf("summary ids %s: %w", group, err)
	}
	sort.Strings(ids)
	return ids, nil
}

// Documents returns the summary documents of group with the given IDs in input order.
func (r *Repo) Documents(ctx context.Context, group aggregate.ScopeGroup, ids []string) ([]db.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	coll, err := r.collection(group)
	if err != nil {
		return nil, err
	}
	docs, err := r.store.FindByIDs(ctx, coll, ids)
	if err != nil {
		return nil, fmt.Errorf("summary documents %s: %w", group, err)
	}
	return docs, nil
}

// FieldValues returns the projected fields of every summary document of group matching where.
func (r *Repo) FieldValues(
	ctx context.Context, group aggregate.ScopeGroup, where condition.Condition, fields []string,
) ([]db.Document, error) {
	coll, err := r.collection(group)
	if err != nil {
		return nil, err
	}
	docs, err := r.store.Find(ctx, &db.FindQuery{Collection: coll, Where: &where, Fields: fields})
	if err != nil {
		return nil, fmt.Errorf("summary field values %s: %w", group, err)
	}
	return docs, nil
}

func (r *Repo) collection(group aggregate.ScopeGroup) (string, error) {
	c, ok := r.Collection(group)
	if !ok {
		return "", fmt.Errorf("no summary collection for group %q", group)
	}
	return c, nil
}
