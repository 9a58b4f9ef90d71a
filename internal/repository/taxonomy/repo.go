// Package taxonomy reads taxonomy summary nodes.
package taxonomy

import (
	"context"
	"fmt"
	"math"

	"github.com/kailas-cloud/bioportal/internal/db"
	"github.com/kailas-cloud/bioportal/internal/domain/aggregate"
	domtax "github.com/kailas-cloud/bioportal/internal/domain/taxonomy"
)

const (
	fieldTaxID  = "taxid"
	fieldParent = "parent_taxid"
	fieldRank   = "rank_name"
	fieldName   = "taxon"
)

// store is the consumer interface for taxonomy summaries (ISP).
type store interface {
	Find(ctx context.Context, q *db.FindQuery) ([]db.Document, error)
}

// Repo implements usecase/taxonomy.NodeRepository.
type Repo struct {
	store      store
	collection string
}

// New creates a taxonomy summary repository over collection.
func New(s store, collection string) *Repo {
	return &Repo{store: s, collection: collection}
}

// ByNameAndRank returns the nodes named name at rank.
func (r *Repo) ByNameAndRank(ctx context.Context, name, rank string) ([]domtax.Node, error) {
	return r.find(ctx, "by name", db.Where().Eq(fieldName, name).Eq(fieldRank, rank).Build())
}

// ByTaxIDs returns the nodes with the given taxids.
func (r *Repo) ByTaxIDs(ctx context.Context, taxids []int64) ([]domtax.Node, error) {
	if len(taxids) == 0 {
		return nil, nil
	}
	return r.find(ctx, "by taxid", db.Where().In(fieldTaxID, int64s(taxids)...).Build())
}

// ByParentTaxIDs returns the children of the given taxids.
func (r *Repo) ByParentTaxIDs(ctx context.Context, taxids []int64) ([]domtax.Node, error) {
	if len(taxids) == 0 {
		return nil, nil
	}
	return r.find(ctx, "by parent", db.Where().In(fieldParent, int64s(taxids)...).Build())
}

func (r *Repo) find(ctx context.Context, what string, criteria []db.Criterion) ([]domtax.Node, error) {
	docs, err := r.store.Find(ctx, &db.FindQuery{Collection: r.collection, Criteria: criteria})
	if err != nil {
		return nil, fmt.Errorf("taxonomy nodes %s: %w", what, err)
	}
	out := make([]domtax.Node, 0, len(docs))
	for _, d := range docs {
		n, ok := toNode(d)
		if !ok {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func toNode(d db.Document) (domtax.Node, bool) {
	taxid, ok := aggregate.Number(d[fieldTaxID])
	if !ok {
		return domtax.Node{}, false
	}
	parent, _ := aggregate.Number(d[fieldParent])
	rank, _ := d[fieldRank].(string)
	name, _ := d[fieldName].(string)
	delete(d, "_id")
	return domtax.Node{
		TaxID:       int64(math.Round(taxid)),
		ParentTaxID: int64(math.Round(parent)),
		Rank:        rank,
		Name:        name,
		Doc:         d,
	}, true
}

func int64s(ids []int64) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
