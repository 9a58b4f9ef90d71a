package taxonomy

import (
	"context"
	"time"

	"github.com/kailas-cloud/bioportal/internal/db"
	"github.com/kailas-cloud/bioportal/internal/domain/aggregate"
	"github.com/kailas-cloud/bioportal/internal/domain/cachekey"
	"github.com/kailas-cloud/bioportal/internal/domain/condition"
	domtax "github.com/kailas-cloud/bioportal/internal/domain/taxonomy"
)

// RecordRepository reads taxonomy columns of primary records.
type RecordRepository interface {
	TaxonomyPaths(ctx context.Context, where condition.Condition) ([]domtax.Path, error)
	GroupByField(ctx context.Context, where condition.Condition, column string) ([]aggregate.GroupRow, error)
}

// SummaryRepository projects fields of precomputed summary documents.
type SummaryRepository interface {
	Collection(group aggregate.ScopeGroup) (string, bool)
	FieldValues(
		ctx context.Context, group aggregate.ScopeGroup, where condition.Condition, fields []string,
	) ([]db.Document, error)
}

// SummaryDocuments loads the cached summary documents of a query.
type SummaryDocuments interface {
	SummaryDocuments(
		ctx context.Context, qid string, group aggregate.ScopeGroup, where condition.Condition,
	) ([]db.Document, error)
}

// IDLookup reports whether an ID list is already cached.
type IDLookup interface {
	Get(ctx context.Context, key cachekey.Key) ([]string, bool)
}

// NodeRepository reads taxonomy summary nodes.
type NodeRepository interface {
	ByNameAndRank(ctx context.Context, name, rank string) ([]domtax.Node, error)
	ByTaxIDs(ctx context.Context, taxids []int64) ([]domtax.Node, error)
	ByParentTaxIDs(ctx context.Context, taxids []int64) ([]domtax.Node, error)
}

// MetaCache stores computed taxonomy maps.
type MetaCache interface {
	Get(ctx context.Context, key cachekey.Key, dst any) bool
	Set(ctx context.Context, key cachekey.Key, value any, ttl time.Duration) bool
}
