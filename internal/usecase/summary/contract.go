package summary

import (
	"context"
	"time"

	"github.com/kailas-cloud/bioportal/internal/db"
	"github.com/kailas-cloud/bioportal/internal/domain/aggregate"
	"github.com/kailas-cloud/bioportal/internal/domain/cachekey"
	"github.com/kailas-cloud/bioportal/internal/domain/condition"
)

// SummaryRepository reads precomputed summary documents.
type SummaryRepository interface {
	Collection(group aggregate.ScopeGroup) (string, bool)
	IDs(ctx context.Context, group aggregate.ScopeGroup, where condition.Condition) ([]string, error)
	Documents(ctx context.Context, group aggregate.ScopeGroup, ids []string) ([]db.Document, error)
}

// RecordGrouper groups primary records by one column.
type RecordGrouper interface {
	GroupByField(ctx context.Context, where condition.Condition, column string) ([]aggregate.GroupRow, error)
}

// IDCache is the durable ID-list cache.
type IDCache interface {
	ReadThrough(
		ctx context.Context, key cachekey.Key, compute func(ctx context.Context) ([]string, error),
	) ([]string, error)
}

// MetaCache holds reduced snapshots and summary documents.
type MetaCache interface {
	Get(ctx context.Context, key cachekey.Key, dst any) bool
	Set(ctx context.Context, key cachekey.Key, value any, ttl time.Duration) bool
	DefaultTTL() time.Duration
	Documents(
		ctx context.Context,
		ids []string,
		fetch func(ctx context.Context, ids []string) ([]db.Document, error),
	) ([]db.Document, error)
}
