package maps

import (
	"context"
	"time"

	"github.com/kailas-cloud/bioportal/internal/db"
	"github.com/kailas-cloud/bioportal/internal/domain/aggregate"
	"github.com/kailas-cloud/bioportal/internal/domain/cachekey"
	"github.com/kailas-cloud/bioportal/internal/domain/triplet"
)

// FieldSummarizer counts the values of one field among a query's records.
type FieldSummarizer interface {
	FieldCounts(ctx context.Context, q triplet.Query, field string) (aggregate.Counts, error)
}

// Registry reads ancillary registry documents.
type Registry interface {
	Documents(ctx context.Context, collection, key string, values, fields []string) ([]db.Document, error)
}

// MetaCache holds country maps.
type MetaCache interface {
	Get(ctx context.Context, key cachekey.Key, dst any) bool
	Set(ctx context.Context, key cachekey.Key, value any, ttl time.Duration) bool
}
