package ancillary

import (
	"context"
	"time"

	"github.com/kailas-cloud/bioportal/internal/db"
	"github.com/kailas-cloud/bioportal/internal/domain/ancillary"
	"github.com/kailas-cloud/bioportal/internal/domain/cachekey"
)

// Repository reads registry collections joined with their summaries.
type Repository interface {
	Match(ctx context.Context, j ancillary.Join, key string, values []string) ([]db.Document, error)
	All(ctx context.Context, j ancillary.Join, inner bool) ([]db.Document, error)
	Registry(ctx context.Context, collection string, limit int) ([]db.Document, error)
}

// MetaCache holds joined sets.
type MetaCache interface {
	Get(ctx context.Context, key cachekey.Key, dst any) bool
	Set(ctx context.Context, key cachekey.Key, value any, ttl time.Duration) bool
}
