package stats

import (
	"context"
	"time"

	"github.com/kailas-cloud/bioportal/internal/domain/cachekey"
)

// Repository computes one global stat.
type Repository interface {
	Count(ctx context.Context, name string) (int64, error)
}

// MetaCache holds the stats snapshot.
type MetaCache interface {
	Get(ctx context.Context, key cachekey.Key, dst any) bool
	Set(ctx context.Context, key cachekey.Key, value any, ttl time.Duration) bool
}
