package query

import (
	"context"

	"github.com/kailas-cloud/bioportal/internal/domain/cachekey"
	"github.com/kailas-cloud/bioportal/internal/domain/condition"
)

// Resolver resolves a condition to sorted primary-record IDs.
type Resolver interface {
	ResolveIDs(ctx context.Context, where condition.Condition, limit int, bounded bool) ([]string, error)
}

// IDCache is the durable ID-list cache.
type IDCache interface {
	ReadThrough(
		ctx context.Context, key cachekey.Key, compute func(ctx context.Context) ([]string, error),
	) ([]string, error)
}
