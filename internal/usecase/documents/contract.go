package documents

import (
	"context"

	"github.com/kailas-cloud/bioportal/internal/db"
	"github.com/kailas-cloud/bioportal/internal/domain/triplet"
)

// QueryResolver resolves query identities to sorted document IDs.
type QueryResolver interface {
	IDs(ctx context.Context, id string) ([]string, triplet.Query, error)
	ResolveIDsUpTo(ctx context.Context, q triplet.Query, maxIDs int) ([]string, error)
}

// RecordFetcher loads primary records by ID.
type RecordFetcher interface {
	FetchByIDs(ctx context.Context, ids []string) ([]db.Document, error)
}

// DocumentCache reads documents through the meta cache.
type DocumentCache interface {
	Documents(
		ctx context.Context,
		ids []string,
		fetch func(ctx context.Context, ids []string) ([]db.Document, error),
	) ([]db.Document, error)
}
