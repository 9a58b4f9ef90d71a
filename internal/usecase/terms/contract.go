package terms

import (
	"context"

	"github.com/kailas-cloud/bioportal/internal/db"
	"github.com/kailas-cloud/bioportal/internal/domain"
	"github.com/kailas-cloud/bioportal/internal/domain/condition"
	"github.com/kailas-cloud/bioportal/internal/domain/triplet"
)

// Repository reads the accepted-terms collection.
type Repository interface {
	Hits(ctx context.Context, prefix, scope string, limit int) ([]db.Document, error)
	Resolve(ctx context.Context, term string) ([]triplet.Triplet, error)
	Counts(ctx context.Context, where condition.Condition) (domain.TermCounts, error)
}
