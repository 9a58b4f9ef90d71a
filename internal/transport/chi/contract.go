package chi

import (
	"context"
	"io"

	"github.com/kailas-cloud/bioportal/internal/db"
	"github.com/kailas-cloud/bioportal/internal/domain"
	"github.com/kailas-cloud/bioportal/internal/domain/aggregate"
	"github.com/kailas-cloud/bioportal/internal/domain/extent"
	"github.com/kailas-cloud/bioportal/internal/domain/image"
	domtax "github.com/kailas-cloud/bioportal/internal/domain/taxonomy"
	"github.com/kailas-cloud/bioportal/internal/domain/triplet"
	documentsuc "github.com/kailas-cloud/bioportal/internal/usecase/documents"
	healthuc "github.com/kailas-cloud/bioportal/internal/usecase/health"
	mapsuc "github.com/kailas-cloud/bioportal/internal/usecase/maps"
	queryuc "github.com/kailas-cloud/bioportal/internal/usecase/query"
	summaryuc "github.com/kailas-cloud/bioportal/internal/usecase/summary"
	termsuc "github.com/kailas-cloud/bioportal/internal/usecase/terms"
)

// QueryService registers queries.
type QueryService interface {
	Register(ctx context.Context, raw string, e extent.Extent) (queryuc.Registration, error)
	Triplets(id string) ([]string, error)
}

// DocumentService pages and exports query records.
type DocumentService interface {
	Page(ctx context.Context, qid string, start, length int) (documentsuc.Page, error)
	Download(ctx context.Context, qid, format string, w io.Writer) error
}

// SummaryService summarizes query fields.
type SummaryService interface {
	Summarize(ctx context.Context, req summaryuc.Request) (aggregate.Summary, error)
}

// TaxonomyService serves the taxonomy views.
type TaxonomyService interface {
	Map(ctx context.Context, qid string, nodeThreshold int) (domtax.Map, error)
	DefaultNodeThreshold() int
	ByQuery(ctx context.Context, qid string) (map[string]map[string]int64, error)
	Hierarchy(ctx context.Context, name, rank string) (map[string][]map[string]any, bool, error)
}

// TermService serves the accepted-terms operations.
type TermService interface {
	Complete(ctx context.Context, partial string, limit int) ([]db.Document, error)
	Preprocess(ctx context.Context, raw string) (termsuc.Resolution, error)
	Parse(raw string) (triplet.FreeText, error)
	Counts(ctx context.Context, raw string) (domain.TermCounts, error)
}

// StatsService serves the global stats.
type StatsService interface {
	Stat(ctx context.Context, name string) (int64, bool, error)
}

// ImageService selects query images.
type ImageService interface {
	Summary(ctx context.Context, qid string, maxImages int, assortedSubtaxa bool) (image.Summary, error)
}

// AncillaryService serves registry collections.
type AncillaryService interface {
	Documents(ctx context.Context, collection, key string, values, fields []string) ([]db.Document, error)
	Set(ctx context.Context, collection string, minRecords int, fields []string) ([]db.Document, error)
}

// MapService builds map inputs.
type MapService interface {
	Map(ctx context.Context, qid string, offset int, countryISO string) (mapsuc.Map, error)
}

// HealthService checks component health.
type HealthService interface {
	Check(ctx context.Context) healthuc.Report
}

// Services bundles the use cases served over HTTP.
type Services struct {
	Queries   QueryService
	Documents DocumentService
	Summaries SummaryService
	Taxonomy  TaxonomyService
	Terms     TermService
	Stats     StatsService
	Images    ImageService
	Ancillary AncillaryService
	Maps      MapService
	Health    HealthService
}
