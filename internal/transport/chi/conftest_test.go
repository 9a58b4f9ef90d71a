package chi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

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

type mockQueries struct {
	registerFn func(ctx context.Context, raw string, e extent.Extent) (queryuc.Registration, error)
	tripletsFn func(id string) ([]string, error)
}

func (m *mockQueries) Register(ctx context.Context, raw string, e extent.Extent) (queryuc.Registration, error) {
	return m.registerFn(ctx, raw, e)
}

func (m *mockQueries) Triplets(id string) ([]string, error) { return m.tripletsFn(id) }

type mockDocuments struct {
	pageFn     func(ctx context.Context, qid string, start, length int) (documentsuc.Page, error)
	downloadFn func(ctx context.Context, qid, format string, w io.Writer) error
}

func (m *mockDocuments) Page(ctx context.Context, qid string, start, length int) (documentsuc.Page, error) {
	return m.pageFn(ctx, qid, start, length)
}

func (m *mockDocuments) Download(ctx context.Context, qid, format string, w io.Writer) error {
	return m.downloadFn(ctx, qid, format, w)
}

type mockSummaries struct {
	summarizeFn func(ctx context.Context, req summaryuc.Request) (aggregate.Summary, error)
}

func (m *mockSummaries) Summarize(ctx context.Context, req summaryuc.Request) (aggregate.Summary, error) {
	return m.summarizeFn(ctx, req)
}

type mockTaxonomy struct {
	mapFn       func(ctx context.Context, qid string, threshold int) (domtax.Map, error)
	byQueryFn   func(ctx context.Context, qid string) (map[string]map[string]int64, error)
	hierarchyFn func(ctx context.Context, name, rank string) (map[string][]map[string]any, bool, error)
}

func (m *mockTaxonomy) Map(ctx context.Context, qid string, threshold int) (domtax.Map, error) {
	return m.mapFn(ctx, qid, threshold)
}

func (m *mockTaxonomy) DefaultNodeThreshold() int { return 1000 }

func (m *mockTaxonomy) ByQuery(ctx context.Context, qid string) (map[string]map[string]int64, error) {
	return m.byQueryFn(ctx, qid)
}

func (m *mockTaxonomy) Hierarchy(ctx context.Context, name, rank string) (map[string][]map[string]any, bool, error) {
	return m.hierarchyFn(ctx, name, rank)
}

type mockTerms struct {
	completeFn   func(ctx context.Context, partial string, limit int) ([]db.Document, error)
	preprocessFn func(ctx context.Context, raw string) (termsuc.Resolution, error)
	parseFn      func(raw string) (triplet.FreeText, error)
	countsFn     func(ctx context.Context, raw string) (domain.TermCounts, error)
}

func (m *mockTerms) Complete(ctx context.Context, partial string, limit int) ([]db.Document, error) {
	return m.completeFn(ctx, partial, limit)
}

func (m *mockTerms) Preprocess(ctx context.Context, raw string) (termsuc.Resolution, error) {
	return m.preprocessFn(ctx, raw)
}

func (m *mockTerms) Parse(raw string) (triplet.FreeText, error) { return m.parseFn(raw) }

func (m *mockTerms) Counts(ctx context.Context, raw string) (domain.TermCounts, error) {
	return m.countsFn(ctx, raw)
}

type mockStats struct {
	values map[string]int64
	err    error
}

func (m *mockStats) Stat(_ context.Context, name string) (int64, bool, error) {
	if m.err != nil {
		return 0, false, m.err
	}
	n, ok := m.values[name]
	return n, ok, nil
}

type mockImages struct {
	summaryFn func(ctx context.Context, qid string, maxImages int, assorted bool) (image.Summary, error)
}

func (m *mockImages) Summary(ctx context.Context, qid string, maxImages int, assorted bool) (image.Summary, error) {
	return m.summaryFn(ctx, qid, maxImages, assorted)
}

type mockAncillary struct {
	documentsFn func(ctx context.Context, collection, key string, values, fields []string) ([]db.Document, error)
	setFn       func(ctx context.Context, collection string, minRecords int, fields []string) ([]db.Document, error)
}

func (m *mockAncillary) Documents(
	ctx context.Context, collection, key string, values, fields []string,
) ([]db.Document, error) {
	return m.documentsFn(ctx, collection, key, values, fields)
}

func (m *mockAncillary) Set(ctx context.Context, collection string, minRecords int, fields []string) ([]db.Document, error) {
	return m.setFn(ctx, collection, minRecords, fields)
}

type mockMaps struct {
	mapFn func(ctx context.Context, qid string, offset int, iso string) (mapsuc.Map, error)
}

func (m *mockMaps) Map(ctx context.Context, qid string, offset int, iso string) (mapsuc.Map, error) {
	return m.mapFn(ctx, qid, offset, iso)
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

// newTestRouter mounts the API over svc with a nop logger.
func newTestRouter(t *testing.T, svc Services) http.Handler {
	t.Helper()
	return Handler(NewServer(svc, zap.NewNop()), Options{})
}

func doGet(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}
