package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/bioportal/internal/db"
	"github.com/kailas-cloud/bioportal/internal/domain"
	"github.com/kailas-cloud/bioportal/internal/domain/extent"
	"github.com/kailas-cloud/bioportal/internal/domain/triplet"
	documentsuc "github.com/kailas-cloud/bioportal/internal/usecase/documents"
	healthuc "github.com/kailas-cloud/bioportal/internal/usecase/health"
	summaryuc "github.com/kailas-cloud/bioportal/internal/usecase/summary"
	termsuc "github.com/kailas-cloud/bioportal/internal/usecase/terms"
)

const (
	defaultPageLength = 1
	valuesSeparator   = ";"
	fieldsSeparator   = ","
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the portal API.
type Server struct {
	svc           Services
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(svc Services, logger *zap.Logger) *Server {
	s := &Server{svc: svc, logger: logger}
	s.errorHandlers = []errorHandler{
		ambiguousTermHandler,
		parseErrorHandler,
		sentinelHandler(domain.ErrEmptyQuery, http.StatusBadRequest, ErrorCodeEmptyQuery),
		sentinelHandler(domain.ErrDecode, http.StatusBadRequest, ErrorCodeDecodeError),
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, ErrorCodeInvalidRequest),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorCodeNotFound),
		sentinelHandler(domain.ErrStoreUnavailable, http.StatusServiceUnavailable, ErrorCodeStoreUnavailable),
		sentinelHandler(domain.ErrUpstream, http.StatusBadGateway, ErrorCodeUpstreamError),
	}
	return s
}

// RegisterQuery handles GET /api/query.
func (s *Server) RegisterQuery(w http.ResponseWriter, r *http.Request, params RegisterQueryParams) {
	e, err := extent.Parse(deref(params.Extent))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	reg, err := s.svc.Queries.Register(r.Context(), params.Query, e)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

// Documents handles GET /api/documents/{query_id}.
func (s *Server) Documents(w http.ResponseWriter, r *http.Request, queryID string, params DocumentsParams) {
	length := defaultPageLength
	if params.Length != nil {
		length = *params.Length
	}
	page, err := s.svc.Documents.Page(r.Context(), queryID, deref(params.Start), length)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// DocumentsQuery handles GET /api/documents/{query_id}/query.
func (s *Server) DocumentsQuery(w http.ResponseWriter, r *http.Request, queryID string) {
	triplets, err := s.svc.Queries.Triplets(queryID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"query": strings.Join(triplets, ";")})
}

// Download handles GET /api/documents/{query_id}/download.
func (s *Server) Download(w http.ResponseWriter, r *http.Request, queryID string, params DownloadParams) {
	format := documentsuc.FormatJSON
	if params.Format != nil {
		format = *params.Format
	}
	contentType, err := documentsuc.ContentType(format)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	lw := &lazyWriter{w: w, contentType: contentType, filename: "bioportal_records." + format}
	if err := s.svc.Documents.Download(r.Context(), queryID, format, lw); err != nil {
		if !lw.started {
			s.handleDomainError(w, err)
			return
		}
		s.logger.Error("Download aborted", zap.String("query_id", queryID), zap.Error(err))
		return
	}
	lw.start()
}

// Summary handles GET /api/summary.
func (s *Server) Summary(w http.ResponseWriter, r *http.Request, params SummaryParams) {
	q, err := triplet.Sanitize(params.Query, extent.Default)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	summary, err := s.svc.Summaries.Summarize(r.Context(), summaryuc.Request{
		Query:    q,
		Fields:   splitList(params.Fields, fieldsSeparator),
		Reduce:   splitList(deref(params.Reduce), fieldsSeparator),
		ReduceOp: deref(params.ReduceOperation),
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// TaxonomyByQuery handles GET /api/taxonomy/{query_id}.
func (s *Server) TaxonomyByQuery(w http.ResponseWriter, r *http.Request, queryID string) {
	counts, err := s.svc.Taxonomy.ByQuery(r.Context(), queryID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// TaxonomyMap handles GET /api/taxonomy/{query_id}/map.
func (s *Server) TaxonomyMap(w http.ResponseWriter, r *http.Request, queryID string, params TaxonomyMapParams) {
	threshold := s.svc.Taxonomy.DefaultNodeThreshold()
	if params.NodeThreshold != nil {
		threshold = *params.NodeThreshold
	}
	m, err := s.svc.Taxonomy.Map(r.Context(), queryID, threshold)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// TaxonomyHierarchy handles GET /api/taxonomy/hierarchy.
func (s *Server) TaxonomyHierarchy(w http.ResponseWriter, r *http.Request, params HierarchyParams) {
	h, found, err := s.svc.Taxonomy.Hierarchy(r.Context(), params.Name, params.Rank)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, ErrorCodeNotFound, "taxon not found: "+params.Rank+":"+params.Name)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

// Terms handles GET /api/terms.
func (s *Server) Terms(w http.ResponseWriter, r *http.Request, params TermsParams) {
	hits, err := s.svc.Terms.Complete(r.Context(), params.PartialTerm, deref(params.Limit))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hits)
}

type preprocessResponse struct {
	Successful []termsuc.Match `json:"successful_terms"`
	Failed     []termsuc.Match `json:"failed_terms"`
}

// Preprocess handles GET /api/query/preprocessor.
func (s *Server) Preprocess(w http.ResponseWriter, r *http.Request, query string) {
	res, err := s.svc.Terms.Preprocess(r.Context(), query)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if res.OK() {
		writeJSON(w, http.StatusOK, res)
		return
	}

	if amb := termsuc.Ambiguity(res); amb != nil {
		s.logger.Info("Query preprocessing failed", zap.Error(amb))
	}
	body := preprocessResponse{Successful: res.Successful, Failed: res.Failed}
	if body.Successful == nil {
		body.Successful = []termsuc.Match{}
	}
	if body.Failed == nil {
		body.Failed = []termsuc.Match{}
	}
	writeJSON(w, http.StatusBadRequest, body)
}

// ParseQuery handles GET /api/query/parse.
func (s *Server) ParseQuery(w http.ResponseWriter, _ *http.Request, query string) {
	ft, err := s.svc.Terms.Parse(query)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ft)
}

// Counts handles GET /api/counts.
func (s *Server) Counts(w http.ResponseWriter, r *http.Request, query string) {
	counts, err := s.svc.Terms.Counts(r.Context(), query)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// Stats handles GET /api/stats.
func (s *Server) Stats(w http.ResponseWriter, r *http.Request, stat string) {
	n, ok, err := s.svc.Stats.Stat(r.Context(), stat)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, ErrorCodeNotFound, "unknown stat: "+stat)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{stat: n})
}

// Images handles GET /api/images/{query_id}.
func (s *Server) Images(w http.ResponseWriter, r *http.Request, queryID string, params ImagesParams) {
	maxImages := -1
	if params.MaxImages != nil {
		maxImages = *params.MaxImages
	}
	summary, err := s.svc.Images.Summary(r.Context(), queryID, maxImages, deref(params.AssortedSubtaxa))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Ancillary handles GET /api/ancillary.
func (s *Server) Ancillary(w http.ResponseWriter, r *http.Request, params AncillaryParams) {
	docs, err := s.svc.Ancillary.Documents(r.Context(), params.Collection, params.Key,
		splitList(params.Values, valuesSeparator), splitList(deref(params.Fields), fieldsSeparator))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

// AncillarySet handles GET /api/ancillary-set.
func (s *Server) AncillarySet(w http.ResponseWriter, r *http.Request, params AncillarySetParams) {
	minRecords := deref(params.MinRecords)
	if minRecords < 0 {
		writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "min_records must not be negative")
		return
	}
	docs, err := s.svc.Ancillary.Set(r.Context(), params.Collection, minRecords, splitList(deref(params.Fields), fieldsSeparator))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

// Map handles GET /api/maps/{query_id}.
func (s *Server) Map(w http.ResponseWriter, r *http.Request, queryID string, params MapParams) {
	m, err := s.svc.Maps.Map(r.Context(), queryID, deref(params.Offset), strings.ToUpper(deref(params.CountryIso)))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.svc.Health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, healthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// ParamErrorHandler reports parameter binding failures.
func (s *Server) ParamErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, err.Error())
}

// lazyWriter defers the response headers until the first byte of a download,
// so errors raised before any output still map to a JSON error response.
type lazyWriter struct {
	w           http.ResponseWriter
	contentType string
	filename    string
	started     bool
}

func (l *lazyWriter) start() {
	if l.started {
		return
	}
	l.started = true
	l.w.Header().Set("Content-Type", l.contentType)
	l.w.Header().Set("Content-Disposition", `attachment; filename="`+l.filename+`"`)
	l.w.WriteHeader(http.StatusOK)
}

func (l *lazyWriter) Write(p []byte) (int, error) {
	l.start()
	return l.w.Write(p)
}

func splitList(s, sep string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrEmptyQuery,
		domain.ErrDecode,
		domain.ErrInvalidRequest,
		domain.ErrNotFound,
		domain.ErrStoreUnavailable,
		domain.ErrUpstream,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// parseErrorHandler exposes the offending token of a parse error.
func parseErrorHandler(w http.ResponseWriter, err error, _ string) bool {
	var pe *domain.ParseError
	if !errors.As(err, &pe) {
		return false
	}
	writeError(w, http.StatusBadRequest, ErrorCodeParseError, pe.Error())
	return true
}

// ambiguousTermHandler adds the candidate triplets to the error body.
func ambiguousTermHandler(w http.ResponseWriter, err error, _ string) bool {
	var ae *domain.AmbiguousTermError
	if !errors.As(err, &ae) {
		return false
	}
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Code:       ErrorCodeAmbiguousTerm,
		Message:    ae.Error(),
		Candidates: ae.Candidates,
	})
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	var dbErr *db.Error
	if errors.As(err, &dbErr) {
		s.logger.Error("store error", zap.String("op", dbErr.Op), zap.Error(err))
	} else {
		s.logger.Warn("domain error", zap.Error(err))
	}
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
