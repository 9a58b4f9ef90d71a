package chi

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/runtime"
)

// ErrorCode is the machine-readable code of an error response.
type ErrorCode string

// Error codes.
const (
	ErrorCodeBadRequest       ErrorCode = "bad_request"
	ErrorCodeParseError       ErrorCode = "parse_error"
	ErrorCodeEmptyQuery       ErrorCode = "empty_query"
	ErrorCodeDecodeError      ErrorCode = "decode_error"
	ErrorCodeInvalidRequest   ErrorCode = "invalid_request"
	ErrorCodeAmbiguousTerm    ErrorCode = "ambiguous_term"
	ErrorCodeNotFound         ErrorCode = "not_found"
	ErrorCodeStoreUnavailable ErrorCode = "store_unavailable"
	ErrorCodeUpstreamError    ErrorCode = "upstream_error"
	ErrorCodeInternalError    ErrorCode = "internal_error"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Candidates []string  `json:"candidates,omitempty"`
}

// RegisterQueryParams are the parameters of GET /api/query.
type RegisterQueryParams struct {
	Query  string
	Extent *string
}

// DocumentsParams are the parameters of GET /api/documents/{query_id}.
type DocumentsParams struct {
	Start  *int
	Length *int
}

// DownloadParams are the parameters of GET /api/documents/{query_id}/download.
type DownloadParams struct {
	Format *string
}

// SummaryParams are the parameters of GET /api/summary.
type SummaryParams struct {
	Query           string
	Fields          string
	Reduce          *string
	ReduceOperation *string
}

// TaxonomyMapParams are the parameters of GET /api/taxonomy/{query_id}/map.
type TaxonomyMapParams struct {
	NodeThreshold *int
}

// HierarchyParams are the parameters of GET /api/taxonomy/hierarchy.
type HierarchyParams struct {
	Name string
	Rank string
}

// TermsParams are the parameters of GET /api/terms.
type TermsParams struct {
	PartialTerm string
	Limit       *int
}

// ImagesParams are the parameters of GET /api/images/{query_id}.
type ImagesParams struct {
	MaxImages       *int
	AssortedSubtaxa *bool
}

// AncillaryParams are the parameters of GET /api/ancillary.
type AncillaryParams struct {
	Collection string
	Key        string
	Values     string
	Fields     *string
}

// AncillarySetParams are the parameters of GET /api/ancillary-set.
type AncillarySetParams struct {
	Collection string
	Fields     *string
	MinRecords *int
}

// MapParams are the parameters of GET /api/maps/{query_id}.
type MapParams struct {
	Offset     *int
	CountryIso *string
}

// ParamError reports a missing or malformed request parameter.
type ParamError struct {
	Name string
	Err  error
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %v", e.Name, e.Err)
}

func (e *ParamError) Unwrap() error { return e.Err }

// Options configures Handler.
type Options struct {
	BaseRouter       chi.Router
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
	// RequestTimeout bounds every API request except downloads. Zero disables it.
	RequestTimeout time.Duration
}

// Handler mounts the API routes of s onto opts.BaseRouter.
func Handler(s *Server, opts Options) http.Handler {
	r := opts.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	if opts.ErrorHandlerFunc == nil {
		opts.ErrorHandlerFunc = s.ParamErrorHandler
	}
	b := binder{errorFn: opts.ErrorHandlerFunc}

	r.Use(escapeQuerySemicolons)

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/api", func(r chi.Router) {
		r.Get("/documents/{query_id}/download", b.download(s))

		r.Group(func(r chi.Router) {
			if opts.RequestTimeout > 0 {
				r.Use(chiMiddleware.Timeout(opts.RequestTimeout))
			}
			r.Get("/query", b.registerQuery(s))
			r.Get("/query/preprocessor", b.rawQuery(s.Preprocess))
			r.Get("/query/parse", b.rawQuery(s.ParseQuery))
			r.Get("/counts", b.rawQuery(s.Counts))
			r.Get("/summary", b.summary(s))
			r.Get("/stats", b.stats(s))
			r.Get("/terms", b.terms(s))
			r.Get("/ancillary", b.ancillary(s))
			r.Get("/ancillary-set", b.ancillarySet(s))

			r.Get("/documents/{query_id}", b.documents(s))
			r.Get("/documents/{query_id}/query", b.queryID(s.DocumentsQuery))

			r.Get("/taxonomy/hierarchy", b.hierarchy(s))
			r.Get("/taxonomy/{query_id}", b.queryID(s.TaxonomyByQuery))
			r.Get("/taxonomy/{query_id}/map", b.taxonomyMap(s))

			r.Get("/images/{query_id}", b.images(s))
			r.Get("/maps/{query_id}", b.maps(s))
		})
	})
	return r
}

// escapeQuerySemicolons keeps raw ';' inside query values. Triplet queries are
// ';'-delimited and net/url drops any pair containing an unescaped ';'.
func escapeQuerySemicolons(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.RawQuery, ";") {
			r2 := new(http.Request)
			*r2 = *r
			r2.URL = new(url.URL)
			*r2.URL = *r.URL
			r2.URL.RawQuery = strings.ReplaceAll(r.URL.RawQuery, ";", "%3B")
			r = r2
		}
		next.ServeHTTP(w, r)
	})
}

// binder decodes request parameters the way generated oapi-codegen wrappers do.
type binder struct {
	errorFn func(w http.ResponseWriter, r *http.Request, err error)
}

func (b binder) query(w http.ResponseWriter, r *http.Request, name string, required bool, dest any) bool {
	if err := runtime.BindQueryParameter("form", true, required, name, r.URL.Query(), dest); err != nil {
		b.errorFn(w, r, &ParamError{Name: name, Err: err})
		return false
	}
	return true
}

func (b binder) path(w http.ResponseWriter, r *http.Request, name string, dest any) bool {
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), dest,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		b.errorFn(w, r, &ParamError{Name: name, Err: err})
		return false
	}
	return true
}

func (b binder) registerQuery(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p RegisterQueryParams
		if b.query(w, r, "query", true, &p.Query) && b.query(w, r, "extent", false, &p.Extent) {
			s.RegisterQuery(w, r, p)
		}
	}
}

func (b binder) rawQuery(h func(w http.ResponseWriter, r *http.Request, query string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var q string
		if b.query(w, r, "query", true, &q) {
			h(w, r, q)
		}
	}
}

func (b binder) queryID(h func(w http.ResponseWriter, r *http.Request, queryID string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var id string
		if b.path(w, r, "query_id", &id) {
			h(w, r, id)
		}
	}
}

func (b binder) summary(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p SummaryParams
		if b.query(w, r, "query", true, &p.Query) &&
			b.query(w, r, "fields", true, &p.Fields) &&
			b.query(w, r, "reduce", false, &p.Reduce) &&
			b.query(w, r, "reduce_operation", false, &p.ReduceOperation) {
			s.Summary(w, r, p)
		}
	}
}

func (b binder) stats(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var stat string
		if b.query(w, r, "stat", true, &stat) {
			s.Stats(w, r, stat)
		}
	}
}

func (b binder) terms(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p TermsParams
		if b.query(w, r, "partial_term", true, &p.PartialTerm) && b.query(w, r, "limit", false, &p.Limit) {
			s.Terms(w, r, p)
		}
	}
}

func (b binder) ancillary(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p AncillaryParams
		if b.query(w, r, "collection", true, &p.Collection) &&
			b.query(w, r, "key", true, &p.Key) &&
			b.query(w, r, "values", true, &p.Values) &&
			b.query(w, r, "fields", false, &p.Fields) {
			s.Ancillary(w, r, p)
		}
	}
}

func (b binder) ancillarySet(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p AncillarySetParams
		if b.query(w, r, "collection", true, &p.Collection) &&
			b.query(w, r, "fields", false, &p.Fields) &&
			b.query(w, r, "min_records", false, &p.MinRecords) {
			s.AncillarySet(w, r, p)
		}
	}
}

func (b binder) documents(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			id string
			p  DocumentsParams
		)
		if b.path(w, r, "query_id", &id) &&
			b.query(w, r, "start", false, &p.Start) &&
			b.query(w, r, "length", false, &p.Length) {
			s.Documents(w, r, id, p)
		}
	}
}

func (b binder) download(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			id string
			p  DownloadParams
		)
		if b.path(w, r, "query_id", &id) && b.query(w, r, "format", false, &p.Format) {
			s.Download(w, r, id, p)
		}
	}
}

func (b binder) hierarchy(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p HierarchyParams
		if b.query(w, r, "name", true, &p.Name) && b.query(w, r, "rank", true, &p.Rank) {
			s.TaxonomyHierarchy(w, r, p)
		}
	}
}

func (b binder) taxonomyMap(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			id string
			p  TaxonomyMapParams
		)
		if b.path(w, r, "query_id", &id) && b.query(w, r, "node_threshold", false, &p.NodeThreshold) {
			s.TaxonomyMap(w, r, id, p)
		}
	}
}

func (b binder) images(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			id string
			p  ImagesParams
		)
		if b.path(w, r, "query_id", &id) &&
			b.query(w, r, "max_images", false, &p.MaxImages) &&
			b.query(w, r, "assorted_subtaxa", false, &p.AssortedSubtaxa) {
			s.Images(w, r, id, p)
		}
	}
}

func (b binder) maps(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			id string
			p  MapParams
		)
		if b.path(w, r, "query_id", &id) &&
			b.query(w, r, "offset", false, &p.Offset) &&
			b.query(w, r, "country_iso", false, &p.CountryIso) {
			s.Map(w, r, id, p)
		}
	}
}
