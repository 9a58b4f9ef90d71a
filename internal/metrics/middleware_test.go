package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func portalRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Route("/api", func(r chi.Router) {
		r.Get("/documents/{query_id}", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"data":[]}`))
		})
		r.Get("/documents/{query_id}/download", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/x-ndjson")
			_, _ = w.Write([]byte("{}\n"))
			_ = http.NewResponseController(w).Flush()
			_, _ = w.Write([]byte("{}\n"))
		})
		r.Get("/summary", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		})
		r.Get("/query", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	})
	return r
}

func TestMetricsMiddleware_RecordsRoutePattern(t *testing.T) {
	r := portalRouter()

	for _, qid := range []string{"eyJxIjoxfQ", "eyJxIjoyfQ"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest("GET", "/api/documents/"+qid, http.NoBody))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
	}

	got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/documents/{query_id}", "200"))
	if got < 2 {
		t.Errorf("expected both query IDs under one route label, got %f", got)
	}
	if testutil.CollectAndCount(httpRequestDuration) == 0 {
		t.Error("expected http_request_duration_seconds to have observations")
	}
}

func TestMetricsMiddleware_StatusCodes(t *testing.T) {
	r := portalRouter()

	tests := []struct {
		target  string
		pattern string
		status  string
	}{
		{"/api/summary?query=tax:genus:Danaus&fields=species", "/api/summary", "400"},
		{"/api/query?query=tax:genus:Danaus", "/api/query", "503"},
		{"/nope", "unknown", "404"},
	}
	for _, tc := range tests {
		t.Run(tc.pattern, func(t *testing.T) {
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest("GET", tc.target, http.NoBody))

			val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", tc.pattern, tc.status))
			if val < 1 {
				t.Errorf("expected requests_total for %s with status %s >= 1, got %f", tc.pattern, tc.status, val)
			}
		})
	}
}

func TestMetricsMiddleware_StreamedDownload(t *testing.T) {
	r := portalRouter()

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("GET", "/api/documents/eyJxIjoxfQ/download?format=json", http.NoBody))

	if !rr.Flushed {
		t.Error("expected the download to be flushed through the metrics writer")
	}
	if rr.Body.String() != "{}\n{}\n" {
		t.Errorf("body = %q", rr.Body.String())
	}
	val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/documents/{query_id}/download", "200"))
	if val < 1 {
		t.Errorf("expected download requests_total >= 1, got %f", val)
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "unknown"},
		{"/api/documents/{query_id}", "/api/documents/{query_id}"},
		{"/health", "/health"},
	}

	for _, tc := range tests {
		result := normalizePath(tc.input)
		if result != tc.expected {
			t.Errorf("normalizePath(%q) = %q, want %q", tc.input, result, tc.expected)
		}
	}
}

func TestMetricsHandler_ExposesHTTPMetrics(t *testing.T) {
	r := portalRouter()
	r.Handle("/metrics", promhttp.Handler())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/documents/eyJxIjoxfQ", http.NoBody))

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", http.NoBody))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "bioportal_http_requests_total") {
		t.Error("expected bioportal_http_requests_total in the exposition")
	}
}
