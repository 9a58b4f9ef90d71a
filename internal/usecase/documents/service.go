// Package documents pages and exports the records of a query.
package documents

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"go.uber.org/zap"

	"github.com/kailas-cloud/bioportal/internal/db"
	"github.com/kailas-cloud/bioportal/internal/domain"
	"github.com/kailas-cloud/bioportal/internal/domain/extent"
	"github.com/kailas-cloud/bioportal/internal/domain/identity"
	"github.com/kailas-cloud/bioportal/internal/logger"
)

// Export formats.
const (
	FormatJSON = "json"
	FormatTSV  = "tsv"
)

const (
	idField    = "_id"
	countField = "count"
)

// Config holds paging and export settings.
type Config struct {
	DefaultFields []string
	DownloadBatch int
	DownloadMax   int
}

// Page is one window of a query's records.
type Page struct {
	Data            []map[string]any `json:"data"`
	RecordsTotal    int              `json:"recordsTotal"`
	RecordsFiltered int              `json:"recordsFiltered"`
}

// Service serves query records.
type Service struct {
	queries QueryResolver
	records RecordFetcher
	cache   DocumentCache
	cfg     Config
}

// New creates a documents service.
func New(queries QueryResolver, records RecordFetcher, cache DocumentCache, cfg Config) *Service {
	if cfg.DownloadBatch <= 0 {
		cfg.DownloadBatch = 10000
	}
	if cfg.DownloadMax <= 0 {
		cfg.DownloadMax = 1000000
	}
	return &Service{queries: queries, records: records, cache: cache, cfg: cfg}
}

// ContentType returns the media type of an export format.
func ContentType(format string) (string, error) {
	switch format {
	case FormatJSON:
		return "application/x-ndjson", nil
	case FormatTSV:
		return "text/tab-separated-values", nil
	}
	return "", fmt.Errorf("download format %q: %w", format, domain.ErrInvalidRequest)
}

// Page returns length records of qid starting at start. Every row carries the
// default fields, null when absent, and the total record count.
func (s *Service) Page(ctx context.Context, qid string, start, length int) (Page, error) {
	if start < 0 || length < 0 {
		return Page{}, fmt.Errorf("page window %d+%d: %w", start, length, domain.ErrInvalidRequest)
	}
	ids, _, err := s.queries.IDs(ctx, qid)
	if err != nil {
		return Page{}, err
	}

	total := len(ids)
	from := min(start, total)
	to := min(from+length, total)

	docs, err := s.cache.Documents(ctx, ids[from:to], s.records.FetchByIDs)
	if err != nil {
		return Page{}, fmt.Errorf("page documents: %w", err)
	}

	data := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		if d == nil {
			continue
		}
		row := make(map[string]any, len(s.cfg.DefaultFields)+len(d)+1)
		for _, f := range s.cfg.DefaultFields {
			row[f] = nil
		}
		for k, v := range d {
			row[k] = v
		}
		row[countField] = total
		data = append(data, row)
	}
	return Page{Data: data, RecordsTotal: total, RecordsFiltered: total}, nil
}

// Download writes every record of qid to w. The query is resolved at the full
// extent without the ID cache, capped at DownloadMax records and exported in
// sequential batches.
func (s *Service) Download(ctx context.Context, qid, format string, w io.Writer) error {
	if _, err := ContentType(format); err != nil {
		return err
	}
	q, err := identity.Decode(qid)
	if err != nil {
		return err
	}
	ctx = logger.With(ctx, zap.String("query_id", qid))
	ids, err := s.queries.ResolveIDsUpTo(ctx, q.WithExtent(extent.Full), s.cfg.DownloadMax)
	if err != nil {
		return err
	}

	var enc encoder
	if format == FormatTSV {
		enc = &tsvEncoder{w: csv.NewWriter(w), defaults: s.cfg.DefaultFields}
	} else {
		enc = &jsonEncoder{enc: json.NewEncoder(w)}
	}

	for from := 0; from < len(ids); from += s.cfg.DownloadBatch {
		if err := ctx.Err(); err != nil {
			return err
		}
		to := min(from+s.cfg.DownloadBatch, len(ids))
		docs, err := s.records.FetchByIDs(ctx, ids[from:to])
		if err != nil {
			return fmt.Errorf("download batch %d: %w", from/s.cfg.DownloadBatch, err)
		}
		for _, d := range docs {
			delete(d, idField)
		}
		if err := enc.encode(docs); err != nil {
			return fmt.Errorf("write batch: %w", err)
		}
	}
	logger.FromContext(ctx).Info("Download finished",
		zap.String("format", format), zap.Int("records", len(ids)))
	return nil
}

type encoder interface {
	encode(docs []db.Document) error
}

// jsonEncoder writes one JSON object per line.
type jsonEncoder struct {
	enc *json.Encoder
}

func (e *jsonEncoder) encode(docs []db.Document) error {
	for _, d := range docs {
		if err := e.enc.Encode(d); err != nil {
			return err
		}
	}
	return nil
}

// tsvEncoder writes a header from the first batch, then one row per record.
// Columns are the default fields followed by the other keys of the first batch, sorted.
type tsvEncoder struct {
	w        *csv.Writer
	defaults []string
	columns  []string
}

func (e *tsvEncoder) encode(docs []db.Document) error {
	if e.columns == nil {
		e.columns = columnsOf(e.defaults, docs)
		e.w.Comma = '\t'
		if err := e.w.Write(e.columns); err != nil {
			return err
		}
	}
	record := make([]string, len(e.columns))
	for _, d := range docs {
		for i, c := range e.columns {
			record[i] = cell(d[c])
		}
		if err := e.w.Write(record); err != nil {
			return err
		}
	}
	e.w.Flush()
	return e.w.Error()
}

func columnsOf(defaults []string, docs []db.Document) []string {
	columns := append([]string{}, defaults...)
	known := make(map[string]bool, len(defaults))
	for _, f := range defaults {
		known[f] = true
	}
	var extra []string
	for _, d := range docs {
		for k := range d {
			if !known[k] {
				known[k] = true
				extra = append(extra, k)
			}
		}
	}
	sort.Strings(extra)
	return append(columns, extra...)
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
