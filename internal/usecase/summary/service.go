// Package summary produces per-field aggregate summaries of a query.
package summary

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/bioportal/internal/db"
	"github.com/kailas-cloud/bioportal/internal/domain"
	"github.com/kailas-cloud/bioportal/internal/domain/aggregate"
	"github.com/kailas-cloud/bioportal/internal/domain/cachekey"
	"github.com/kailas-cloud/bioportal/internal/domain/condition"
	"github.com/kailas-cloud/bioportal/internal/domain/extent"
	"github.com/kailas-cloud/bioportal/internal/domain/identity"
	"github.com/kailas-cloud/bioportal/internal/domain/triplet"
	"github.com/kailas-cloud/bioportal/internal/logger"
)

// ReduceCount collapses a field to the sum of its frequencies.
const ReduceCount = "count"

// Request selects the fields to summarize for a query.
type Request struct {
	Query    triplet.Query
	Fields   []string
	Reduce   []string
	ReduceOp string
}

// Service builds summaries from precomputed summary documents when the query
// allows it, and from primary records otherwise.
type Service struct {
	builder   *condition.Builder
	summaries SummaryRepository
	records   RecordGrouper
	ids       IDCache
	meta      MetaCache
	batch     int
}

// New creates a summary service. batch bounds the summary documents read per cache round trip.
func New(
	builder *condition.Builder,
	summaries SummaryRepository,
	records RecordGrouper,
	ids IDCache,
	meta MetaCache,
	batch int,
) *Service {
	if batch <= 0 {
		batch = 1000
	}
	return &Service{builder: builder, summaries: summaries, records: records, ids: ids, meta: meta, batch: batch}
}

// Summarize returns the frequencies of the requested fields among the records of req.Query.
func (s *Service) Summarize(ctx context.Context, req Request) (aggregate.Summary, error) {
	op := req.ReduceOp
	if op == "" {
		op = ReduceCount
	}
	if op != ReduceCount {
		return aggregate.Summary{}, fmt.Errorf("reduce operation %q: %w", op, domain.ErrInvalidRequest)
	}

	fields := aggregate.SelectFields(req.Fields)
	q := req.Query.WithExtent(extent.Full)
	where, err := s.builder.Build(q.Triplets)
	if err != nil {
		return aggregate.Summary{}, err
	}

	var out aggregate.Summary
	if group := aggregate.DetectScopeGroup(q.Triplets); group != aggregate.GroupNone {
		if _, ok := s.summaries.Collection(group); ok {
			snapshot, err := s.Snapshot(ctx, q, group, where)
			if err != nil {
				return aggregate.Summary{}, err
			}
			out = aggregate.Project(snapshot, fields)
		}
	}
	if out.Empty() {
		out, err = s.fromRecords(ctx, where, fields)
		if err != nil {
			return aggregate.Summary{}, err
		}
	}
	return aggregate.ApplyReduce(out, req.Reduce), nil
}

// FieldCounts returns the frequencies of one field among the records of q.
func (s *Service) FieldCounts(ctx context.Context, q triplet.Query, field string) (aggregate.Counts, error) {
	out, err := s.Summarize(ctx, Request{Query: q, Fields: []string{field}})
	if err != nil {
		return nil, err
	}
	counts := out.Counts[field]
	if counts == nil {
		counts = aggregate.Counts{}
	}
	return counts, nil
}

// Snapshot returns the reduced summary of every field for q, served from the
// meta cache or reduced from the summary documents of group.
func (s *Service) Snapshot(
	ctx context.Context, q triplet.Query, group aggregate.ScopeGroup, where condition.Condition,
) (aggregate.Summary, error) {
	qid := identity.Encode(q.WithExtent(extent.Full))
	key := cachekey.Summary(qid)

	var snapshot aggregate.Summary
	if s.meta.Get(ctx, key, &snapshot) {
		return snapshot, nil
	}

	docs, err := s.SummaryDocuments(ctx, qid, group, where)
	if err != nil {
		return aggregate.Summary{}, err
	}
	flat := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		if d != nil {
			flat = append(flat, aggregate.Flatten(d))
		}
	}
	snapshot = aggregate.Reduce(flat)
	if !snapshot.Empty() {
		s.meta.Set(ctx, key, snapshot, s.meta.DefaultTTL())
	}
	return snapshot, nil
}

// SummaryDocuments returns the summary documents of group behind qid,
// resolving their IDs through the durable cache and each document through
// the meta cache.
func (s *Service) SummaryDocuments(
	ctx context.Context, qid string, group aggregate.ScopeGroup, where condition.Condition,
) ([]db.Document, error) {
	ids, err := s.ids.ReadThrough(ctx, cachekey.SummaryIDs(qid), func(ctx context.Context) ([]string, error) {
		return s.summaries.IDs(ctx, group, where)
	})
	if err != nil {
		return nil, fmt.Errorf("summary ids: %w", err)
	}

	fetch := func(ctx context.Context, ids []string) ([]db.Document, error) {
		return s.summaries.Documents(ctx, group, ids)
	}
	out := make([]db.Document, 0, len(ids))
	for start := 0; start < len(ids); start += s.batch {
		end := min(start+s.batch, len(ids))
		docs, err := s.meta.Documents(ctx, ids[start:end], fetch)
		if err != nil {
			return nil, fmt.Errorf("summary documents: %w", err)
		}
		out = append(out, docs...)
	}
	logger.FromContext(ctx).Debug("Summary documents loaded",
		zap.String("group", string(group)), zap.Int("documents", len(out)))
	return out, nil
}

func (s *Service) fromRecords(ctx context.Context, where condition.Condition, fields []aggregate.Field) (aggregate.Summary, error) {
	perField := make([][]aggregate.GroupRow, len(fields))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range fields {
		g.Go(func() error {
			rows, err := s.records.GroupByField(gctx, where, f.Column)
			if err != nil {
				return fmt.Errorf("summarize %s: %w", f.Name, err)
			}
			perField[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return aggregate.Summary{}, err
	}

	var rows []aggregate.GroupRow
	for _, r := range perField {
		rows = append(rows, r...)
	}
	return aggregate.FromGroupRows(rows, fields), nil
}
