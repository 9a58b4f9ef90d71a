// Package taxonomy serves taxonomy maps, per-rank counts and node hierarchies.
package taxonomy

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/bioportal/internal/db"
	"github.com/kailas-cloud/bioportal/internal/domain"
	"github.com/kailas-cloud/bioportal/internal/domain/aggregate"
	"github.com/kailas-cloud/bioportal/internal/domain/cachekey"
	"github.com/kailas-cloud/bioportal/internal/domain/condition"
	"github.com/kailas-cloud/bioportal/internal/domain/extent"
	"github.com/kailas-cloud/bioportal/internal/domain/identity"
	domtax "github.com/kailas-cloud/bioportal/internal/domain/taxonomy"
	"github.com/kailas-cloud/bioportal/internal/domain/triplet"
	"github.com/kailas-cloud/bioportal/internal/logger"
	"github.com/kailas-cloud/bioportal/internal/metrics"
)

const specimensField = "counts.specimens"

// Config holds taxonomy map settings.
type Config struct {
	// CacheAfter is the build time above which a map is cached.
	CacheAfter time.Duration
	CacheTTL   time.Duration
	// DominantShare is the kingdom share above which other kingdoms are dropped.
	DominantShare        float64
	DefaultNodeThreshold int
}

// Service builds taxonomy views of queries.
type Service struct {
	builder   *condition.Builder
	records   RecordRepository
	summaries SummaryRepository
	documents SummaryDocuments
	ids       IDLookup
	nodes     NodeRepository
	meta      MetaCache
	cfg       Config
	now       func() time.Time
}

// New creates a taxonomy service.
func New(
	builder *condition.Builder,
	records RecordRepository,
	summaries SummaryRepository,
	documents SummaryDocuments,
	ids IDLookup,
	nodes NodeRepository,
	meta MetaCache,
	cfg Config,
) *Service {
	if cfg.DominantShare <= 0 {
		cfg.DominantShare = domtax.DefaultDominantShare
	}
	if cfg.DefaultNodeThreshold <= 0 {
		cfg.DefaultNodeThreshold = 1000
	}
	return &Service{
		builder:   builder,
		records:   records,
		summaries: summaries,
		documents: documents,
		ids:       ids,
		nodes:     nodes,
		meta:      meta,
		cfg:       cfg,
		now:       time.Now,
	}
}

// DefaultNodeThreshold is used when a request names no threshold.
func (s *Service) DefaultNodeThreshold() int { return s.cfg.DefaultNodeThreshold }

// Map returns the taxonomy map of the query behind qid.
// Maps that took longer than CacheAfter to build are cached.
func (s *Service) Map(ctx context.Context, qid string, nodeThreshold int) (domtax.Map, error) {
	if nodeThreshold <= 0 {
		nodeThreshold = s.cfg.DefaultNodeThreshold
	}
	q, err := identity.Decode(qid)
	if err != nil {
		return domtax.Map{}, err
	}
	q = q.WithExtent(extent.Full)
	fullID := identity.Encode(q)
	key := cachekey.TaxMap(fullID, nodeThreshold)

	var cached domtax.Map
	if s.meta.Get(ctx, key, &cached) {
		return cached, nil
	}

	started := s.now()
	paths, err := s.paths(ctx, fullID, q)
	if err != nil {
		return domtax.Map{}, err
	}
	out := domtax.BuildMap(paths, nodeThreshold, s.cfg.DominantShare)

	elapsed := s.now().Sub(started)
	metrics.TaxMapBuildSeconds.Observe(elapsed.Seconds())
	if elapsed > s.cfg.CacheAfter {
		s.meta.Set(ctx, key, out, s.cfg.CacheTTL)
	}
	logger.FromContext(ctx).Debug("Taxonomy map built",
		zap.Int("paths", len(paths)),
		zap.Int("node_threshold", nodeThreshold),
		zap.Duration("elapsed", elapsed))
	return out, nil
}

// paths reads taxonomy paths from summary documents when the query allows it,
// and from primary records otherwise.
func (s *Service) paths(ctx context.Context, qid string, q triplet.Query) ([]domtax.Path, error) {
	where, err := s.builder.Build(q.Triplets)
	if err != nil {
		return nil, err
	}

	group := aggregate.DetectScopeGroup(q.Triplets)
	if group != aggregate.GroupSummary {
		return s.records.TaxonomyPaths(ctx, where)
	}
	if _, ok := s.summaries.Collection(group); !ok {
		return s.records.TaxonomyPaths(ctx, where)
	}

	var docs []db.Document
	if _, warm := s.ids.Get(ctx, cachekey.SummaryIDs(qid)); warm {
		docs, err = s.documents.SummaryDocuments(ctx, qid, group, where)
	} else {
		fields := append(append([]string{}, domtax.Ranks...), specimensField)
		docs, err = s.summaries.FieldValues(ctx, group, where, fields)
	}
	if err != nil {
		return nil, fmt.Errorf("taxonomy summaries: %w", err)
	}

	paths := make([]domtax.Path, 0, len(docs))
	for _, d := range docs {
		if p, ok := pathOf(d); ok {
			paths = append(paths, p)
		}
	}
	return paths, nil
}

func pathOf(d db.Document) (domtax.Path, bool) {
	if d == nil {
		return domtax.Path{}, false
	}
	p := domtax.Path{Names: make(map[string]string, len(domtax.Ranks))}
	for _, rank := range domtax.Ranks {
		if name, ok := d[rank].(string); ok && name != "" {
			p.Names[rank] = name
		}
	}
	if counts, ok := d["counts"].(map[string]any); ok {
		n, _ := aggregate.Number(counts["specimens"])
		p.Specimens = int64(n)
	}
	return p, true
}

// ByQuery returns, per rank, the distinct specimens behind each taxon name of the query.
// Every rank is present in the result.
func (s *Service) ByQuery(ctx context.Context, qid string) (map[string]map[string]int64, error) {
	q, err := identity.Decode(qid)
	if err != nil {
		return nil, err
	}
	where, err := s.builder.Build(q.Triplets)
	if err != nil {
		return nil, err
	}

	perRank := make([][]aggregate.GroupRow, len(domtax.Ranks))
	g, gctx := errgroup.WithContext(ctx)
	for i, rank := range domtax.Ranks {
		g.Go(func() error {
			rows, err := s.records.GroupByField(gctx, where, rank)
			if err != nil {
				return fmt.Errorf("group by %s: %w", rank, err)
			}
			perRank[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := domtax.EmptyTaxonomy()
	for i, rank := range domtax.Ranks {
		for _, row := range perRank[i] {
			name, ok := aggregate.FormatValue(row.Value)
			if !ok {
				continue
			}
			out[rank][name] += int64(aggregate.CountDistinct(row.ProcessIDs))
		}
	}
	return out, nil
}

// Hierarchy returns the node named name at rank together with its ancestors
// and immediate children, grouped by rank. ok is false when no such node exists.
func (s *Service) Hierarchy(ctx context.Context, name, rank string) (map[string][]map[string]any, bool, error) {
	if name == "" || domtax.RankIndex(rank) < 0 {
		return nil, false, fmt.Errorf("taxon %q at rank %q: %w", name, rank, domain.ErrInvalidRequest)
	}
	found, err := s.nodes.ByNameAndRank(ctx, name, rank)
	if err != nil {
		return nil, false, err
	}
	if len(found) == 0 {
		return nil, false, nil
	}

	root := found[0]
	tree := domtax.NewTree()
	tree.Add(root)

	child := root
	for range domtax.Ranks {
		if child.ParentTaxID == 0 || child.ParentTaxID == child.TaxID {
			break
		}
		parents, err := s.nodes.ByTaxIDs(ctx, []int64{child.ParentTaxID})
		if err != nil {
			return nil, false, err
		}
		if len(parents) == 0 || !domtax.CanParent(parents[0], child) || !tree.Add(parents[0]) {
			break
		}
		child = parents[0]
	}

	children, err := s.nodes.ByParentTaxIDs(ctx, []int64{root.TaxID})
	if err != nil {
		return nil, false, err
	}
	for _, c := range children {
		if c.TaxID != root.TaxID {
			tree.Add(c)
		}
	}
	return tree.ByRank(), true, nil
}
