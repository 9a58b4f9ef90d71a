// Package ancillary serves registry documents (countries, institutions, BINs
// and the like) merged with the counts of their summaries.
package ancillary

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/bioportal/internal/db"
	"github.com/kailas-cloud/bioportal/internal/domain/aggregate"
	"github.com/kailas-cloud/bioportal/internal/domain/ancillary"
	"github.com/kailas-cloud/bioportal/internal/domain/cachekey"
	"github.com/kailas-cloud/bioportal/internal/logger"
)

// SetTTL is how long a joined set stays cached.
const SetTTL = 24 * time.Hour

const fieldSpecimens = "specimens"

// Service reads ancillary documents.
type Service struct {
	repo Repository
	meta MetaCache
}

// New creates an ancillary service.
func New(repo Repository, meta MetaCache) *Service {
	return &Service{repo: repo, meta: meta}
}

// Documents returns the rows of collection whose key matches one of values,
// projected onto fields when any are given.
func (s *Service) Documents(ctx context.Context, collection, key string, values, fields []string) ([]db.Document, error) {
	j, err := ancillary.Lookup(collection)
	if err != nil {
		return nil, err
	}
	docs, err := s.repo.Match(ctx, j, key, values)
	if err != nil {
		return nil, err
	}
	return project(docs, fields), nil
}

// Set returns every row of collection. A positive minRecords drops rows
// without a summary; above one it also drops rows with fewer specimens.
func (s *Service) Set(ctx context.Context, collection string, minRecords int, fields []string) ([]db.Document, error) {
	j, err := ancillary.Lookup(collection)
	if err != nil {
		return nil, err
	}

	var docs []db.Document
	if collection == ancillary.Taxonomies {
		docs, err = s.repo.Registry(ctx, collection, ancillary.TaxonomiesLimit)
		if err != nil {
			return nil, err
		}
	} else {
		inner := minRecords > 0
		key := cachekey.AncillarySet(j.Registry, j.Summary, j.RegistryKey, j.SummaryKey, ancillary.JoinType(inner))
		if !s.meta.Get(ctx, key, &docs) {
			docs, err = s.repo.All(ctx, j, inner)
			if err != nil {
				return nil, err
			}
			if docs == nil {
				docs = []db.Document{}
			}
			s.meta.Set(ctx, key, docs, SetTTL)
			logger.FromContext(ctx).Debug("Ancillary set cached",
				zap.String("collection", collection), zap.Int("documents", len(docs)))
		}
	}

	if minRecords > 1 {
		kept := docs[:0]
		for _, d := range docs {
			if n, ok := aggregate.Number(d[fieldSpecimens]); ok && n >= float64(minRecords) {
				kept = append(kept, d)
			}
		}
		docs = kept
	}
	return project(docs, fields), nil
}

func project(docs []db.Document, fields []string) []db.Document {
	if docs == nil {
		return []db.Document{}
	}
	if len(fields) == 0 {
		return docs
	}
	out := make([]db.Document, len(docs))
	for i, d := range docs {
		row := make(db.Document, len(fields))
		for _, f := range fields {
			if v, ok := d[f]; ok {
				row[f] = v
			}
		}
		out[i] = row
	}
	return out
}
