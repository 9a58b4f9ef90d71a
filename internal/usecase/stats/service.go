// Package stats serves global statistics of the primary records.
package stats

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/bioportal/internal/domain/cachekey"
	"github.com/kailas-cloud/bioportal/internal/logger"
)

// noExpiry keeps the snapshot until it is evicted by hand.
const noExpiry time.Duration = 0

// Service computes every stat once and serves them from the meta cache.
type Service struct {
	repo  Repository
	meta  MetaCache
	names []string
}

// New creates a stats service over the named stats.
func New(repo Repository, meta MetaCache, names []string) *Service {
	return &Service{repo: repo, meta: meta, names: names}
}

// Stat returns one stat by name. ok is false for an unknown stat.
func (s *Service) Stat(ctx context.Context, name string) (n int64, ok bool, err error) {
	all, err := s.All(ctx)
	if err != nil {
		return 0, false, err
	}
	n, ok = all[name]
	return n, ok, nil
}

// All returns the stats snapshot, computing it on the first call.
func (s *Service) All(ctx context.Context) (map[string]int64, error) {
	var snapshot map[string]int64
	if s.meta.Get(ctx, cachekey.Stats(), &snapshot) && snapshot != nil {
		return snapshot, nil
	}

	values := make([]int64, len(s.names))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range s.names {
		g.Go(func() error {
			n, err := s.repo.Count(gctx, name)
			if err != nil {
				return err
			}
			values[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("compute stats: %w", err)
	}

	snapshot = make(map[string]int64, len(s.names))
	for i, name := range s.names {
		snapshot[name] = values[i]
	}
	s.meta.Set(ctx, cachekey.Stats(), snapshot, noExpiry)
	logger.FromContext(ctx).Info("Stats computed", zap.Any("stats", snapshot))
	return snapshot, nil
}
