// Package query registers triplet queries and resolves them to document IDs.
package query

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/bioportal/internal/domain/cachekey"
	"github.com/kailas-cloud/bioportal/internal/domain/condition"
	"github.com/kailas-cloud/bioportal/internal/domain/extent"
	"github.com/kailas-cloud/bioportal/internal/domain/identity"
	"github.com/kailas-cloud/bioportal/internal/domain/triplet"
)

// Registration is the result of registering a query.
type Registration struct {
	QueryID string `json:"query_id"`
	// ExtentLimit is nil for the full extent.
	ExtentLimit *int `json:"extent_limit"`
}

// Service resolves queries to document IDs through the durable ID cache.
type Service struct {
	builder  *condition.Builder
	policy   extent.Policy
	resolver Resolver
	cache    IDCache
}

// New creates a query service.
func New(builder *condition.Builder, policy extent.Policy, resolver Resolver, cache IDCache) *Service {
	return &Service{builder: builder, policy: policy, resolver: resolver, cache: cache}
}

// Builder returns the condition builder shared by the portal services.
func (s *Service) Builder() *condition.Builder { return s.builder }

// ResolveIDs returns the sorted IDs of primary records matching q, capped by its extent.
// The zero extent returns an empty list without touching the store.
func (s *Service) ResolveIDs(ctx context.Context, q triplet.Query) ([]string, error) {
	where, err := s.builder.Build(q.Triplets)
	if err != nil {
		return nil, err
	}
	limit, bounded := s.policy.Limit(q.Extent)
	return s.resolver.ResolveIDs(ctx, where, limit, bounded)
}

// ResolveIDsUpTo is ResolveIDs with the result additionally capped at maxIDs.
// The cap is applied by the store.
func (s *Service) ResolveIDsUpTo(ctx context.Context, q triplet.Query, maxIDs int) ([]string, error) {
	where, err := s.builder.Build(q.Triplets)
	if err != nil {
		return nil, err
	}
	limit, bounded := s.policy.Limit(q.Extent)
	if !bounded || maxIDs < limit {
		limit = maxIDs
	}
	return s.resolver.ResolveIDs(ctx, where, limit, true)
}

// Register sanitizes raw, derives its identity and makes sure its IDs are cached.
func (s *Service) Register(ctx context.Context, raw string, e extent.Extent) (Registration, error) {
	q, err := triplet.Sanitize(raw, e)
	if err != nil {
		return Registration{}, err
	}
	id := identity.Encode(q)
	if _, err := s.readThrough(ctx, id, q); err != nil {
		return Registration{}, err
	}
	return Registration{QueryID: id, ExtentLimit: s.policy.ExtentLimit(q.Extent)}, nil
}

// IDs decodes id and returns its sorted document IDs, resolving them on a cache miss.
func (s *Service) IDs(ctx context.Context, id string) ([]string, triplet.Query, error) {
	q, err := identity.Decode(id)
	if err != nil {
		return nil, triplet.Query{}, err
	}
	ids, err := s.readThrough(ctx, id, q)
	if err != nil {
		return nil, triplet.Query{}, err
	}
	return ids, q, nil
}

// Triplets returns the query elements behind id: its triplets then its extent.
func (s *Service) Triplets(id string) ([]string, error) {
	q, err := identity.Decode(id)
	if err != nil {
		return nil, err
	}
	return q.Elements(), nil
}

func (s *Service) readThrough(ctx context.Context, id string, q triplet.Query) ([]string, error) {
	ids, err := s.cache.ReadThrough(ctx, cachekey.QueryIDs(id), func(ctx context.Context) ([]string, error) {
		return s.ResolveIDs(ctx, q)
	})
	if err != nil {
		return nil, fmt.Errorf("resolve query: %w", err)
	}
	return ids, nil
}
