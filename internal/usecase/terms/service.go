// Package terms completes, resolves and counts accepted search terms.
package terms

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/bioportal/internal/db"
	"github.com/kailas-cloud/bioportal/internal/domain"
	"github.com/kailas-cloud/bioportal/internal/domain/condition"
	"github.com/kailas-cloud/bioportal/internal/domain/extent"
	"github.com/kailas-cloud/bioportal/internal/domain/triplet"
)

// Completion limits.
const (
	DefaultLimit  = 20
	MaxLimit      = 200
	minPrefixSize = 3
)

var standardize = strings.NewReplacer(`"`, "-", "?", "-", "'", "-", " ", "_")

// Match pairs a submitted token with what it resolved to.
type Match struct {
	Submitted string `json:"submitted"`
	Matched   string `json:"matched"`
}

// Resolution is the outcome of preprocessing a query.
type Resolution struct {
	Successful []Match `json:"successful_terms"`
	Failed     []Match `json:"failed_terms,omitempty"`
}

// OK reports whether every token resolved and at least one did.
func (r Resolution) OK() bool { return len(r.Failed) == 0 && len(r.Successful) > 0 }

// Service serves the accepted-terms operations.
type Service struct {
	builder *condition.Builder
	repo    Repository
}

// New creates a terms service.
func New(builder *condition.Builder, repo Repository) *Service {
	return &Service{builder: builder, repo: repo}
}

// Complete returns the most used terms starting with partial. A leading
// "scope:" restricts the search when scope is known.
func (s *Service) Complete(ctx context.Context, partial string, limit int) ([]db.Document, error) {
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}

	scope := ""
	if before, after, found := strings.Cut(partial, ":"); found && s.builder.Table().HasScope(before) {
		scope, partial = before, after
	}

	prefix := Standardize(partial)
	if len([]rune(prefix)) < minPrefixSize {
		return nil, fmt.Errorf("term %q is too short: %w", prefix, domain.ErrInvalidRequest)
	}
	hits, err := s.repo.Hits(ctx, prefix, scope, limit)
	if err != nil {
		return nil, err
	}
	if hits == nil {
		hits = []db.Document{}
	}
	return hits, nil
}

// Standardize renders a term the way the accepted-terms index stores it.
func Standardize(term string) string {
	return standardize.Replace(strings.ToLower(strings.TrimSpace(term)))
}

// Preprocess resolves every ";"-separated token of raw against the accepted
// terms. Tokens with no accepted term succeed with their identifier
// expansion; tokens matching several accepted terms fail with every candidate.
func (s *Service) Preprocess(ctx context.Context, raw string) (Resolution, error) {
	res := Resolution{Successful: []Match{}, Failed: []Match{}}
	for _, token := range strings.Split(raw, ";") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		parts := strings.SplitN(token, ":", 3)
		term := parts[len(parts)-1]

		resolved, err := s.repo.Resolve(ctx, term)
		if err != nil {
			return Resolution{}, err
		}
		if len(resolved) == 0 {
			res.Successful = append(res.Successful, Match{
				Submitted: token,
				Matched:   triplet.Join(triplet.Expand(term, s.builder.Table())),
			})
			continue
		}

		padded, err := triplet.Parse(token)
		if err != nil {
			return Resolution{}, err
		}
		submitted := padded.Normalize()

		var matched []triplet.Triplet
		for _, r := range resolved {
			if submitted.Matches(r) {
				matched = append(matched, r)
			}
		}
		if len(matched) == 1 {
			res.Successful = append(res.Successful, Match{Submitted: padded.String(), Matched: matched[0].String()})
			continue
		}
		res.Failed = append(res.Failed, Match{Submitted: padded.String(), Matched: triplet.Join(resolved)})
	}
	return res, nil
}

// Ambiguity returns the error describing the first failed token of res, or nil.
func Ambiguity(res Resolution) error {
	if len(res.Failed) == 0 {
		return nil
	}
	f := res.Failed[0]
	return &domain.AmbiguousTermError{Submitted: f.Submitted, Candidates: strings.Split(f.Matched, ";")}
}

// Parse turns a free-text query into triplets.
func (s *Service) Parse(raw string) (triplet.FreeText, error) {
	return triplet.ParseFreeText(raw)
}

// Counts sums the record and summary tallies of the accepted terms matching raw.
func (s *Service) Counts(ctx context.Context, raw string) (domain.TermCounts, error) {
	q, err := triplet.Sanitize(raw, extent.Default)
	if err != nil {
		return domain.TermCounts{}, err
	}
	where, err := s.builder.BuildTerms(q.Triplets)
	if err != nil {
		return domain.TermCounts{}, err
	}
	return s.repo.Counts(ctx, where)
}
