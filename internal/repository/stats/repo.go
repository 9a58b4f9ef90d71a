// Package stats computes global statistics over primary records.
package stats

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/bioportal/internal/db"
)

// Stat names.
const (
	TotalSeqs     = "total seqs"
	TotalBins     = "total bins"
	AnimalSpecies = "animal species"
	PlantSpecies  = "plant species"
	FungiSpecies  = "fungi species"
	OtherSpecies  = "other species"
)

const (
	minBaseCount   = 486
	fieldSpecies   = "species"
	fieldMarker    = "marker_code"
	fieldBaseCount = "nuc_basecount"
	fieldKingdom   = "kingdom"
)

// Names lists every stat in report order.
var Names = []string{TotalSeqs, TotalBins, AnimalSpecies, PlantSpecies, FungiSpecies, OtherSpecies}

// Species names matching any of these are informal and not counted.
var informalSpecies = []string{` .* `, ` sp$`, `\.`, `[0-9]`, `Janzen`}

// store is the consumer interface for stat queries (ISP).
type store interface {
	CountDistinct(ctx context.Context, q *db.DistinctQuery) (int64, error)
}

// Repo implements usecase/stats.Repository.
type Repo struct {
	store      store
	collection string
	queries    map[string]db.DistinctQuery
}

// New creates a stats repository over the primary collection.
func New(s store, collection string) *Repo {
	species := func(kingdom *db.CriteriaBuilder, markers ...any) []db.Criterion {
		return kingdom.
			Exists(fieldSpecies).
			Gt(fieldBaseCount, minBaseCount).
			In(fieldMarker, markers...).
			NotMatch(fieldSpecies, informalSpecies...).
			Build()
	}
	return &Repo{
		store:      s,
		collection: collection,
		queries: map[string]db.DistinctQuery{
			TotalSeqs: {Field: "processid", Criteria: db.Where().
				In(fieldMarker, "COI-5P", "rbcL", "matK", "ITS", "rbcLa").
				Gt(fieldBaseCount, minBaseCount).
				Build()},
			TotalBins: {Field: "bin_uri", Criteria: db.Where().Exists("bin_uri").Build()},
			AnimalSpecies: {Field: fieldSpecies, Criteria: species(
				db.Where().Eq(fieldKingdom, "Animalia"), "COI-5P")},
			PlantSpecies: {Field: fieldSpecies, Criteria: species(
				db.Where().Eq(fieldKingdom, "Plantae"), "COI-5P", "matK", "rbcL", "rbcLa", "trnH-psbA")},
			FungiSpecies: {Field: fieldSpecies, Criteria: species(
				db.Where().Eq(fieldKingdom, "Fungi"), "COI-5P", "ITS", "ITS2")},
			OtherSpecies: {Field: fieldSpecies, Criteria: species(
				db.Where().NotIn(fieldKingdom, "Animalia", "Plantae", "Fungi"), "COI-5P")},
		},
	}
}

// Count computes one stat.
func (r *Repo) Count(ctx context.Context, name string) (int64, error) {
	q, ok := r.queries[name]
	if !ok {
		return 0, fmt.Errorf("unknown stat %q", name)
	}
	q.Collection = r.collection
	n, err := r.store.CountDistinct(ctx, &q)
	if err != nil {
		return 0, fmt.Errorf("stat %q: %w", name, err)
	}
	return n, nil
}
