// Package ancillary describes registry collections and the summaries joined onto them.
package ancillary

import (
	"fmt"
	"sort"

	"github.com/kailas-cloud/bioportal/internal/domain"
)

// Join names a registry collection and the summary collection joined onto it.
type Join struct {
	Registry    string
	Summary     string
	RegistryKey string
	SummaryKey  string
}

// Taxonomies is served straight from the registry, without a join.
const Taxonomies = "taxonomies"

// TaxonomiesLimit bounds the rows of the taxonomies set.
const TaxonomiesLimit = 100

var joins = map[string]Join{
	"barcodeclusters": {Registry: "barcodeclusters", Summary: "bin_summaries", RegistryKey: "barcodecluster.uri", SummaryKey: "bin_uri"},
	"countries":       {Registry: "countries", Summary: "country_summaries", RegistryKey: "name", SummaryKey: "country/ocean"},
	"datasets":        {Registry: "datasets", Summary: "dataset_summaries", RegistryKey: "dataset.code", SummaryKey: "dataset.code"},
	"institutions":    {Registry: "institutions", Summary: "institution_summaries", RegistryKey: "name", SummaryKey: "inst"},
	"primers":         {Registry: "primers", Summary: "primer_summaries", RegistryKey: "name", SummaryKey: "name"},
	Taxonomies:        {Registry: Taxonomies, Summary: "taxonomy_summaries", RegistryKey: "taxid", SummaryKey: "taxid"},
}

// Lookup returns the join of a registry collection.
func Lookup(collection string) (Join, error) {
	j, ok := joins[collection]
	if !ok {
		return Join{}, fmt.Errorf("ancillary collection %q: %w", collection, domain.ErrInvalidRequest)
	}
	return j, nil
}

// Collections lists the known registry collections.
func Collections() []string {
	out := make([]string, 0, len(joins))
	for name := range joins {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// JoinType names the join kind in cache keys.
func JoinType(inner bool) string {
	if inner {
		return "inner"
	}
	return "left"
}
