// Package taxonomy builds rank-column maps and parent/child hierarchies of taxa.
package taxonomy

// Ranks lists the taxonomic ranks from coarsest to finest.
var Ranks = []string{
	"kingdom",
	"phylum",
	"class",
	"order",
	"family",
	"subfamily",
	"tribe",
	"genus",
	"species",
	"subspecies",
}

// DefaultDominantShare is the kingdom share above which other kingdoms are dropped.
const DefaultDominantShare = 0.95

// RankIndex returns the position of rank in Ranks, or -1.
func RankIndex(rank string) int {
	for i, r := range Ranks {
		if r == rank {
			return i
		}
	}
	return -1
}

// Path is one taxonomic path and the number of specimens behind it.
type Path struct {
	Names     map[string]string
	Specimens int64
}

// Map is the lineage and per-rank frequency view of a set of paths.
type Map struct {
	Lineage  map[string]string           `json:"taxonomy_lineage"`
	Taxonomy map[string]map[string]int64 `json:"taxonomy"`
}

// EmptyTaxonomy returns a per-rank frequency map with every rank present.
func EmptyTaxonomy() map[string]map[string]int64 {
	out := make(map[string]map[string]int64, len(Ranks))
	for _, r := range Ranks {
		out[r] = make(map[string]int64)
	}
	return out
}

// BuildMap computes the taxonomy map of paths.
//
// Names seen under more than one kingdom are displayed as "name (Kingdom)".
// Ranks are kept coarse to fine while the cumulative distinct-name count stays
// below nodeThreshold; kingdom is always kept. If a kingdom holds more than
// dominantShare of the specimens, every other kingdom is dropped.
func BuildMap(paths []Path, nodeThreshold int, dominantShare float64) Map {
	// Assessment: collisions and distinct names per rank.
	owner := make(map[string]string)
	colliding := make(map[string]bool)
	namesByRank := make(map[string]map[string]struct{}, len(Ranks))
	for _, p := range paths {
		kingdom := p.Names["kingdom"]
		if kingdom == "" {
			continue
		}
		for _, rank := range Ranks {
			name := p.Names[rank]
			if name == "" {
				continue
			}
			if prev, ok := owner[name]; ok && prev != kingdom {
				colliding[name] = true
			}
			owner[name] = kingdom
			if namesByRank[rank] == nil {
				namesByRank[rank] = make(map[string]struct{})
			}
			namesByRank[rank][name] = struct{}{}
		}
	}

	countByRank := make(map[string]int, len(namesByRank))
	for rank, names := range namesByRank {
		countByRank[rank] = len(names)
	}
	columns := Columns(countByRank, nodeThreshold)

	display := func(name, kingdom string) string {
		if name != "" && colliding[name] {
			return name + " (" + kingdom + ")"
		}
		return name
	}

	// Lineage and stats per kingdom.
	lineage := make(map[string]map[string]string)
	stats := make(map[string]map[string]map[string]int64)
	var kingdoms []string
	for _, p := range paths {
		kingdom := p.Names["kingdom"]
		if kingdom == "" {
			continue
		}
		if _, ok := stats[kingdom]; !ok {
			kingdoms = append(kingdoms, kingdom)
			stats[kingdom] = make(map[string]map[string]int64)
			lineage[kingdom] = make(map[string]string)
		}
		addStat(stats[kingdom], "kingdom", kingdom, p.Specimens)

		for i := 1; i < len(columns); i++ {
			childRank := columns[i]
			child := display(p.Names[childRank], kingdom)
			if child == "" {
				continue
			}
			parent := ""
			for j := i - 1; j >= 0 && parent == ""; j-- {
				parent = display(p.Names[columns[j]], kingdom)
			}
			if parent != "" {
				lineage[kingdom][child] = parent
			}
			addStat(stats[kingdom], childRank, child, p.Specimens)
		}
	}

	// Dominant kingdom.
	var total int64
	for _, k := range kingdoms {
		total += stats[k]["kingdom"][k]
	}
	if total > 0 {
		var dominant []string
		for _, k := range kingdoms {
			if float64(stats[k]["kingdom"][k])/float64(total) > dominantShare {
				dominant = append(dominant, k)
			}
		}
		if len(dominant) > 0 {
			kingdoms = dominant
		}
	}

	out := Map{Lineage: make(map[string]string), Taxonomy: EmptyTaxonomy()}
	for _, k := range kingdoms {
		for child, parent := range lineage[k] {
			out.Lineage[child] = parent
		}
		for rank, freqs := range stats[k] {
			for name, n := range freqs {
				out.Taxonomy[rank][name] += n
			}
		}
	}
	return out
}

// Columns returns the ranks kept under nodeThreshold.
// Kingdom is always kept; each finer rank is kept while the cumulative
// distinct-name count including it stays below nodeThreshold.
func Columns(countByRank map[string]int, nodeThreshold int) []string {
	columns := []string{Ranks[0]}
	cumulative := countByRank[Ranks[0]]
	for _, rank := range Ranks[1:] {
		cumulative += countByRank[rank]
		if cumulative >= nodeThreshold {
			break
		}
		columns = append(columns, rank)
	}
	return columns
}

func addStat(stats map[string]map[string]int64, rank, name string, n int64) {
	m, ok := stats[rank]
	if !ok {
		m = make(map[string]int64)
		stats[rank] = m
	}
	m[name] += n
}
