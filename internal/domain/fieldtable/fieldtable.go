// Package fieldtable maps triplet scopes and subscopes to stored field names.
//
// The table is the single source of truth for every caller: the primary-record
// condition builder, the accepted-terms condition builder and the partial-term
// expansion all read from it.
package fieldtable

import "fmt"

// Scope names.
const (
	ScopeTax           = "tax"
	ScopeGeo           = "geo"
	ScopeInst          = "inst"
	ScopeIDs           = "ids"
	ScopeBin           = "bin"
	ScopeRecordsetCode = "recordsetcode"
	ScopeAll           = "all"
)

// Unknown is the placeholder for an absent scope or subscope.
const Unknown = "na"

// Match is the capability tag of an entry.
type Match int

const (
	// Equality matches when the stored scalar equals one of the values.
	Equality Match = iota
	// Membership matches when the stored array holds at least one of the values.
	Membership
	// Wildcard always matches.
	Wildcard
)

func (m Match) String() string {
	switch m {
	case Equality:
		return "equality"
	case Membership:
		return "membership"
	case Wildcard:
		return "wildcard"
	}
	return fmt.Sprintf("match(%d)", int(m))
}

// Entry resolves one (scope, subscope) pair.
type Entry struct {
	Scope    string
	Subscope string
	// Field is the primary-record and summary column.
	Field string
	// TermField is the field name used by the accepted-terms collection.
	// Empty when the pair is not indexed as a term.
	TermField string
	Match     Match
}

// Table is an immutable, versioned lookup table.
type Table struct {
	version string
	entries []Entry
	index   map[string]map[string]Entry
	scopes  []string
}

// New builds a table from entries. Duplicate pairs are rejected.
func New(version string, entries []Entry) (*Table, error) {
	t := &Table{
		version: version,
		entries: make([]Entry, 0, len(entries)),
		index:   make(map[string]map[string]Entry),
	}
	for _, e := range entries {
		if e.Scope == "" || e.Subscope == "" {
			return nil, fmt.Errorf("entry %+v: scope and subscope are required", e)
		}
		if e.Field == "" && e.Match != Wildcard {
			return nil, fmt.Errorf("entry %s:%s: field is required", e.Scope, e.Subscope)
		}
		subs, ok := t.index[e.Scope]
		if !ok {
			subs = make(map[string]Entry)
			t.index[e.Scope] = subs
			t.scopes = append(t.scopes, e.Scope)
		}
		if _, dup := subs[e.Subscope]; dup {
			return nil, fmt.Errorf("duplicate entry %s:%s", e.Scope, e.Subscope)
		}
		subs[e.Subscope] = e
		t.entries = append(t.entries, e)
	}
	return t, nil
}

// MustNew is New that panics on error.
func MustNew(version string, entries []Entry) *Table {
	t, err := New(version, entries)
	if err != nil {
		panic(err)
	}
	return t
}

// Version returns the table version.
func (t *Table) Version() string { return t.version }

// Lookup resolves a pair. ok is false for unknown pairs.
func (t *Table) Lookup(scope, subscope string) (Entry, bool) {
	e, ok := t.index[scope][subscope]
	return e, ok
}

// HasScope reports whether scope is known.
func (t *Table) HasScope(scope string) bool {
	_, ok := t.index[scope]
	return ok
}

// Scopes returns the known scopes in declaration order.
func (t *Table) Scopes() []string {
	out := make([]string, len(t.scopes))
	copy(out, t.scopes)
	return out
}

// Subscopes returns the declared subscopes of scope in declaration order.
// Aliases resolving to an already listed field are skipped.
func (t *Table) Subscopes(scope string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, e := range t.entries {
		if e.Scope != scope || seen[e.Field] {
			continue
		}
		seen[e.Field] = true
		out = append(out, e.Subscope)
	}
	return out
}

// V1 is the table currently served by the portal.
var V1 = MustNew("v1", []Entry{
	{Scope: ScopeTax, Subscope: "kingdom", Field: "kingdom", TermField: "kingdom"},
	{Scope: ScopeTax, Subscope: "phylum", Field: "phylum", TermField: "phylum"},
	{Scope: ScopeTax, Subscope: "class", Field: "class", TermField: "class"},
	{Scope: ScopeTax, Subscope: "order", Field: "order", TermField: "order"},
	{Scope: ScopeTax, Subscope: "family", Field: "family", TermField: "family"},
	{Scope: ScopeTax, Subscope: "subfamily", Field: "subfamily", TermField: "subfamily"},
	{Scope: ScopeTax, Subscope: "tribe", Field: "tribe", TermField: "tribe"},
	{Scope: ScopeTax, Subscope: "genus", Field: "genus", TermField: "genus"},
	{Scope: ScopeTax, Subscope: "species", Field: "species", TermField: "species"},
	{Scope: ScopeTax, Subscope: "subspecies", Field: "subspecies", TermField: "subspecies"},

	{Scope: ScopeGeo, Subscope: "country/ocean", Field: "country/ocean", TermField: "country/ocean"},
	{Scope: ScopeGeo, Subscope: "country", Field: "country/ocean", TermField: "country/ocean"},
	{Scope: ScopeGeo, Subscope: "ocean", Field: "country/ocean", TermField: "country/ocean"},
	{Scope: ScopeGeo, Subscope: "province/state", Field: "province/state", TermField: "province/state"},
	{Scope: ScopeGeo, Subscope: "province", Field: "province/state", TermField: "province/state"},
	{Scope: ScopeGeo, Subscope: "state", Field: "province/state", TermField: "province/state"},
	{Scope: ScopeGeo, Subscope: "region", Field: "region", TermField: "region"},

	{Scope: ScopeInst, Subscope: "name", Field: "inst", TermField: "name"},
	{Scope: ScopeInst, Subscope: "seqsite", Field: "sequence_run_site"},

	{Scope: ScopeIDs, Subscope: "processid", Field: "processid", TermField: "processid"},
	{Scope: ScopeIDs, Subscope: "sampleid", Field: "sampleid", TermField: "sampleid"},
	{Scope: ScopeIDs, Subscope: "insdcacs", Field: "insdc_acs", TermField: "insdcacs"},

	{Scope: ScopeBin, Subscope: "uri", Field: "bin_uri", TermField: "uri"},

	{Scope: ScopeRecordsetCode, Subscope: "code", Field: "bold_recordset_code_arr", TermField: "code", Match: Membership},

	{Scope: ScopeAll, Subscope: Unknown, Match: Wildcard},
})
