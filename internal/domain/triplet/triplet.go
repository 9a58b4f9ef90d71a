// Package triplet parses and normalizes scope:subscope:value search tokens.
package triplet

import (
	"sort"
	"strings"

	"github.com/kailas-cloud/bioportal/internal/domain"
	"github.com/kailas-cloud/bioportal/internal/domain/extent"
	"github.com/kailas-cloud/bioportal/internal/domain/fieldtable"
)

const (
	partSep  = ":"
	tokenSep = ";"
)

// Triplet is a (scope, subscope, value) search token.
type Triplet struct {
	Scope    string
	Subscope string
	Value    string
}

// Parse splits a token into a triplet, padding missing scope and subscope with "na".
func Parse(token string) (Triplet, error) {
	parts := strings.SplitN(token, partSep, 3)
	for len(parts) < 3 {
		last := parts[len(parts)-1]
		parts = append(parts[:len(parts)-1], fieldtable.Unknown, last)
	}
	for i := 0; i < 2; i++ {
		if strings.TrimSpace(parts[i]) == "" {
			parts[i] = fieldtable.Unknown
		}
	}
	if parts[2] == "" {
		return Triplet{}, domain.NewParseError(token, "value is empty")
	}
	return Triplet{Scope: parts[0], Subscope: parts[1], Value: parts[2]}, nil
}

// ParseStrict accepts only fully formed scope:subscope:value tokens.
func ParseStrict(token string) (Triplet, error) {
	parts := strings.SplitN(token, partSep, 3)
	if len(parts) != 3 {
		return Triplet{}, domain.NewParseError(token, "expected scope:subscope:value")
	}
	if parts[2] == "" {
		return Triplet{}, domain.NewParseError(token, "value is empty")
	}
	return Triplet{Scope: parts[0], Subscope: parts[1], Value: parts[2]}, nil
}

// Normalize lowercases scope and subscope. The value is kept verbatim.
func (t Triplet) Normalize() Triplet {
	return Triplet{
		Scope:    strings.ToLower(t.Scope),
		Subscope: strings.ToLower(t.Subscope),
		Value:    t.Value,
	}
}

func (t Triplet) String() string {
	return t.Scope + partSep + t.Subscope + partSep + t.Value
}

// HasPrefix reports whether the rendered triplet starts with prefix.
func (t Triplet) HasPrefix(prefix string) bool {
	return strings.HasPrefix(t.String(), prefix)
}

// Matches reports whether resolved satisfies t. "na" scope and subscope match anything.
func (t Triplet) Matches(resolved Triplet) bool {
	return (t.Scope == fieldtable.Unknown || t.Scope == resolved.Scope) &&
		(t.Subscope == fieldtable.Unknown || t.Subscope == resolved.Subscope) &&
		t.Value == resolved.Value
}

// Partial builds the na:na:term triplet for a bare term.
func Partial(term string) Triplet {
	return Triplet{Scope: fieldtable.Unknown, Subscope: fieldtable.Unknown, Value: term}
}

// Expand guesses the triplets a bare identifier-like term stands for.
func Expand(term string, table *fieldtable.Table) []Triplet {
	scope := fieldtable.ScopeIDs
	switch {
	case strings.HasPrefix(term, "BOLD:"):
		scope = fieldtable.ScopeBin
	case strings.HasPrefix(term, "DS-"), strings.HasPrefix(term, "DATASET-"):
		scope = fieldtable.ScopeRecordsetCode
	}

	subs := table.Subscopes(scope)
	out := make([]Triplet, 0, len(subs))
	for _, sub := range subs {
		out = append(out, Triplet{Scope: scope, Subscope: sub, Value: term})
	}
	return out
}

// Join renders triplets separated by ";".
func Join(ts []Triplet) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, tokenSep)
}

// Query is a sorted triplet list plus its extent marker.
type Query struct {
	Triplets []Triplet
	Extent   extent.Extent
}

// Sanitize turns a raw ";"-separated query into a sorted, normalized Query.
func Sanitize(raw string, e extent.Extent) (Query, error) {
	if !e.Valid() {
		return Query{}, domain.NewParseError(string(e), "unknown extent")
	}

	var ts []Triplet
	for _, token := range strings.Split(raw, tokenSep) {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		t, err := Parse(token)
		if err != nil {
			return Query{}, err
		}
		ts = append(ts, t.Normalize())
	}
	if len(ts) == 0 {
		return Query{}, domain.ErrEmptyQuery
	}

	sort.SliceStable(ts, func(i, j int) bool { return ts[i].String() < ts[j].String() })
	return Query{Triplets: ts, Extent: e}, nil
}

// WithExtent returns a copy of q carrying another extent.
func (q Query) WithExtent(e extent.Extent) Query {
	ts := make([]Triplet, len(q.Triplets))
	copy(ts, q.Triplets)
	return Query{Triplets: ts, Extent: e}
}

// Elements returns the rendered triplets followed by the extent marker.
func (q Query) Elements() []string {
	out := make([]string, 0, len(q.Triplets)+1)
	for _, t := range q.Triplets {
		out = append(out, t.String())
	}
	return append(out, string(q.Extent))
}

// String renders the triplets without the extent.
func (q Query) String() string {
	return Join(q.Triplets)
}
