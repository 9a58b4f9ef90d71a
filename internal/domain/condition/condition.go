// Package condition turns normalized triplets into a backend-agnostic filter.
//
// Triplets are grouped by scope. Predicates inside a group are OR-joined and
// groups are AND-joined (accepted-terms conditions OR-join everything).
package condition

import (
	"regexp"
	"strings"

	"github.com/kailas-cloud/bioportal/internal/domain"
	"github.com/kailas-cloud/bioportal/internal/domain/fieldtable"
	"github.com/kailas-cloud/bioportal/internal/domain/triplet"
)

var nonWord = regexp.MustCompile(`\W`)

// Predicate matches one field against a bound value list.
type Predicate struct {
	Field  string
	Param  string
	Values []string
	Match  fieldtable.Match
}

// Group holds the OR-joined predicates of one scope.
type Group struct {
	Scope      string
	Always     bool
	Predicates []Predicate
}

// Condition is a built filter with its bound parameters.
type Condition struct {
	Groups []Group
	Params map[string][]string
	// AnyGroup switches group joining from AND to OR.
	AnyGroup bool
}

// Builder builds conditions against an injected field table.
type Builder struct {
	table *fieldtable.Table
}

// NewBuilder creates a builder over table.
func NewBuilder(table *fieldtable.Table) *Builder {
	return &Builder{table: table}
}

// Table returns the field table the builder resolves against.
func (b *Builder) Table() *fieldtable.Table { return b.table }

// Build resolves triplets against the primary-record fields.
// Unknown subscopes are dropped. No usable group yields domain.ErrEmptyQuery.
func (b *Builder) Build(ts []triplet.Triplet) (Condition, error) {
	return b.build(ts, func(e fieldtable.Entry) (string, bool) { return e.Field, true }, false)
}

// BuildTerms resolves triplets against the accepted-terms fields.
func (b *Builder) BuildTerms(ts []triplet.Triplet) (Condition, error) {
	return b.build(ts, func(e fieldtable.Entry) (string, bool) {
		return e.TermField, e.TermField != ""
	}, true)
}

func (b *Builder) build(
	ts []triplet.Triplet,
	column func(fieldtable.Entry) (string, bool),
	anyGroup bool,
) (Condition, error) {
	type fieldValues struct {
		entry  fieldtable.Entry
		field  string
		values []string
		seen   map[string]bool
	}

	var scopes []string
	byScope := make(map[string][]*fieldValues)

	for _, t := range ts {
		e, ok := b.table.Lookup(t.Scope, t.Subscope)
		if !ok {
			continue
		}
		field := ""
		if e.Match != fieldtable.Wildcard {
			if field, ok = column(e); !ok {
				continue
			}
		}

		groups, known := byScope[t.Scope]
		if !known {
			scopes = append(scopes, t.Scope)
		}
		var fv *fieldValues
		for _, g := range groups {
			if g.field == field {
				fv = g
				break
			}
		}
		if fv == nil {
			fv = &fieldValues{entry: e, field: field, seen: make(map[string]bool)}
			byScope[t.Scope] = append(groups, fv)
		}
		if !fv.seen[t.Value] {
			fv.seen[t.Value] = true
			fv.values = append(fv.values, t.Value)
		}
	}

	if len(scopes) == 0 {
		return Condition{}, domain.ErrEmptyQuery
	}

	c := Condition{Params: make(map[string][]string), AnyGroup: anyGroup}
	for _, scope := range scopes {
		g := Group{Scope: scope}
		for _, fv := range byScope[scope] {
			if fv.entry.Match == fieldtable.Wildcard {
				g.Always = true
				continue
			}
			param := ParamName(scope, fv.field)
			c.Params[param] = fv.values
			g.Predicates = append(g.Predicates, Predicate{
				Field:  fv.field,
				Param:  param,
				Values: fv.values,
				Match:  fv.entry.Match,
			})
		}
		c.Groups = append(c.Groups, g)
	}
	return c, nil
}

// ParamName derives the bound parameter name of a scope/field pair.
func ParamName(scope, field string) string {
	return scope + "_" + nonWord.ReplaceAllString(field, "_")
}

// String renders the condition for logs.
func (c Condition) String() string {
	joiner := " AND "
	if c.AnyGroup {
		joiner = " OR "
	}
	parts := make([]string, 0, len(c.Groups))
	for _, g := range c.Groups {
		if g.Always {
			parts = append(parts, "TRUE")
			continue
		}
		preds := make([]string, 0, len(g.Predicates))
		for _, p := range g.Predicates {
			switch p.Match {
			case fieldtable.Membership:
				preds = append(preds, "ANY `"+p.Field+"` IN $"+p.Param)
			default:
				preds = append(preds, "`"+p.Field+"` IN $"+p.Param)
			}
		}
		parts = append(parts, "("+strings.Join(preds, " OR ")+")")
	}
	return strings.Join(parts, joiner)
}
