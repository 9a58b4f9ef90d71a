package mongo

import (
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kailas-cloud/bioportal/internal/db"
	"github.com/kailas-cloud/bioportal/internal/domain/condition"
)

// Accepted-terms document fields.
const (
	termScopeField = "scope"
	termFieldField = "field"
	termValueField = "term"
)

// conditionFilter renders a primary-record condition. Predicates of a group are
// $or-joined and groups are $and-joined. An always-true group contributes nothing.
func conditionFilter(c condition.Condition) bson.D {
	var clauses bson.A
	for _, g := range c.Groups {
		if g.Always {
			if c.AnyGroup {
				return bson.D{}
			}
			continue
		}
		preds := make(bson.A, 0, len(g.Predicates))
		for _, p := range g.Predicates {
			// $in on an array field matches when any element is listed,
			// which covers membership predicates too.
			preds = append(preds, bson.D{{Key: p.Field, Value: bson.D{{Key: "$in", Value: stringsA(p.Values)}}}})
		}
		clauses = append(clauses, or(preds))
	}
	return join(c.AnyGroup, clauses)
}

// termsFilter renders a condition against the accepted-terms layout, where
// every term row names its scope and field.
func termsFilter(c condition.Condition) bson.D {
	var clauses bson.A
	for _, g := range c.Groups {
		if g.Always {
			return bson.D{}
		}
		for _, p := range g.Predicates {
			clauses = append(clauses, bson.D{
				{Key: termScopeField, Value: g.Scope},
				{Key: termFieldField, Value: p.Field},
				{Key: termValueField, Value: bson.D{{Key: "$in", Value: stringsA(p.Values)}}},
			})
		}
	}
	return join(true, clauses)
}

// criteriaFilter renders AND-joined plain criteria.
func criteriaFilter(criteria []db.Criterion) bson.A {
	out := make(bson.A, 0, len(criteria))
	for _, c := range criteria {
		var expr any
		switch c.Op {
		case db.OpEq:
			expr = first(c.Values)
		case db.OpIn:
			expr = bson.D{{Key: "$in", Value: bson.A(c.Values)}}
		case db.OpNotIn:
			expr = bson.D{{Key: "$nin", Value: bson.A(c.Values)}}
		case db.OpGt:
			expr = bson.D{{Key: "$gt", Value: first(c.Values)}}
		case db.OpExists:
			expr = bson.D{{Key: "$exists", Value: true}, {Key: "$ne", Value: nil}}
		case db.OpPrefix:
			prefix, _ := first(c.Values).(string)
			expr = bson.D{{Key: "$regex", Value: "^" + regexp.QuoteMeta(prefix)}}
		case db.OpNotMatch:
			patterns := make(bson.A, 0, len(c.Values))
			for _, v := range c.Values {
				if p, ok := v.(string); ok {
					patterns = append(patterns, primitive.Regex{Pattern: p})
				}
			}
			expr = bson.D{{Key: "$nin", Value: patterns}}
		default:
			continue
		}
		out = append(out, bson.D{{Key: c.Field, Value: expr}})
	}
	return out
}

// findFilter combines an optional condition with plain criteria.
func findFilter(q *db.FindQuery) bson.D {
	var clauses bson.A
	if q.Where != nil {
		var f bson.D
		if q.Terms {
			f = termsFilter(*q.Where)
		} else {
			f = conditionFilter(*q.Where)
		}
		if len(f) > 0 {
			clauses = append(clauses, f)
		}
	}
	clauses = append(clauses, criteriaFilter(q.Criteria)...)
	return join(false, clauses)
}

func join(anyOf bool, clauses bson.A) bson.D {
	switch len(clauses) {
	case 0:
		return bson.D{}
	case 1:
		return clauses[0].(bson.D)
	}
	op := "$and"
	if anyOf {
		op = "$or"
	}
	return bson.D{{Key: op, Value: clauses}}
}

func or(preds bson.A) bson.D {
	if len(preds) == 1 {
		return preds[0].(bson.D)
	}
	return bson.D{{Key: "$or", Value: preds}}
}

func stringsA(values []string) bson.A {
	out := make(bson.A, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func first(values []any) any {
	if len(values) == 0 {
		return nil
	}
	return values[0]
}
