package db

// CriterionOp enumerates plain field predicates.
type CriterionOp int

const (
	// OpEq matches a field equal to the single value.
	OpEq CriterionOp = iota
	// OpIn matches a field equal to any of the values.
	OpIn
	// OpNotIn matches a field equal to none of the values.
	OpNotIn
	// OpGt matches a numeric field greater than the single value.
	OpGt
	// OpExists matches a present, non-null field.
	OpExists
	// OpPrefix matches a string field starting with the single value.
	OpPrefix
	// OpNotMatch matches a string field matching none of the patterns.
	OpNotMatch
)

// Criterion is a plain predicate on one field.
type Criterion struct {
	Field  string
	Op     CriterionOp
	Values []any
}

// CriteriaBuilder is a fluent builder for AND-joined criteria.
type CriteriaBuilder struct {
	criteria []Criterion
}

// Where starts building criteria.
func Where() *CriteriaBuilder {
	return &CriteriaBuilder{}
}

// Eq adds a field == value predicate.
func (b *CriteriaBuilder) Eq(field string, value any) *CriteriaBuilder {
	return b.add(field, OpEq, value)
}

// In adds a field IN values predicate.
func (b *CriteriaBuilder) In(field string, values ...any) *CriteriaBuilder {
	return b.add(field, OpIn, values...)
}

// NotIn adds a field NOT IN values predicate.
func (b *CriteriaBuilder) NotIn(field string, values ...any) *CriteriaBuilder {
	return b.add(field, OpNotIn, values...)
}

// Gt adds a field > value predicate.
func (b *CriteriaBuilder) Gt(field string, value any) *CriteriaBuilder {
	return b.add(field, OpGt, value)
}

// Exists adds a field-present predicate.
func (b *CriteriaBuilder) Exists(field string) *CriteriaBuilder {
	return b.add(field, OpExists)
}

// Prefix adds a string-prefix predicate.
func (b *CriteriaBuilder) Prefix(field, prefix string) *CriteriaBuilder {
	return b.add(field, OpPrefix, prefix)
}

// NotMatch adds a predicate rejecting values matching any regular expression.
func (b *CriteriaBuilder) NotMatch(field string, patterns ...string) *CriteriaBuilder {
	values := make([]any, len(patterns))
	for i, p := range patterns {
		values[i] = p
	}
	return b.add(field, OpNotMatch, values...)
}

// Build returns the accumulated criteria.
func (b *CriteriaBuilder) Build() []Criterion {
	out := make([]Criterion, len(b.criteria))
	copy(out, b.criteria)
	return out
}

func (b *CriteriaBuilder) add(field string, op CriterionOp, values ...any) *CriteriaBuilder {
	b.criteria = append(b.criteria, Criterion{Field: field, Op: op, Values: values})
	return b
}
