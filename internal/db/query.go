package db

import "github.com/kailas-cloud/bioportal/internal/domain/condition"

// IDQuery selects the sorted IDs of documents matching a condition.
type IDQuery struct {
	Collection string
	Where      condition.Condition
	// Limit caps the result when Bounded is set. A bounded zero limit
	// returns no IDs.
	Limit   int
	Bounded bool
}

// SortField orders a find.
type SortField struct {
	Field      string
	Descending bool
}

// FindQuery selects documents by a triplet condition and/or plain criteria.
type FindQuery struct {
	Collection string
	Where      *condition.Condition
	// Terms renders Where against the accepted-terms layout.
	Terms    bool
	Criteria []Criterion
	// Fields projects the result; empty returns whole documents.
	Fields []string
	Sort   []SortField
	Limit  int
}

// GroupQuery groups matching primary records by one field.
type GroupQuery struct {
	Collection string
	Where      condition.Condition
	Field      string
}

// GroupRow is one distinct value of a grouped field.
type GroupRow struct {
	Field      string
	Value      any
	ProcessIDs []string
}

// PathQuery groups matching primary records by their full taxonomic path.
type PathQuery struct {
	Collection string
	Where      condition.Condition
	Ranks      []string
}

// PathRow is one distinct taxonomic path.
type PathRow struct {
	Names      map[string]string
	ProcessIDs []string
}

// LookupQuery joins a registry collection with a summary collection.
type LookupQuery struct {
	Registry    string
	Summary     string
	RegistryKey string
	SummaryKey  string
	// Inner drops registry rows without a summary.
	Inner bool
	// MatchKey and Values restrict registry rows when MatchKey is set.
	MatchKey string
	Values   []any
	Limit    int
}

// DistinctQuery counts distinct values of Field among rows matching Criteria.
type DistinctQuery struct {
	Collection string
	Field      string
	Criteria   []Criterion
}
