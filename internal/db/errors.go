package db

import (
	"errors"

	"github.com/kailas-cloud/bioportal/internal/domain"
)

// Sentinel errors for database operations.
var (
	ErrKeyNotFound = errors.New("db: key not found")
	// ErrMalformed marks a stored value that was read but could not be decoded.
	ErrMalformed = errors.New("db: malformed value")
)

// Op constants name the backend operation for error context.
const (
	OpFind          = "find"
	OpFindIDs       = "find_ids"
	OpFindByIDs     = "find_by_ids"
	OpAggregate     = "aggregate"
	OpGroupBy       = "group_by"
	OpGroupPaths    = "group_paths"
	OpLookup        = "lookup"
	OpCountDistinct = "count_distinct"
	OpPing          = "ping"
	OpMGet          = "MGET"
	OpSet           = "SET"
	OpBoltView      = "bolt.view"
	OpBoltUpdate    = "bolt.update"
	OpBoltDecode    = "bolt.decode"
)

// Error wraps an underlying error with the operation name for diagnostics.
// An Error matches domain.ErrStoreUnavailable unless the backend answered
// with a value that could not be decoded.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *Error) Unwrap() []error {
	if e.Op == OpBoltDecode || errors.Is(e.Err, ErrMalformed) {
		return []error{e.Err}
	}
	return []error{e.Err, domain.ErrStoreUnavailable}
}
