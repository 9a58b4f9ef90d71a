package db

import (
	"context"
	"time"
)

// Document is a stored document decoded into JSON-compatible values.
type Document = map[string]any

// Pinger checks backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVItem holds a single key+value pair for pipelined SET.
type KVItem struct {
	Key   string
	Value []byte
}

// KVStore provides bulk key-value operations for the meta cache.
type KVStore interface {
	Pinger
	// MGet returns one entry per key; missing keys yield nil.
	MGet(ctx context.Context, keys []string) ([][]byte, error)
	// MSet writes all items; ttl 0 means no expiry. The result reports
	// per-item success in input order.
	MSet(ctx context.Context, items []KVItem, ttl time.Duration) ([]bool, error)
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// IDList is a cached ID list with its creation time.
type IDList struct {
	IDs     []string  `json:"ids"`
	Created time.Time `json:"created"`
}

// IDStore persists ID lists per bucket.
type IDStore interface {
	Pinger
	// GetIDs returns ErrKeyNotFound when key is absent.
	GetIDs(ctx context.Context, bucket, key string) (IDList, error)
	PutIDs(ctx context.Context, bucket, key string, list IDList) error
	DeleteIDs(ctx context.Context, bucket, key string) error
	// PurgeBefore removes entries created before t and returns how many were removed.
	PurgeBefore(ctx context.Context, bucket string, t time.Time) (int, error)
	Close() error
}

// DocumentStore provides the document-database queries the portal runs.
//
//nolint:interfacebloat // consumers depend on narrow sub-interfaces
type DocumentStore interface {
	Pinger
	FindIDs(ctx context.Context, q *IDQuery) ([]string, error)
	FindByIDs(ctx context.Context, collection string, ids []string) ([]Document, error)
	Find(ctx context.Context, q *FindQuery) ([]Document, error)
	GroupBy(ctx context.Context, q *GroupQuery) ([]GroupRow, error)
	GroupPaths(ctx context.Context, q *PathQuery) ([]PathRow, error)
	Lookup(ctx context.Context, q *LookupQuery) ([]Document, error)
	CountDistinct(ctx context.Context, q *DistinctQuery) (int64, error)
	Close(ctx context.Context) error
	WaitForReady(ctx context.Context, timeout time.Duration) error
}
