// Package idcache is the durable cache of resolved ID lists.
//
// Entries never expire unless a max age is configured; stale entries are
// removed through Delete or Purge.
package idcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/bioportal/internal/db"
	"github.com/kailas-cloud/bioportal/internal/domain/cachekey"
)

const cacheLabel = "ids"

// Buckets lists the keyspaces the durable cache stores.
var Buckets = []string{cachekey.KindQueryIDs.String(), cachekey.KindSummaryIDs.String()}

// store is the consumer interface for the durable ID cache (ISP).
type store interface {
	GetIDs(ctx context.Context, bucket, key string) (db.IDList, error)
	PutIDs(ctx context.Context, bucket, key string, list db.IDList) error
	DeleteIDs(ctx context.Context, bucket, key string) error
	PurgeBefore(ctx context.Context, bucket string, t time.Time) (int, error)
}

// Cache is the durable ID cache.
type Cache struct {
	store      store
	maxAge     time.Duration
	now        func() time.Time
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a durable ID cache. maxAge 0 keeps entries forever.
func New(s store, maxAge time.Duration, cacheTotal *prometheus.CounterVec, logger *zap.Logger) *Cache {
	return &Cache{
		store:      s,
		maxAge:     maxAge,
		now:        time.Now,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Get returns the cached list under key. ok is false when the entry is
// absent, expired or unreadable; an empty cached list is a hit.
func (c *Cache) Get(ctx context.Context, key cachekey.Key) (ids []string, ok bool) {
	bucket, err := bucketOf(key)
	if err != nil {
		c.logger.Error("Invalid ID cache key", zap.Stringer("kind", key.Kind()))
		return nil, false
	}

	list, err := c.store.GetIDs(ctx, bucket, key.ID())
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
		c.inc("miss")
		return nil, false
	case err != nil:
		c.logger.Warn("ID cache read failed", zap.String("bucket", bucket), zap.Error(err))
		c.inc("error")
		return nil, false
	}

	if c.maxAge > 0 && c.now().Sub(list.Created) > c.maxAge {
		c.inc("expired")
		return nil, false
	}
	c.inc("hit")
	return list.IDs, true
}

// Put replaces the list under key.
func (c *Cache) Put(ctx context.Context, key cachekey.Key, ids []string) error {
	bucket, err := bucketOf(key)
	if err != nil {
		return err
	}
	if ids == nil {
		ids = []string{}
	}
	if err := c.store.PutIDs(ctx, bucket, key.ID(), db.IDList{IDs: ids, Created: c.now()}); err != nil {
		return fmt.Errorf("put %s: %w", bucket, err)
	}
	c.inc("write")
	return nil
}

// ReadThrough returns the cached list under key or computes, stores and
// returns it. A failed write is logged; the computed list is still returned.
func (c *Cache) ReadThrough(
	ctx context.Context,
	key cachekey.Key,
	compute func(ctx context.Context) ([]string, error),
) ([]string, error) {
	if ids, ok := c.Get(ctx, key); ok {
		return ids, nil
	}

	ids, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.Put(ctx, key, ids); err != nil {
		c.logger.Warn("ID cache write failed", zap.String("id", key.ID()), zap.Error(err))
	}
	return ids, nil
}

// Delete removes the entry under key.
func (c *Cache) Delete(ctx context.Context, key cachekey.Key) error {
	bucket, err := bucketOf(key)
	if err != nil {
		return err
	}
	if err := c.store.DeleteIDs(ctx, bucket, key.ID()); err != nil {
		return fmt.Errorf("delete %s: %w", bucket, err)
	}
	return nil
}

// Purge removes every entry of every keyspace created before t.
func (c *Cache) Purge(ctx context.Context, t time.Time) (int, error) {
	total := 0
	for _, bucket := range Buckets {
		n, err := c.store.PurgeBefore(ctx, bucket, t)
		if err != nil {
			return total, fmt.Errorf("purge %s: %w", bucket, err)
		}
		total += n
	}
	c.logger.Info("ID cache purged", zap.Int("removed", total), zap.Time("before", t))
	return total, nil
}

func (c *Cache) inc(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(cacheLabel, result).Inc()
	}
}

func bucketOf(key cachekey.Key) (string, error) {
	if !key.Kind().Durable() {
		return "", fmt.Errorf("key kind %s is not stored in the ID cache", key.Kind())
	}
	return key.Kind().String(), nil
}
