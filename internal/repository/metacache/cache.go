// Package metacache stores self-contained JSON snapshots in the shared key-value cache.
//
// The cache is best effort: an unreachable store reads as all misses and
// writes report failure. Neither ever reaches the caller as an error.
package metacache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/bioportal/internal/db"
	"github.com/kailas-cloud/bioportal/internal/domain/cachekey"
)

const cacheLabel = "meta"

// NoExpiry stores an entry without TTL.
const NoExpiry time.Duration = 0

// store is the consumer interface for the meta cache (ISP).
type store interface {
	MGet(ctx context.Context, keys []string) ([][]byte, error)
	MSet(ctx context.Context, items []db.KVItem, ttl time.Duration) ([]bool, error)
}

// Cache is the meta cache.
type Cache struct {
	store      store
	prefix     string
	layout     cachekey.Layout
	defaultTTL time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a meta cache.
// cacheTotal is a counter vec with labels "cache" and "result", passed explicitly.
func New(
	s store,
	prefix string,
	layout cachekey.Layout,
	defaultTTL time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *Cache {
	return &Cache{
		store:      s,
		prefix:     prefix,
		layout:     layout,
		defaultTTL: defaultTTL,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// DefaultTTL returns the TTL applied by SetMany.
func (c *Cache) DefaultTTL() time.Duration { return c.defaultTTL }

// GetMany returns one raw entry per key, nil for misses.
func (c *Cache) GetMany(ctx context.Context, keys []cachekey.Key) [][]byte {
	out := make([][]byte, len(keys))
	if len(keys) == 0 {
		return out
	}

	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.Render(c.prefix, c.layout)
	}

	values, err := c.store.MGet(ctx, names)
	if err != nil {
		c.logger.Warn("Meta cache unavailable on read", zap.Int("keys", len(keys)), zap.Error(err))
		c.inc("error")
		return out
	}

	for i := range out {
		if i < len(values) && len(values[i]) > 0 {
			out[i] = values[i]
			c.inc("hit")
			continue
		}
		c.inc("miss")
	}
	return out
}

// Get decodes the entry under key into dst. It reports false on a miss or
// an undecodable entry.
func (c *Cache) Get(ctx context.Context, key cachekey.Key, dst any) bool {
	raw := c.GetMany(ctx, []cachekey.Key{key})[0]
	if raw == nil {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.logger.Warn("Failed to decode cached entry", zap.String("key", key.String()), zap.Error(err))
		return false
	}
	return true
}

// SetMany writes entries with the default TTL and reports per-entry success.
func (c *Cache) SetMany(ctx context.Context, entries []cachekey.Entry) []bool {
	return c.setMany(ctx, entries, c.defaultTTL)
}

// Set writes one entry with an explicit TTL (NoExpiry for none).
func (c *Cache) Set(ctx context.Context, key cachekey.Key, value any, ttl time.Duration) bool {
	return c.setMany(ctx, []cachekey.Entry{{Key: key, Value: value}}, ttl)[0]
}

func (c *Cache) setMany(ctx context.Context, entries []cachekey.Entry, ttl time.Duration) []bool {
	ok := make([]bool, len(entries))
	if len(entries) == 0 {
		return ok
	}

	items := make([]db.KVItem, 0, len(entries))
	index := make([]int, 0, len(entries))
	for i, e := range entries {
		data, err := encode(e.Value)
		if err != nil {
			c.logger.Warn("Failed to encode cache entry", zap.String("key", e.Key.String()), zap.Error(err))
			continue
		}
		items = append(items, db.KVItem{Key: e.Key.Render(c.prefix, c.layout), Value: data})
		index = append(index, i)
	}
	if len(items) == 0 {
		return ok
	}

	written, err := c.store.MSet(ctx, items, ttl)
	if err != nil {
		c.logger.Warn("Meta cache write failed", zap.Int("keys", len(items)), zap.Error(err))
		c.inc("error")
	}
	for j, i := range index {
		if j < len(written) && written[j] {
			ok[i] = true
			c.inc("write")
		}
	}
	return ok
}

func (c *Cache) inc(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(cacheLabel, result).Inc()
	}
}

func encode(v any) ([]byte, error) {
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(v)
}
