package metacache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/bioportal/internal/db"
	"github.com/kailas-cloud/bioportal/internal/domain/cachekey"
)

const idField = "_id"

// Documents returns the documents with ids in input order, reading each
// through the cache. Misses are loaded with fetch, matched on "_id" and
// written back with the default TTL. IDs absent from both yield nil entries.
func (c *Cache) Documents(
	ctx context.Context,
	ids []string,
	fetch func(ctx context.Context, ids []string) ([]db.Document, error),
) ([]db.Document, error) {
	keys := make([]cachekey.Key, len(ids))
	for i, id := range ids {
		keys[i] = cachekey.Document(id)
	}

	out := make([]db.Document, len(ids))
	var missing []string
	missingAt := make(map[string][]int)
	for i, raw := range c.GetMany(ctx, keys) {
		if raw != nil {
			doc, err := decodeDocument(raw)
			if err == nil {
				out[i] = doc
				continue
			}
			c.logger.Warn("Undecodable cached document", zap.String("id", ids[i]), zap.Error(err))
		}
		if _, seen := missingAt[ids[i]]; !seen {
			missing = append(missing, ids[i])
		}
		missingAt[ids[i]] = append(missingAt[ids[i]], i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := fetch(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("fetch %d documents: %w", len(missing), err)
	}
	entries := make([]cachekey.Entry, 0, len(fetched))
	for _, doc := range fetched {
		id := fmt.Sprint(doc[idField])
		positions, ok := missingAt[id]
		if !ok {
			continue
		}
		delete(doc, idField)
		for _, i := range positions {
			out[i] = doc
		}
		entries = append(entries, cachekey.Entry{Key: cachekey.Document(id), Value: doc})
	}
	c.SetMany(ctx, entries)
	return out, nil
}

func decodeDocument(raw []byte) (db.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc db.Document
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}
