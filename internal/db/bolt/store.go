// Package bolt implements the durable ID cache on a bbolt file.
//
// Each value is an 8-byte big-endian creation timestamp (unix nanoseconds)
// followed by the zstd-compressed JSON ID list, so purges read only headers.
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	bolt "go.etcd.io/bbolt"

	"github.com/kailas-cloud/bioportal/internal/db"
)

// Compile-time check: Store implements db.IDStore.
var _ db.IDStore = (*Store)(nil)

const headerLen = 8

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	decoder, _ = zstd.NewReader(nil)
)

// Config holds the file location and open parameters.
type Config struct {
	Path        string
	OpenTimeout time.Duration
	Buckets     []string
}

// Store is a bbolt-backed db.IDStore.
type Store struct {
	path string
	db   *bolt.DB
}

// Open opens or creates the cache file and its buckets.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}
	timeout := cfg.OpenTimeout
	if timeout <= 0 {
		timeout = time.Second
	}

	bdb, err := bolt.Open(cfg.Path, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("open %s (is another instance running?): %w", cfg.Path, err)
	}

	err = bdb.Update(func(tx *bolt.Tx) error {
		for _, name := range cfg.Buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = bdb.Close()
		return nil, err
	}

	return &Store{path: cfg.Path, db: bdb}, nil
}

// Ping reports whether the file is open and readable.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.View(func(*bolt.Tx) error { return nil })
	if err != nil {
		return &db.Error{Op: db.OpBoltView, Err: err}
	}
	return nil
}

// GetIDs returns the list stored under key, or db.ErrKeyNotFound.
func (s *Store) GetIDs(ctx context.Context, bucket, key string) (db.IDList, error) {
	if err := ctx.Err(); err != nil {
		return db.IDList{}, err
	}

	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return db.IDList{}, &db.Error{Op: db.OpBoltView, Err: err}
	}
	if raw == nil {
		return db.IDList{}, db.ErrKeyNotFound
	}

	list, err := decode(raw)
	if err != nil {
		return db.IDList{}, &db.Error{Op: db.OpBoltDecode, Err: fmt.Errorf("key %s: %w", key, err)}
	}
	return list, nil
}

// PutIDs replaces the list stored under key.
func (s *Store) PutIDs(ctx context.Context, bucket, key string, list db.IDList) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	value, err := encode(list)
	if err != nil {
		return fmt.Errorf("encode key %s: %w", key, err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), value)
	})
	if err != nil {
		return &db.Error{Op: db.OpBoltUpdate, Err: err}
	}
	return nil
}

// DeleteIDs removes key. Deleting an absent key is not an error.
func (s *Store) DeleteIDs(ctx context.Context, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
	if err != nil {
		return &db.Error{Op: db.OpBoltUpdate, Err: err}
	}
	return nil
}

// PurgeBefore removes every entry of bucket created before t.
func (s *Store) PurgeBefore(ctx context.Context, bucket string, t time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	cutoff := t.UnixNano()
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		var stale [][]byte
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if len(v) < headerLen || int64(binary.BigEndian.Uint64(v[:headerLen])) < cutoff {
				stale = append(stale, append([]byte(nil), k...))
			}
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	if err != nil {
		return 0, &db.Error{Op: db.OpBoltUpdate, Err: err}
	}
	return removed, nil
}

// Close closes the file.
func (s *Store) Close() error {
	return s.db.Close()
}

func encode(list db.IDList) ([]byte, error) {
	ids := list.IDs
	if ids == nil {
		ids = []string{}
	}
	payload, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}
	out := make([]byte, headerLen, headerLen+len(payload)/2)
	binary.BigEndian.PutUint64(out, uint64(list.Created.UnixNano()))
	return encoder.EncodeAll(payload, out), nil
}

func decode(raw []byte) (db.IDList, error) {
	if len(raw) < headerLen {
		return db.IDList{}, errors.New("truncated value")
	}
	created := time.Unix(0, int64(binary.BigEndian.Uint64(raw[:headerLen]))).UTC()
	payload, err := decoder.DecodeAll(raw[headerLen:], nil)
	if err != nil {
		return db.IDList{}, fmt.Errorf("zstd: %w", err)
	}
	var ids []string
	if err := json.Unmarshal(payload, &ids); err != nil {
		return db.IDList{}, fmt.Errorf("json: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return db.IDList{IDs: ids, Created: created}, nil
}
