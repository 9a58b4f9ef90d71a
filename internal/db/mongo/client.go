// Package mongo implements db.DocumentStore over the MongoDB driver.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/kailas-cloud/bioportal/internal/db"
)

// Compile-time check: Store implements db.DocumentStore.
var _ db.DocumentStore = (*Store)(nil)

// Config holds connection parameters for the document store.
type Config struct {
	URI      string
	Database string
	// Timeout bounds every operation issued by the client.
	Timeout time.Duration
}

// Observer receives the duration of every store operation.
type Observer func(op string, elapsed time.Duration)

// Option configures a Store.
type Option func(*Store)

// WithQueryLogger sets the logger receiving one entry per query.
func WithQueryLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = newQueryLog(l) }
}

// WithObserver sets the per-operation duration hook.
func WithObserver(o Observer) Option {
	return func(s *Store) { s.observe = o }
}

// Store implements db.DocumentStore.
type Store struct {
	client  *mongo.Client
	db      *mongo.Database
	log     *queryLog
	observe Observer
}

// NewStore connects to MongoDB. The connection is verified by WaitForReady.
func NewStore(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("uri is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("database is required")
	}

	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetBSONOptions(bsonOptions())
	if cfg.Timeout > 0 {
		clientOpts.SetTimeout(cfg.Timeout)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	return newStore(client, client.Database(cfg.Database), opts...), nil
}

func newStore(client *mongo.Client, database *mongo.Database, opts ...Option) *Store {
	s := &Store{
		client:  client,
		db:      database,
		log:     newQueryLog(zap.NewNop()),
		observe: func(string, time.Duration) {},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// bsonOptions decodes nested documents as maps so they normalize to JSON objects.
func bsonOptions() *options.BSONOptions {
	return &options.BSONOptions{DefaultDocumentM: true}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

func (s *Store) collection(name string) *mongo.Collection {
	return s.db.Collection(name)
}
