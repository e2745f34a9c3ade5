// Package redis provides storage.Storage implementation on top of Redis. Each collection is
// a hash keyed by record id with JSON documents as values.
package redis

import (
	"context"
	"errors"
	"fmt"
	"iter"

	log "github.com/go-pkgz/lgr"
	backend "github.com/redis/go-redis/v9"

	"github.com/umputun/jobtrail/app/storage"
)

// Store implements storage.Storage using Redis
type Store struct {
	client    *backend.Client
	prefix    string
	scanCount int64
}

// Option func type
type Option func(*Store)

// WithPrefix sets the key prefix for collections
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithScanCount sets HSCAN batch size hint used by Where
func WithScanCount(count int64) Option {
	return func(s *Store) {
		s.scanCount = count
	}
}

// New creates a new Redis store with options
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client:    client,
		prefix:    "jobtrail:",
		scanCount: 100,
	}

	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Collection returns collection by name
func (s *Store) Collection(name string) storage.Collection {
	return &Collection{client: s.client, name: name, key: s.prefix + name, scanCount: s.scanCount}
}

// Ping checks connection to redis
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

// Close closes the redis client
func (s *Store) Close() error {
	return s.client.Close()
}

// Collection maps to a single redis hash
type Collection struct {
	client    *backend.Client
	name      string
	key       string
	scanCount int64
}

// Get returns record by id
func (c *Collection) Get(ctx context.Context, id string) (storage.Record, error) {
	val, err := c.client.HGet(ctx, c.key, id).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, fmt.Errorf("%s %q: %w", c.name, id, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get %s %q from redis: %w", c.name, id, err)
	}
	return storage.Decode([]byte(val))
}

// Insert adds record with HSETNX, so concurrent inserts of the same id can't overwrite each other
func (c *Collection) Insert(ctx context.Context, rec storage.Record) error {
	data, err := storage.Encode(rec)
	if err != nil {
		return &storage.WriteError{Collection: c.name, ID: rec.ID(), Err: err}
	}

	ok, err := c.client.HSetNX(ctx, c.key, rec.ID(), data).Result()
	if err != nil {
		return &storage.WriteError{Collection: c.name, ID: rec.ID(), Err: fmt.Errorf("failed to save to redis: %w", err)}
	}
	if !ok {
		return &storage.WriteError{Collection: c.name, ID: rec.ID(), Err: storage.ErrDuplicate}
	}
	return nil
}

// Where iterates the collection hash with HSCAN and filters documents on the client side.
// No particular order. Records present for the whole scan are returned, records inserted
// while scanning may or may not be.
func (c *Collection) Where(ctx context.Context, field string, op storage.QueryOp, value any) iter.Seq2[storage.Record, error] {
	q, err := storage.NewQuery(field, op, value)
	if err != nil {
		return storage.Fail(err)
	}

	return func(yield func(storage.Record, error) bool) {
		var cursor uint64
		seen := map[string]bool{} // hscan may return the same element more than once
		for {
			kvs, next, err := c.client.HScan(ctx, c.key, cursor, "", c.scanCount).Result()
			if err != nil {
				yield(nil, fmt.Errorf("failed to scan %s: %w", c.name, err))
				return
			}

			for i := 0; i+1 < len(kvs); i += 2 {
				id, doc := kvs[i], kvs[i+1]
				if seen[id] {
					continue
				}
				seen[id] = true

				rec, err := storage.Decode([]byte(doc))
				if err != nil {
					log.Printf("[WARN] can't decode %s %q: %v", c.name, id, err)
					if !yield(nil, err) {
						return
					}
					continue
				}
				if !q.Match(rec) {
					continue
				}
				if !yield(rec, nil) {
					return
				}
			}

			if next == 0 {
				return
			}
			cursor = next
		}
	}
}
