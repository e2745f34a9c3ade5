// Package sqlite provides storage.Storage implementation on top of SQLite with WAL mode
// for better concurrency. All collections share one table, records are kept as JSON documents
// and queried with json_extract.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater"
	"github.com/go-pkgz/repeater/strategy"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/umputun/jobtrail/app/storage"
)

// Store implements storage.Storage using SQLite
type Store struct {
	db      *sqlx.DB
	rptr    Repeater
	timeout time.Duration
}

// Repeater repeats failed function
type Repeater interface {
	Do(ctx context.Context, fun func() error, errors ...error) (err error)
}

// Option func type
type Option func(*Store)

// WithTimeout sets timeout for Get and Insert calls, 5s by default
func WithTimeout(timeout time.Duration) Option {
	return func(s *Store) {
		s.timeout = timeout
	}
}

// WithRepeater sets retry policy for inserts failed on busy or locked database
func WithRepeater(rptr Repeater) Option {
	return func(s *Store) {
		s.rptr = rptr
	}
}

// New creates SQLite store and initializes schema. Connections wait up to 5s on a locked
// database unless dbPath already has query parameters.
func New(dbPath string, opts ...Option) (*Store, error) {
	dsn := dbPath
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)"
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to set WAL mode: %w (also failed to close db: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	res := &Store{
		db:      db,
		timeout: 5 * time.Second,
		rptr:    repeater.New(&strategy.Backoff{Repeats: 5, Duration: 10 * time.Millisecond, Factor: 2, Jitter: true}),
	}
	for _, opt := range opts {
		opt(res)
	}

	if err := res.initialize(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("%w (also failed to close db: %v)", err, closeErr)
		}
		return nil, err
	}
	return res, nil
}

// initialize creates the database schema
func (s *Store) initialize() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS records (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			doc TEXT NOT NULL,
			created_at INTEGER
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_records_collection_id ON records(collection, id)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// Collection returns collection by name. Collections are not created explicitly,
// any name is valid.
func (s *Store) Collection(name string) storage.Collection {
	return &Collection{store: s, name: name}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Collection is a named view over records table
type Collection struct {
	store *Store
	name  string
}

// Get returns record by id
func (c *Collection) Get(ctx context.Context, id string) (storage.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, c.store.timeout)
	defer cancel()

	var doc string
	err := c.store.db.GetContext(ctx, &doc, `SELECT doc FROM records WHERE collection = ? AND id = ?`, c.name, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %q: %w", c.name, id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %q: %w", c.name, id, err)
	}
	return storage.Decode([]byte(doc))
}

// Insert adds record. Busy and locked errors are retried with the store's repeater,
// unique constraint violation reported as storage.ErrDuplicate.
func (c *Collection) Insert(ctx context.Context, rec storage.Record) error {
	data, err := storage.Encode(rec)
	if err != nil {
		return &storage.WriteError{Collection: c.name, ID: rec.ID(), Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.store.timeout)
	defer cancel()

	var execErr error
	err = c.store.rptr.Do(ctx, func() error {
		_, e := c.store.db.ExecContext(ctx, `INSERT INTO records (collection, id, doc, created_at) VALUES (?, ?, ?, ?)`,
			c.name, rec.ID(), string(data), time.Now().Unix())
		if e != nil && isBusy(e) {
			log.Printf("[DEBUG] database busy on insert %s %q, %v", c.name, rec.ID(), e)
			return e
		}
		execErr = e
		return nil
	})
	if err == nil {
		err = execErr
	}

	switch {
	case err == nil:
		return nil
	case isUnique(err):
		return &storage.WriteError{Collection: c.name, ID: rec.ID(), Err: storage.ErrDuplicate}
	default:
		return &storage.WriteError{Collection: c.name, ID: rec.ID(), Err: err}
	}
}

// Where streams matching records in insertion order. Rows are read lazily from a single
// statement, so the scan sees the database as of its read transaction start.
func (c *Collection) Where(ctx context.Context, field string, op storage.QueryOp, value any) iter.Seq2[storage.Record, error] {
	q, err := storage.NewQuery(field, op, value)
	if err != nil {
		return storage.Fail(err)
	}
	query, args := whereSQL(c.name, q)

	return func(yield func(storage.Record, error) bool) {
		rows, err := c.store.db.QueryxContext(ctx, query, args...)
		if err != nil {
			yield(nil, fmt.Errorf("failed to query %s: %w", c.name, err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var doc string
			if err := rows.Scan(&doc); err != nil {
				yield(nil, fmt.Errorf("failed to scan %s row: %w", c.name, err))
				return
			}
			rec, err := storage.Decode([]byte(doc))
			if err != nil {
				if !yield(nil, err) {
					return
				}
				continue
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("error iterating %s rows: %w", c.name, err))
		}
	}
}

var sqlOps = map[storage.QueryOp]string{
	storage.EQ: "=",
	storage.NE: "!=",
	storage.LT: "<",
	storage.LE: "<=",
	storage.GT: ">",
	storage.GE: ">=",
}

// whereSQL builds select for validated query. The json_type guard keeps sqlite from comparing
// values of different kinds, matching storage.Query.Match semantics.
func whereSQL(collection string, q storage.Query) (query string, args []any) {
	path := "$." + q.Field
	var types string
	var val any
	switch v := q.Value.(type) {
	case string:
		types, val = `'text'`, v
	case int64, float64:
		types, val = `'integer','real'`, v
	case bool:
		types, val = `'true','false'`, 0
		if v {
			val = 1
		}
	}
	query = fmt.Sprintf(`SELECT doc FROM records WHERE collection = ? AND json_type(doc, ?) IN (%s) AND json_extract(doc, ?) %s ? ORDER BY seq`,
		types, sqlOps[q.Op])
	return query, []any{collection, path, path, val}
}

func isBusy(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code() & 0xff
	return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
}

func isUnique(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
