package storage

import (
	"context"
	"fmt"
	"iter"
	"sync"

	log "github.com/go-pkgz/lgr"
)

// Memory implements thread safe in-memory Storage. Records are kept encoded, so callers
// never share maps with the store. Where takes a snapshot of matching records at scan start.
type Memory struct {
	lock        sync.Mutex
	collections map[string]*MemoryCollection
}

// NewMemory makes empty in-memory storage
func NewMemory() *Memory {
	return &Memory{collections: map[string]*MemoryCollection{}}
}

// Collection returns collection by name, created on first access
func (m *Memory) Collection(name string) Collection {
	m.lock.Lock()
	defer m.lock.Unlock()
	if c, ok := m.collections[name]; ok {
		return c
	}
	c := &MemoryCollection{name: name, docs: map[string][]byte{}}
	m.collections[name] = c
	log.Printf("[DEBUG] memory collection %s created", name)
	return c
}

// MemoryCollection keeps records of a single collection in insertion order
type MemoryCollection struct {
	name  string
	lock  sync.RWMutex
	docs  map[string][]byte
	order []string
}

// Get returns record by id
func (c *MemoryCollection) Get(ctx context.Context, id string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.lock.RLock()
	data, ok := c.docs[id]
	c.lock.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s %q: %w", c.name, id, ErrNotFound)
	}
	return Decode(data)
}

// Insert adds record, rejects records without id and duplicates
func (c *MemoryCollection) Insert(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return &WriteError{Collection: c.name, ID: rec.ID(), Err: err}
	}
	data, err := Encode(rec)
	if err != nil {
		return &WriteError{Collection: c.name, ID: rec.ID(), Err: err}
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	if _, found := c.docs[rec.ID()]; found {
		return &WriteError{Collection: c.name, ID: rec.ID(), Err: ErrDuplicate}
	}
	c.docs[rec.ID()] = data
	c.order = append(c.order, rec.ID())
	return nil
}

// Where returns records matching the query in insertion order
func (c *MemoryCollection) Where(ctx context.Context, field string, op QueryOp, value any) iter.Seq2[Record, error] {
	q, err := NewQuery(field, op, value)
	if err != nil {
		return Fail(err)
	}

	return func(yield func(Record, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(nil, err)
			return
		}

		// snapshot under the lock, matching done on decoded copies outside of it
		c.lock.RLock()
		snapshot := make([][]byte, 0, len(c.order))
		for _, id := range c.order {
			snapshot = append(snapshot, c.docs[id])
		}
		c.lock.RUnlock()

		for _, data := range snapshot {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			rec, err := Decode(data)
			if err != nil {
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
	}
}
