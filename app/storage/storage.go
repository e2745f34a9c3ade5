package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
)

// Record is a flat mapping of field name to value, the serialized form of every entity
type Record map[string]any

// ID returns record's id field or empty string if it is missing or not a string
func (r Record) ID() string {
	id, _ := r["id"].(string)
	return id
}

// Storage gives access to named collections
type Storage interface {
	Collection(name string) Collection
}

// Collection is a named, queryable set of records of one entity type
type Collection interface {
	// Get returns record by id, fails with ErrNotFound if missing
	Get(ctx context.Context, id string) (Record, error)
	// Insert adds fully formed record, fails with *WriteError if rejected
	Insert(ctx context.Context, rec Record) error
	// Where scans for records matching field op value. Visibility of records inserted
	// while the scan is in progress is defined by the backend.
	Where(ctx context.Context, field string, op QueryOp, value any) iter.Seq2[Record, error]
}

// collection names used by history records
const (
	Jobs        = "jobs"
	Experiments = "experiments"
	Runs        = "runs"
)

var (
	// ErrNotFound returned when requested id is absent from a collection
	ErrNotFound = errors.New("not found")
	// ErrDuplicate returned (wrapped in *WriteError) when record with the same id already exists
	ErrDuplicate = errors.New("duplicate id")
	// ErrBadQuery returned for invalid query predicates
	ErrBadQuery = errors.New("bad query")
)

// WriteError reports rejected insert
type WriteError struct {
	Collection string
	ID         string
	Err        error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("can't insert %q into %s: %v", e.ID, e.Collection, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Encode validates record and makes its JSON representation used by all backends
func Encode(rec Record) ([]byte, error) {
	if rec.ID() == "" {
		return nil, errors.New("record has no string id")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	return data, nil
}

// Decode makes record from JSON representation. Integral numbers fitting int64 are decoded
// as int64, all other numbers as float64.
func Decode(data []byte) (Record, error) {
	var raw map[string]any
	if err := unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	if raw == nil {
		return Record{}, nil
	}
	return Record(raw), nil
}

// unmarshal decodes json keeping integers exact
func unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after json value")
	}
	if p, ok := v.(*map[string]any); ok {
		*p, _ = numbers(*p).(map[string]any)
		return nil
	}
	if p, ok := v.(*any); ok {
		*p = numbers(*p)
	}
	return nil
}

// numbers replaces json.Number values with int64 or float64 in place
func numbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		f, _ := val.Float64()
		return f
	case map[string]any:
		for k, e := range val {
			val[k] = numbers(e)
		}
	case []any:
		for i, e := range val {
			val[i] = numbers(e)
		}
	}
	return v
}

// Collect drains sequence into a slice, stops on the first error
func Collect(seq iter.Seq2[Record, error]) ([]Record, error) {
	res := []Record{}
	for rec, err := range seq {
		if err != nil {
			return res, err
		}
		res = append(res, rec)
	}
	return res, nil
}

// Fail makes a sequence yielding a single error
func Fail(err error) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		yield(nil, err)
	}
}
