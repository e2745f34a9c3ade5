package storage

import (
	"cmp"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// QueryOp is a comparison operator used by Where
type QueryOp string

// supported operators
const (
	EQ QueryOp = "eq"
	NE QueryOp = "ne"
	LT QueryOp = "lt"
	LE QueryOp = "le"
	GT QueryOp = "gt"
	GE QueryOp = "ge"
)

var fieldRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// ParseQueryOp converts string to QueryOp
func ParseQueryOp(s string) (QueryOp, error) {
	op := QueryOp(strings.ToLower(s))
	switch op {
	case EQ, NE, LT, LE, GT, GE:
		return op, nil
	}
	return "", fmt.Errorf("%w: unknown operator %q", ErrBadQuery, s)
}

// Ordered reports if operator compares by order rather than equality
func (op QueryOp) Ordered() bool {
	return op == LT || op == LE || op == GT || op == GE
}

// Query is a validated predicate. Value normalized to string, int64, float64 or bool,
// the same shapes decoded records carry.
type Query struct {
	Field string
	Op    QueryOp
	Value any
}

// NewQuery validates field, operator and value. Field may be a dotted path into nested
// mappings, value must be a scalar. Bool values support EQ and NE only.
func NewQuery(field string, op QueryOp, value any) (Query, error) {
	if !fieldRe.MatchString(field) {
		return Query{}, fmt.Errorf("%w: invalid field %q", ErrBadQuery, field)
	}
	if _, err := ParseQueryOp(string(op)); err != nil {
		return Query{}, err
	}

	// normalize through json to get the same representation stored records have
	data, err := json.Marshal(value)
	if err != nil {
		return Query{}, fmt.Errorf("%w: can't marshal value for %s: %v", ErrBadQuery, field, err)
	}
	var v any
	if err := unmarshal(data, &v); err != nil {
		return Query{}, fmt.Errorf("%w: can't unmarshal value for %s: %v", ErrBadQuery, field, err)
	}

	switch v.(type) {
	case string, int64, float64:
	case bool:
		if op.Ordered() {
			return Query{}, fmt.Errorf("%w: operator %s not supported for bool", ErrBadQuery, op)
		}
	default:
		return Query{}, fmt.Errorf("%w: value of %s must be string, number or bool, got %T", ErrBadQuery, field, value)
	}
	return Query{Field: field, Op: op, Value: v}, nil
}

// Path returns field segments
func (q Query) Path() []string {
	return strings.Split(q.Field, ".")
}

// Match checks decoded record against the query. Missing fields and fields of a different
// kind never match. Integers and floats are the same kind, compared exactly when both are integers.
func (q Query) Match(rec Record) bool {
	fv, ok := lookup(rec, q.Path())
	if !ok {
		return false
	}

	res := 0
	switch qv := q.Value.(type) {
	case string:
		s, ok := fv.(string)
		if !ok {
			return false
		}
		res = strings.Compare(s, qv)
	case int64, float64:
		if res, ok = compareNumbers(fv, qv); !ok {
			return false
		}
	case bool:
		b, ok := fv.(bool)
		if !ok {
			return false
		}
		if b != qv {
			res = 1
		}
	default:
		return false
	}

	switch q.Op {
	case EQ:
		return res == 0
	case NE:
		return res != 0
	case LT:
		return res < 0
	case LE:
		return res <= 0
	case GT:
		return res > 0
	case GE:
		return res >= 0
	}
	return false
}

// compareNumbers compares record value a with query value b, false if a is not a number
func compareNumbers(a, b any) (int, bool) {
	ai, aInt := a.(int64)
	bi, bInt := b.(int64)
	if aInt && bInt {
		return cmp.Compare(ai, bi), true
	}
	af, ok := toFloat(a)
	if !ok {
		return 0, false
	}
	bf, _ := toFloat(b)
	return cmp.Compare(af, bf), true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func lookup(rec Record, path []string) (any, bool) {
	var cur any = map[string]any(rec)
	for _, p := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[p]; !ok {
			return nil, false
		}
	}
	return cur, cur != nil
}
