// Package history defines job history records (jobs, experiments and runs), the job factory
// expanding configurations into job records, and jobs resolving their relations through
// storage.Storage.
package history

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/umputun/jobtrail/app/storage"
)

// JobRecord is the serializable shape of a job
type JobRecord struct {
	ID         string         `json:"id" jsonschema:"description=unique job id"`
	Name       string         `json:"name" jsonschema:"description=base name with ordinal suffix"`
	User       string         `json:"user" jsonschema:"description=user created the job"`
	Timestamp  time.Time      `json:"timestamp" jsonschema:"description=creation time"`
	Experiment string         `json:"experiment" jsonschema:"description=id of the owning experiment"`
	Args       []string       `json:"args" jsonschema:"description=shared positional arguments"`
	Kwargs     map[string]any `json:"kwargs" jsonschema:"description=per-job keyword arguments"`
}

// Record serializes job. All keys are always present, args and kwargs default to empty values.
func (j JobRecord) Record() storage.Record {
	args := slices.Clone(j.Args)
	if args == nil {
		args = []string{}
	}
	kwargs := maps.Clone(j.Kwargs)
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	return storage.Record{
		"id":         j.ID,
		"user":       j.User,
		"name":       j.Name,
		"timestamp":  j.Timestamp,
		"experiment": j.Experiment,
		"args":       args,
		"kwargs":     kwargs,
	}
}

// JobFromRecord deserializes job record. Timestamp accepted as time.Time or RFC 3339 string,
// args as []string or []any of strings; missing or null args and kwargs filled with empty values.
func JobFromRecord(rec storage.Record) (JobRecord, error) {
	var res JobRecord
	var err error

	for key, dst := range map[string]*string{"id": &res.ID, "name": &res.Name, "user": &res.User, "experiment": &res.Experiment} {
		if *dst, err = stringField(rec, key); err != nil {
			return JobRecord{}, err
		}
	}
	if res.Timestamp, err = timeField(rec, "timestamp"); err != nil {
		return JobRecord{}, err
	}
	if res.Args, err = stringsField(rec, "args"); err != nil {
		return JobRecord{}, err
	}

	switch v := rec["kwargs"].(type) {
	case nil:
		res.Kwargs = map[string]any{}
	case map[string]any:
		res.Kwargs = maps.Clone(v)
	case storage.Record:
		res.Kwargs = maps.Clone(map[string]any(v))
	default:
		return JobRecord{}, &RecordError{Key: "kwargs", Reason: fmt.Sprintf("expected mapping, got %T", v)}
	}
	return res, nil
}

func stringField(rec storage.Record, key string) (string, error) {
	v, ok := rec[key]
	if !ok {
		return "", &RecordError{Key: key, Reason: "missing"}
	}
	s, ok := v.(string)
	if !ok {
		return "", &RecordError{Key: key, Reason: fmt.Sprintf("expected string, got %T", v)}
	}
	return s, nil
}

func timeField(rec storage.Record, key string) (time.Time, error) {
	switch v := rec[key].(type) {
	case time.Time:
		return v, nil
	case string:
		ts, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}, &RecordError{Key: key, Reason: err.Error()}
		}
		return ts, nil
	case nil:
		return time.Time{}, &RecordError{Key: key, Reason: "missing"}
	default:
		return time.Time{}, &RecordError{Key: key, Reason: fmt.Sprintf("expected timestamp, got %T", v)}
	}
}

func stringsField(rec storage.Record, key string) ([]string, error) {
	switch v := rec[key].(type) {
	case nil:
		return []string{}, nil
	case []string:
		return slices.Clone(v), nil
	case []any:
		res := make([]string, 0, len(v))
		for i, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, &RecordError{Key: key, Reason: fmt.Sprintf("element %d is %T, not string", i, e)}
			}
			res = append(res, s)
		}
		return res, nil
	default:
		return nil, &RecordError{Key: key, Reason: fmt.Sprintf("expected list of strings, got %T", v)}
	}
}
