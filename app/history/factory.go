package history

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"iter"
	"maps"
	"math"
	"os"
	"reflect"
	"slices"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/umputun/jobtrail/app/storage"
)

// CreateRecords expands configurations into job records, one per configuration, named
// name-0, name-1 and so on in configuration order. Nil or empty configs produce a single job
// with empty kwargs. Every record shares args and experiment reference, gets a fresh id and
// the current local time. Configurations are validated and shallow copied before anything is
// generated, later changes to the caller's configs or args don't leak into the records.
// Ranging over the result again generates new ids and timestamps.
func CreateRecords(name, user, experiment string, configs []map[string]any, args []string) (iter.Seq[storage.Record], error) {
	if experiment == "" {
		return nil, &ConfigurationError{Index: -1, Reason: "empty experiment id"}
	}
	cfgs := make([]map[string]any, 0, max(len(configs), 1))
	for i, cfg := range normalizeConfigs(configs) {
		if err := validateConfig(i, cfg); err != nil {
			return nil, err
		}
		cfgs = append(cfgs, maps.Clone(cfg))
	}
	args = slices.Clone(args)

	return func(yield func(storage.Record) bool) {
		for i, cfg := range cfgs {
			rec := JobRecord{
				ID:         NewID(),
				Name:       fmt.Sprintf("%s-%d", name, i),
				User:       user,
				Timestamp:  time.Now(),
				Experiment: experiment,
				Args:       args,
				Kwargs:     cfg,
			}
			if !yield(rec.Record()) {
				return
			}
		}
	}, nil
}

// NewID makes globally unique id, time based uuid in hex without dashes
func NewID() string {
	id, err := uuid.NewUUID()
	if err != nil {
		id = uuid.New()
	}
	return hex.EncodeToString(id[:])
}

// normalizeConfigs converts missing or empty configurations to a single empty one
func normalizeConfigs(configs []map[string]any) []map[string]any {
	if len(configs) == 0 {
		return []map[string]any{{}}
	}
	return configs
}

func validateConfig(idx int, cfg map[string]any) error {
	for k, v := range cfg {
		if k == "" {
			return &ConfigurationError{Index: idx, Reason: "empty key"}
		}
		if !validValue(v) {
			return &ConfigurationError{Index: idx, Key: k, Reason: fmt.Sprintf("unsupported value type %T", v)}
		}
	}
	return nil
}

// validValue checks if value can be stored, i.e. it is a json compatible scalar or
// a list or mapping of such values
func validValue(v any) bool {
	switch v.(type) {
	case nil, time.Time, json.Number:
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return true
	case reflect.Uint, reflect.Uint64:
		return rv.Uint() <= math.MaxInt64
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return false // bytes are marshaled as base64 string and can't be read back
		}
		for i := 0; i < rv.Len(); i++ {
			if !validValue(rv.Index(i).Interface()) {
				return false
			}
		}
		return true
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return false
		}
		mi := rv.MapRange()
		for mi.Next() {
			if !validValue(mi.Value().Interface()) {
				return false
			}
		}
		return true
	}
	return false
}

// ParseConfigs converts decoded yaml or json document to configurations. Document must be
// a list of mappings with string keys or a single mapping; null means no configurations.
func ParseConfigs(raw any) ([]map[string]any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case map[string]any, map[any]any:
		cfg, err := parseConfig(0, v)
		if err != nil {
			return nil, err
		}
		return []map[string]any{cfg}, nil
	case []any:
		res := make([]map[string]any, 0, len(v))
		for i, e := range v {
			cfg, err := parseConfig(i, e)
			if err != nil {
				return nil, err
			}
			res = append(res, cfg)
		}
		return res, nil
	case []map[string]any:
		return v, nil
	}
	return nil, &ConfigurationError{Index: -1, Reason: fmt.Sprintf("expected list of mappings, got %T", raw)}
}

// LoadConfigs reads configurations from yaml or json file
func LoadConfigs(path string) ([]map[string]any, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path provided by user
	if err != nil {
		return nil, fmt.Errorf("can't read configs %s: %w", path, err)
	}
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("can't parse configs %s: %w", path, err)
	}
	return ParseConfigs(raw)
}

func parseConfig(idx int, v any) (map[string]any, error) {
	switch m := v.(type) {
	case map[string]any, map[any]any:
		res, err := stringKeys(m)
		if err != nil {
			return nil, &ConfigurationError{Index: idx, Reason: err.Error()}
		}
		return res.(map[string]any), nil
	}
	return nil, &ConfigurationError{Index: idx, Reason: fmt.Sprintf("expected mapping, got %T", v)}
}

// stringKeys converts nested map[any]any produced by yaml to map[string]any
func stringKeys(v any) (any, error) {
	switch m := v.(type) {
	case map[any]any:
		res := make(map[string]any, len(m))
		for k, val := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("non-string key %v", k)
			}
			conv, err := stringKeys(val)
			if err != nil {
				return nil, err
			}
			res[ks] = conv
		}
		return res, nil
	case map[string]any:
		res := make(map[string]any, len(m))
		for k, val := range m {
			conv, err := stringKeys(val)
			if err != nil {
				return nil, err
			}
			res[k] = conv
		}
		return res, nil
	case []any:
		res := make([]any, len(m))
		for i, val := range m {
			conv, err := stringKeys(val)
			if err != nil {
				return nil, err
			}
			res[i] = conv
		}
		return res, nil
	}
	return v, nil
}
