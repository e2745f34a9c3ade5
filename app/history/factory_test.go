package history

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/jobtrail/app/storage"
)

func TestCreateRecords_Sweep(t *testing.T) {
	before := time.Now()
	seq, err := CreateRecords("sweep", "alice", "exp-1",
		[]map[string]any{{"lr": 0.1}, {"lr": 0.01}}, []string{"--gpu"})
	require.NoError(t, err)

	recs := collect(seq)
	require.Len(t, recs, 2)

	for i, rec := range recs {
		job, err := JobFromRecord(rec)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("sweep-%d", i), job.Name)
		assert.Equal(t, "alice", job.User)
		assert.Equal(t, "exp-1", job.Experiment)
		assert.Equal(t, []string{"--gpu"}, job.Args)
		assert.Len(t, job.ID, 32)
		assert.False(t, job.Timestamp.Before(before))
		assert.Equal(t, time.Local, job.Timestamp.Location())
	}
	assert.Equal(t, map[string]any{"lr": 0.1}, recs[0]["kwargs"])
	assert.Equal(t, map[string]any{"lr": 0.01}, recs[1]["kwargs"])
	assert.NotEqual(t, recs[0].ID(), recs[1].ID())
}

func TestCreateRecords_Defaults(t *testing.T) {
	for _, configs := range [][]map[string]any{nil, {}} {
		seq, err := CreateRecords("x", "u", "e", configs, nil)
		require.NoError(t, err)
		recs := collect(seq)
		require.Len(t, recs, 1)
		assert.Equal(t, "x-0", recs[0]["name"])
		assert.Equal(t, []string{}, recs[0]["args"])
		assert.Equal(t, map[string]any{}, recs[0]["kwargs"])
		for _, key := range []string{"id", "name", "user", "timestamp", "experiment", "args", "kwargs"} {
			assert.Contains(t, recs[0], key)
		}
	}
}

func TestCreateRecords_Count(t *testing.T) {
	for n := 0; n <= 12; n++ {
		configs := make([]map[string]any, n)
		for i := range configs {
			configs[i] = map[string]any{"idx": i}
		}
		seq, err := CreateRecords("job", "u", "e", configs, nil)
		require.NoError(t, err)
		recs := collect(seq)
		require.Len(t, recs, max(n, 1))
		for i, rec := range recs {
			assert.Equal(t, fmt.Sprintf("job-%d", i), rec["name"], "ordinal suffix follows config order")
			if n > 0 {
				assert.Equal(t, i, rec["kwargs"].(map[string]any)["idx"])
			}
		}
	}
}

func TestCreateRecords_UniqueIDs(t *testing.T) {
	configs := make([]map[string]any, 100)
	seq, err := CreateRecords("job", "u", "e", configs, nil)
	require.NoError(t, err)

	ids := map[string]bool{}
	for range 3 { // ranging again regenerates ids
		for rec := range seq {
			require.False(t, ids[rec.ID()], "duplicate id %s", rec.ID())
			ids[rec.ID()] = true
		}
	}
	assert.Len(t, ids, 300)
}

func TestCreateRecords_KwargsShallowCopy(t *testing.T) {
	cfg := map[string]any{"lr": 0.1}
	args := []string{"--gpu"}
	seq, err := CreateRecords("job", "u", "e", []map[string]any{cfg}, args)
	require.NoError(t, err)
	recs := collect(seq)
	require.Len(t, recs, 1)

	cfg["lr"] = 0.5
	cfg["extra"] = true
	args[0] = "--cpu"
	assert.Equal(t, map[string]any{"lr": 0.1}, recs[0]["kwargs"])
	assert.Equal(t, []string{"--gpu"}, recs[0]["args"])
}

func TestCreateRecords_CopiedBeforeRange(t *testing.T) {
	cfg := map[string]any{"lr": 0.1}
	configs := []map[string]any{cfg, {"lr": 0.2}}
	args := []string{"--gpu"}
	seq, err := CreateRecords("job", "u", "e", configs, args)
	require.NoError(t, err)

	cfg["lr"] = 0.5
	cfg["extra"] = true
	configs[1] = map[string]any{"replaced": true}
	args[0] = "--cpu"

	recs := collect(seq)
	require.Len(t, recs, 2)
	assert.Equal(t, map[string]any{"lr": 0.1}, recs[0]["kwargs"])
	assert.Equal(t, map[string]any{"lr": 0.2}, recs[1]["kwargs"])
	assert.Equal(t, []string{"--gpu"}, recs[0]["args"])
}

func TestCreateRecords_EmptyExperiment(t *testing.T) {
	seq, err := CreateRecords("job", "u", "", []map[string]any{{"lr": 0.1}}, nil)
	assert.Nil(t, seq)
	var cerr *ConfigurationError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, -1, cerr.Index)
	assert.EqualError(t, err, "invalid configs: empty experiment id")
}

func TestCreateRecords_EarlyStop(t *testing.T) {
	seq, err := CreateRecords("job", "u", "e", make([]map[string]any, 5), nil)
	require.NoError(t, err)
	count := 0
	for range seq {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestCreateRecords_ConfigurationError(t *testing.T) {
	tbl := []struct {
		name    string
		configs []map[string]any
		idx     int
		key     string
	}{
		{"empty key", []map[string]any{{"a": 1}, {"": 1}}, 1, ""},
		{"func value", []map[string]any{{"fn": func() {}}}, 0, "fn"},
		{"chan value", []map[string]any{{"a": 1}, {"b": 2}, {"ch": make(chan int)}}, 2, "ch"},
		{"nan value", []map[string]any{{"lr": math.NaN()}}, 0, "lr"},
		{"nested bad", []map[string]any{{"opt": map[string]any{"x": []any{1, struct{}{}}}}}, 0, "opt"},
		{"non-string map key", []map[string]any{{"opt": map[int]string{1: "a"}}}, 0, "opt"},
		{"bytes value", []map[string]any{{"a": 1}, {"blob": []byte("abc")}}, 1, "blob"},
		{"uint overflow", []map[string]any{{"seed": uint64(math.MaxUint64)}}, 0, "seed"},
	}

	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			seq, err := CreateRecords("job", "u", "e", tt.configs, nil)
			require.Error(t, err)
			assert.Nil(t, seq, "no partial batch")
			var cerr *ConfigurationError
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, tt.idx, cerr.Index)
			assert.Equal(t, tt.key, cerr.Key)
		})
	}
}

func TestCreateRecords_ValidValues(t *testing.T) {
	cfg := map[string]any{
		"s": "str", "i": 1, "u": uint8(2), "big": uint64(math.MaxInt64), "f": float32(0.5), "b": true, "n": nil,
		"t": time.Now(), "l": []string{"a"}, "m": map[string]any{"k": []any{1, "x", map[string]int{"z": 1}}},
	}
	_, err := CreateRecords("job", "u", "e", []map[string]any{cfg}, nil)
	require.NoError(t, err)
}

func TestNewID(t *testing.T) {
	id := NewID()
	assert.Len(t, id, 32)
	assert.Regexp(t, "^[0-9a-f]{32}$", id)
	assert.NotEqual(t, id, NewID())
}

func TestParseConfigs(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		res, err := ParseConfigs([]any{map[string]any{"lr": 0.1}, map[any]any{"lr": 0.2, "opt": map[any]any{"name": "adam"}}})
		require.NoError(t, err)
		assert.Equal(t, []map[string]any{{"lr": 0.1}, {"lr": 0.2, "opt": map[string]any{"name": "adam"}}}, res)
	})

	t.Run("single mapping", func(t *testing.T) {
		res, err := ParseConfigs(map[string]any{"lr": 0.1})
		require.NoError(t, err)
		assert.Equal(t, []map[string]any{{"lr": 0.1}}, res)
	})

	t.Run("null", func(t *testing.T) {
		res, err := ParseConfigs(nil)
		require.NoError(t, err)
		assert.Empty(t, res)
	})

	t.Run("non-mapping entry", func(t *testing.T) {
		_, err := ParseConfigs([]any{map[string]any{"lr": 0.1}, "lr=0.2"})
		var cerr *ConfigurationError
		require.True(t, errors.As(err, &cerr))
		assert.Equal(t, 1, cerr.Index)
		assert.EqualError(t, err, "invalid config #1: expected mapping, got string")
	})

	t.Run("null entry", func(t *testing.T) {
		_, err := ParseConfigs([]any{nil})
		var cerr *ConfigurationError
		require.True(t, errors.As(err, &cerr))
		assert.Equal(t, 0, cerr.Index)
	})

	t.Run("non-string key", func(t *testing.T) {
		_, err := ParseConfigs([]any{map[any]any{1: "x"}})
		var cerr *ConfigurationError
		require.True(t, errors.As(err, &cerr))
	})

	t.Run("scalar document", func(t *testing.T) {
		_, err := ParseConfigs("lr")
		var cerr *ConfigurationError
		require.True(t, errors.As(err, &cerr))
		assert.Equal(t, -1, cerr.Index)
		assert.EqualError(t, err, "invalid configs: expected list of mappings, got string")
	})
}

func TestLoadConfigs(t *testing.T) {
	dir := t.TempDir()

	yamlFile := filepath.Join(dir, "configs.yml")
	require.NoError(t, os.WriteFile(yamlFile, []byte("- lr: 0.1\n  layers: [1, 2]\n- lr: 0.01\n  opt: {name: adam}\n"), 0o600))
	res, err := LoadConfigs(yamlFile)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, 0.1, res[0]["lr"])
	assert.Equal(t, []any{1, 2}, res[0]["layers"])
	assert.Equal(t, map[string]any{"name": "adam"}, res[1]["opt"])

	jsonFile := filepath.Join(dir, "configs.json")
	require.NoError(t, os.WriteFile(jsonFile, []byte(`[{"lr": 0.1}, {"lr": 0.2}]`), 0o600))
	res, err = LoadConfigs(jsonFile)
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"lr": 0.1}, {"lr": 0.2}}, res)

	badFile := filepath.Join(dir, "bad.yml")
	require.NoError(t, os.WriteFile(badFile, []byte("- lr: 0.1\n- just a string\n"), 0o600))
	_, err = LoadConfigs(badFile)
	var cerr *ConfigurationError
	assert.True(t, errors.As(err, &cerr))

	_, err = LoadConfigs(filepath.Join(dir, "missing.yml"))
	assert.Error(t, err)

	brokenFile := filepath.Join(dir, "broken.yml")
	require.NoError(t, os.WriteFile(brokenFile, []byte("- lr: [0.1\n"), 0o600))
	_, err = LoadConfigs(brokenFile)
	assert.Error(t, err)
}

func collect(seq func(func(storage.Record) bool)) []storage.Record {
	res := []storage.Record{}
	for rec := range seq {
		res = append(res, rec)
	}
	return res
}
