// Package storagetest provides a test suite verifying storage.Storage implementations
package storagetest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/jobtrail/app/storage"
)

// RunStorageContract runs a suite of tests to verify that a Storage implementation adheres to
// the interface contract. newStorage is called for every subtest and must return empty storage.
func RunStorageContract(t *testing.T, newStorage func(t *testing.T) storage.Storage) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		st := newStorage(t)
		_, err := st.Collection(storage.Jobs).Get(ctx, "no-such-id")
		require.Error(t, err)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("insert and get", func(t *testing.T) {
		st := newStorage(t)
		rec := storage.Record{
			"id":     "j1",
			"name":   "sweep-0",
			"args":   []string{"--gpu"},
			"kwargs": map[string]any{"lr": 0.1, "layers": 3, "opt": map[string]any{"name": "adam"}},
		}
		require.NoError(t, st.Collection(storage.Jobs).Insert(ctx, rec))

		got, err := st.Collection(storage.Jobs).Get(ctx, "j1")
		require.NoError(t, err)
		assert.Equal(t, "j1", got.ID())
		assert.Equal(t, "sweep-0", got["name"])
		assert.Equal(t, []any{"--gpu"}, got["args"])
		assert.Equal(t, map[string]any{"lr": 0.1, "layers": int64(3), "opt": map[string]any{"name": "adam"}}, got["kwargs"])
	})

	t.Run("large integers kept", func(t *testing.T) {
		st := newStorage(t)
		jobs := st.Collection(storage.Jobs)
		require.NoError(t, jobs.Insert(ctx, storage.Record{"id": "j1", "seed": int64(9007199254740993)}))
		require.NoError(t, jobs.Insert(ctx, storage.Record{"id": "j2", "seed": int64(9007199254740992)}))

		got, err := jobs.Get(ctx, "j1")
		require.NoError(t, err)
		assert.Equal(t, int64(9007199254740993), got["seed"])

		res, err := storage.Collect(jobs.Where(ctx, "seed", storage.EQ, int64(9007199254740993)))
		require.NoError(t, err)
		assert.Equal(t, []string{"j1"}, ids(res))

		res, err = storage.Collect(jobs.Where(ctx, "seed", storage.GT, int64(9007199254740992)))
		require.NoError(t, err)
		assert.Equal(t, []string{"j1"}, ids(res))
	})

	t.Run("returned record is a copy", func(t *testing.T) {
		st := newStorage(t)
		require.NoError(t, st.Collection(storage.Jobs).Insert(ctx, storage.Record{"id": "j1", "name": "a"}))
		got, err := st.Collection(storage.Jobs).Get(ctx, "j1")
		require.NoError(t, err)
		got["name"] = "changed"

		got, err = st.Collection(storage.Jobs).Get(ctx, "j1")
		require.NoError(t, err)
		assert.Equal(t, "a", got["name"])
	})

	t.Run("duplicate id rejected", func(t *testing.T) {
		st := newStorage(t)
		coll := st.Collection(storage.Jobs)
		require.NoError(t, coll.Insert(ctx, storage.Record{"id": "j1", "name": "first"}))

		err := coll.Insert(ctx, storage.Record{"id": "j1", "name": "second"})
		require.Error(t, err)
		var werr *storage.WriteError
		require.True(t, errors.As(err, &werr), "expected WriteError, got %T", err)
		assert.Equal(t, "j1", werr.ID)
		assert.ErrorIs(t, err, storage.ErrDuplicate)

		got, err := coll.Get(ctx, "j1")
		require.NoError(t, err)
		assert.Equal(t, "first", got["name"], "original record kept")
	})

	t.Run("record without id rejected", func(t *testing.T) {
		st := newStorage(t)
		err := st.Collection(storage.Jobs).Insert(ctx, storage.Record{"name": "noid"})
		require.Error(t, err)
		var werr *storage.WriteError
		assert.True(t, errors.As(err, &werr))
	})

	t.Run("collections are isolated", func(t *testing.T) {
		st := newStorage(t)
		require.NoError(t, st.Collection(storage.Jobs).Insert(ctx, storage.Record{"id": "x", "kind": "job"}))
		require.NoError(t, st.Collection(storage.Runs).Insert(ctx, storage.Record{"id": "x", "kind": "run"}))

		got, err := st.Collection(storage.Runs).Get(ctx, "x")
		require.NoError(t, err)
		assert.Equal(t, "run", got["kind"])
		_, err = st.Collection(storage.Experiments).Get(ctx, "x")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("where eq", func(t *testing.T) {
		st := newStorage(t)
		runs := st.Collection(storage.Runs)
		for _, r := range []storage.Record{
			{"id": "r1", "job": "j1"},
			{"id": "r2", "job": "j2"},
			{"id": "r3", "job": "j1"},
			{"id": "r4"},
		} {
			require.NoError(t, runs.Insert(ctx, r))
		}

		res, err := storage.Collect(runs.Where(ctx, "job", storage.EQ, "j1"))
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"r1", "r3"}, ids(res))

		res, err = storage.Collect(runs.Where(ctx, "job", storage.NE, "j1"))
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"r2"}, ids(res), "missing field never matches")
	})

	t.Run("where no match is empty", func(t *testing.T) {
		st := newStorage(t)
		res, err := storage.Collect(st.Collection(storage.Runs).Where(ctx, "job", storage.EQ, "j1"))
		require.NoError(t, err)
		assert.Empty(t, res)
	})

	t.Run("where ordered on nested field", func(t *testing.T) {
		st := newStorage(t)
		jobs := st.Collection(storage.Jobs)
		for _, r := range []storage.Record{
			{"id": "a", "kwargs": map[string]any{"lr": 0.1}},
			{"id": "b", "kwargs": map[string]any{"lr": 0.01}},
			{"id": "c", "kwargs": map[string]any{"lr": 1}},
			{"id": "d", "kwargs": map[string]any{"lr": "0.5"}},
			{"id": "e", "kwargs": map[string]any{}},
		} {
			require.NoError(t, jobs.Insert(ctx, r))
		}

		tbl := []struct {
			op   storage.QueryOp
			val  any
			want []string
		}{
			{storage.EQ, 1, []string{"c"}},
			{storage.LT, 0.1, []string{"b"}},
			{storage.LE, 0.1, []string{"a", "b"}},
			{storage.GT, 0.1, []string{"c"}},
			{storage.GE, 0.01, []string{"a", "b", "c"}},
			{storage.EQ, "0.5", []string{"d"}},
			{storage.GT, "0", []string{"d"}},
		}
		for _, tt := range tbl {
			res, err := storage.Collect(jobs.Where(ctx, "kwargs.lr", tt.op, tt.val))
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, ids(res), "%s %v", tt.op, tt.val)
		}
	})

	t.Run("where bool", func(t *testing.T) {
		st := newStorage(t)
		coll := st.Collection(storage.Experiments)
		require.NoError(t, coll.Insert(ctx, storage.Record{"id": "a", "active": true}))
		require.NoError(t, coll.Insert(ctx, storage.Record{"id": "b", "active": false}))
		require.NoError(t, coll.Insert(ctx, storage.Record{"id": "c", "active": 1}))

		res, err := storage.Collect(coll.Where(ctx, "active", storage.EQ, true))
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, ids(res))
	})

	t.Run("where bad query", func(t *testing.T) {
		st := newStorage(t)
		coll := st.Collection(storage.Runs)
		_, err := storage.Collect(coll.Where(ctx, "job..id", storage.EQ, "j1"))
		assert.ErrorIs(t, err, storage.ErrBadQuery)
		_, err = storage.Collect(coll.Where(ctx, "job", storage.QueryOp("like"), "j1"))
		assert.ErrorIs(t, err, storage.ErrBadQuery)
		_, err = storage.Collect(coll.Where(ctx, "job", storage.EQ, []string{"j1"}))
		assert.ErrorIs(t, err, storage.ErrBadQuery)
	})

	t.Run("where early stop", func(t *testing.T) {
		st := newStorage(t)
		coll := st.Collection(storage.Runs)
		for _, id := range []string{"r1", "r2", "r3"} {
			require.NoError(t, coll.Insert(ctx, storage.Record{"id": id, "job": "j1"}))
		}
		count := 0
		for rec, err := range coll.Where(ctx, "job", storage.EQ, "j1") {
			require.NoError(t, err)
			require.NotNil(t, rec)
			count++
			break
		}
		assert.Equal(t, 1, count)
	})

	t.Run("where canceled", func(t *testing.T) {
		st := newStorage(t)
		coll := st.Collection(storage.Runs)
		require.NoError(t, coll.Insert(ctx, storage.Record{"id": "r1", "job": "j1"}))

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := storage.Collect(coll.Where(cctx, "job", storage.EQ, "j1"))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func ids(recs []storage.Record) []string {
	res := make([]string, 0, len(recs))
	for _, r := range recs {
		res = append(res, r.ID())
	}
	return res
}
