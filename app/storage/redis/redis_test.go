package redis

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/jobtrail/app/storage"
	"github.com/umputun/jobtrail/app/storage/storagetest"
)

func TestStore_Contract(t *testing.T) {
	storagetest.RunStorageContract(t, func(t *testing.T) storage.Storage {
		store, _ := newTestStore(t)
		return store
	})
}

func TestStore_Keys(t *testing.T) {
	store, mr := newTestStore(t, WithPrefix("test:"))
	ctx := context.Background()
	require.NoError(t, store.Collection(storage.Jobs).Insert(ctx, storage.Record{"id": "j1", "name": "sweep-0"}))

	assert.True(t, mr.Exists("test:jobs"))
	assert.JSONEq(t, `{"id":"j1","name":"sweep-0"}`, mr.HGet("test:jobs", "j1"))
}

func TestStore_WhereManyPages(t *testing.T) {
	store, _ := newTestStore(t, WithScanCount(3))
	ctx := context.Background()
	runs := store.Collection(storage.Runs)
	for i := 0; i < 25; i++ {
		require.NoError(t, runs.Insert(ctx, storage.Record{"id": fmt.Sprintf("r%02d", i), "job": fmt.Sprintf("j%d", i%2)}))
	}

	res, err := storage.Collect(runs.Where(ctx, "job", storage.EQ, "j0"))
	require.NoError(t, err)
	assert.Len(t, res, 13)
}

func TestStore_WhereBadDocument(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Collection(storage.Runs).Insert(ctx, storage.Record{"id": "r1", "job": "j1"}))
	mr.HSet("jobtrail:runs", "broken", "{not json")

	_, err := storage.Collect(store.Collection(storage.Runs).Where(ctx, "job", storage.EQ, "j1"))
	assert.Error(t, err)
}

func TestStore_Unavailable(t *testing.T) {
	store, mr := newTestStore(t)
	require.NoError(t, store.Ping(context.Background()))
	mr.Close()

	ctx := context.Background()
	assert.Error(t, store.Ping(ctx))
	err := store.Collection(storage.Jobs).Insert(ctx, storage.Record{"id": "j1"})
	var werr *storage.WriteError
	assert.ErrorAs(t, err, &werr)

	_, err = store.Collection(storage.Jobs).Get(ctx, "j1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrNotFound)
}

func TestNew(t *testing.T) {
	mr := miniredis.RunT(t)
	store := New(mr.Addr(), "", 0)
	defer store.Close()
	require.NoError(t, store.Ping(context.Background()))
	assert.Equal(t, "jobtrail:", store.prefix)
}

func newTestStore(t *testing.T, opts ...Option) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	store := NewFromClient(client, opts...)
	t.Cleanup(func() { store.Close() })
	return store, mr
}
