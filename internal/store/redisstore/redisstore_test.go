package redisstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/drey/pkg/board"
)

// setupTestStore creates a Store backed by an in-process miniredis.
func setupTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	s, err := New(&redis.Options{Addr: mr.Addr()}, "default")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s, mr
}

func TestNew(t *testing.T) {
	_, err := New(&redis.Options{Addr: "localhost:6379"}, "")
	assert.Error(t, err, "empty namespace must be rejected")
}

func TestPing(t *testing.T) {
	s, mr := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Ping(ctx))

	mr.Close()
	err := s.Ping(ctx)
	assert.ErrorIs(t, err, board.ErrStoreUnavailable)
}

func TestPutGet(t *testing.T) {
	ctx := context.Background()

	t.Run("create then read back", func(t *testing.T) {
		s, _ := setupTestStore(t)

		v1, err := s.Put(ctx, "task-a.json", []byte(`{"n":1}`), board.NoVersion)
		require.NoError(t, err)
		assert.NotEqual(t, board.NoVersion, v1)

		payload, ver, err := s.Get(ctx, "task-a.json")
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"n":1}`), payload)
		assert.Equal(t, v1, ver)
	})

	t.Run("missing key is ErrNotFound", func(t *testing.T) {
		s, _ := setupTestStore(t)
		_, _, err := s.Get(ctx, "task-missing.json")
		assert.True(t, board.IsNotFound(err))
	})

	t.Run("create-only write fails on existing key", func(t *testing.T) {
		s, _ := setupTestStore(t)
		_, err := s.Put(ctx, "task-a.json", []byte(`{"n":1}`), board.NoVersion)
		require.NoError(t, err)

		_, err = s.Put(ctx, "task-a.json", []byte(`{"n":2}`), board.NoVersion)
		assert.ErrorIs(t, err, board.ErrAlreadyExists)
	})

	t.Run("conditional write advances the version", func(t *testing.T) {
		s, _ := setupTestStore(t)
		v1, err := s.Put(ctx, "task-a.json", []byte(`{"n":1}`), board.NoVersion)
		require.NoError(t, err)

		v2, err := s.Put(ctx, "task-a.json", []byte(`{"n":2}`), v1)
		require.NoError(t, err)
		assert.NotEqual(t, v1, v2)

		payload, _, err := s.Get(ctx, "task-a.json")
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"n":2}`), payload)
	})

	t.Run("stale version is ErrConflict and changes nothing", func(t *testing.T) {
		s, _ := setupTestStore(t)
		v1, err := s.Put(ctx, "task-a.json", []byte(`{"n":1}`), board.NoVersion)
		require.NoError(t, err)
		_, err = s.Put(ctx, "task-a.json", []byte(`{"n":2}`), v1)
		require.NoError(t, err)

		_, err = s.Put(ctx, "task-a.json", []byte(`{"n":99}`), v1)
		assert.True(t, board.IsConflict(err))

		payload, _, err := s.Get(ctx, "task-a.json")
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"n":2}`), payload, "a rejected write must leave the object untouched")
	})

	t.Run("update of a missing key is ErrNotFound", func(t *testing.T) {
		s, _ := setupTestStore(t)
		_, err := s.Put(ctx, "task-missing.json", []byte(`{}`), board.Version("stale"))
		assert.True(t, board.IsNotFound(err))
	})

	t.Run("objects are namespaced", func(t *testing.T) {
		s, mr := setupTestStore(t)
		_, err := s.Put(ctx, "task-a.json", []byte(`{}`), board.NoVersion)
		require.NoError(t, err)

		assert.True(t, mr.Exists("drey:default:msg:task-a.json"))
	})
}

func TestList(t *testing.T) {
	ctx := context.Background()
	s, _ := setupTestStore(t)

	for _, key := range []string{"task-a.json", "task-b.json", "status-c.json"} {
		_, err := s.Put(ctx, key, []byte(`{}`), board.NoVersion)
		require.NoError(t, err)
	}

	t.Run("prefix narrows the scan", func(t *testing.T) {
		keys, err := s.List(ctx, "task-")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"task-a.json", "task-b.json"}, keys)
	})

	t.Run("empty prefix returns every key", func(t *testing.T) {
		keys, err := s.List(ctx, "")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"task-a.json", "task-b.json", "status-c.json"}, keys)
	})

	t.Run("no matches is an empty list", func(t *testing.T) {
		keys, err := s.List(ctx, "handoff-")
		require.NoError(t, err)
		assert.Empty(t, keys)
	})
}
