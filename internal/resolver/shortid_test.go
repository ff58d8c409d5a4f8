package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/drey/internal/store/filestore"
	"github.com/dyluth/drey/pkg/board"
)

func newTestStore(t *testing.T, ids ...string) board.Store {
	t.Helper()
	s, err := filestore.New(t.TempDir(), "default")
	require.NoError(t, err)

	ctx := context.Background()
	for _, id := range ids {
		_, err := s.Put(ctx, board.MessageKey(id), []byte(`{}`), board.NoVersion)
		require.NoError(t, err)
	}
	return s
}

func TestResolveMessageID(t *testing.T) {
	ctx := context.Background()

	t.Run("exact id is returned as-is", func(t *testing.T) {
		s := newTestStore(t, "task-3f8a2c4d9e01")
		id, err := ResolveMessageID(ctx, s, "task-3f8a2c4d9e01")
		require.NoError(t, err)
		assert.Equal(t, "task-3f8a2c4d9e01", id)
	})

	t.Run("unique prefix resolves", func(t *testing.T) {
		s := newTestStore(t, "task-3f8a2c4d9e01", "task-77bb10aa3c2d")
		id, err := ResolveMessageID(ctx, s, "task-3f8a2c")
		require.NoError(t, err)
		assert.Equal(t, "task-3f8a2c4d9e01", id)
	})

	t.Run("ambiguous prefix lists matches", func(t *testing.T) {
		s := newTestStore(t, "task-3f8a2c4d9e01", "task-3f8a2cffff00")
		_, err := ResolveMessageID(ctx, s, "task-3f8a2c")
		require.Error(t, err)
		assert.True(t, IsAmbiguousError(err))

		amb := err.(*AmbiguousError)
		assert.Len(t, amb.Matches, 2)
		assert.Contains(t, FormatAmbiguousError(amb), "task-3f8a2cffff00")
	})

	t.Run("no matches", func(t *testing.T) {
		s := newTestStore(t, "task-3f8a2c4d9e01")
		_, err := ResolveMessageID(ctx, s, "task-ffffff")
		require.Error(t, err)
		assert.True(t, IsNotFoundError(err))
	})

	t.Run("too-short prefix is rejected", func(t *testing.T) {
		s := newTestStore(t, "task-3f8a2c4d9e01")
		_, err := ResolveMessageID(ctx, s, "task")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least 6 characters")
	})

	t.Run("empty id is rejected", func(t *testing.T) {
		s := newTestStore(t)
		_, err := ResolveMessageID(ctx, s, "")
		assert.Error(t, err)
	})
}
