package board

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBoard(t *testing.T) {
	t.Run("nil store is rejected", func(t *testing.T) {
		_, err := NewBoard(nil, "agent-a")
		assert.True(t, IsValidation(err))
	})

	t.Run("empty agent id gets a generated identity", func(t *testing.T) {
		b, err := NewBoard(newMemStore(), "")
		require.NoError(t, err)
		assert.Regexp(t, `^agent-[0-9a-f]{8}$`, b.AgentID())
	})

	t.Run("explicit agent id is kept", func(t *testing.T) {
		b, err := NewBoard(newMemStore(), "backend-dev")
		require.NoError(t, err)
		assert.Equal(t, "backend-dev", b.AgentID())
	})
}

func TestPostOperations(t *testing.T) {
	ctx := context.Background()

	t.Run("post task", func(t *testing.T) {
		b, err := NewBoard(newMemStore(), "agent-a")
		require.NoError(t, err)

		task, err := b.PostTask(ctx, PostTaskParams{
			Title:       "Fix auth bug",
			Description: "Login fails for new users",
			Priority:    PriorityHigh,
			Context:     map[string]any{"component": "auth"},
		})
		require.NoError(t, err)

		assert.Regexp(t, `^task-[0-9a-f]{12}$`, task.ID)
		assert.Equal(t, MessageTypeTask, task.Type)
		assert.Equal(t, TaskStatusPending, task.Status)
		assert.Equal(t, PriorityHigh, task.Priority)
		assert.Equal(t, "agent-a", task.AgentID)
		assert.Empty(t, task.ClaimedBy)

		got, err := b.GetMessage(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, task.Title, got.Title)
		assert.Equal(t, "auth", got.Context["component"])
	})

	t.Run("post task defaults to normal priority", func(t *testing.T) {
		b, err := NewBoard(newMemStore(), "agent-a")
		require.NoError(t, err)

		task, err := b.PostTask(ctx, PostTaskParams{Title: "t", Description: "d"})
		require.NoError(t, err)
		assert.Equal(t, PriorityNormal, task.Priority)
	})

	t.Run("post message has no lifecycle", func(t *testing.T) {
		b, err := NewBoard(newMemStore(), "agent-a")
		require.NoError(t, err)

		m, err := b.PostMessage(ctx, PostMessageParams{Title: "heads up", Content: "deploy at noon"})
		require.NoError(t, err)
		assert.Equal(t, MessageTypeMessage, m.Type)
		assert.Empty(t, m.Status)

		_, err = b.ClaimTask(ctx, m.ID)
		assert.True(t, IsInvalidState(err))
	})

	t.Run("post status links back to a task", func(t *testing.T) {
		b, err := NewBoard(newMemStore(), "agent-a")
		require.NoError(t, err)

		task, err := b.PostTask(ctx, PostTaskParams{Title: "t", Description: "d"})
		require.NoError(t, err)

		s, err := b.PostStatus(ctx, PostStatusParams{Title: "progress", StatusText: "halfway", TaskID: task.ID})
		require.NoError(t, err)
		assert.Equal(t, MessageTypeStatus, s.Type)
		assert.Equal(t, task.ID, s.RefTaskID)
	})

	t.Run("handoff defaults high priority and records target", func(t *testing.T) {
		b, err := NewBoard(newMemStore(), "agent-a")
		require.NoError(t, err)

		h, err := b.PostHandoff(ctx, PostHandoffParams{
			Title:       "continue migration",
			Description: "schema v2 half applied",
			Context:     map[string]any{"migrated": 12},
			TargetAgent: "agent-night-shift",
		})
		require.NoError(t, err)
		assert.Equal(t, MessageTypeHandoff, h.Type)
		assert.Equal(t, PriorityHigh, h.Priority)
		assert.Equal(t, "agent-night-shift", h.Context["target_agent"])
		assert.Equal(t, 12, h.Context["migrated"])
	})

	t.Run("missing required fields are rejected before any write", func(t *testing.T) {
		store := newMemStore()
		b, err := NewBoard(store, "agent-a")
		require.NoError(t, err)

		_, err = b.PostTask(ctx, PostTaskParams{Title: "no description"})
		assert.True(t, IsValidation(err))

		_, err = b.PostMessage(ctx, PostMessageParams{Content: "no title"})
		assert.True(t, IsValidation(err))

		assert.Zero(t, store.puts, "validation failures must not reach the store")
	})

	t.Run("invalid priority is rejected", func(t *testing.T) {
		b, err := NewBoard(newMemStore(), "agent-a")
		require.NoError(t, err)

		_, err = b.PostTask(ctx, PostTaskParams{Title: "t", Description: "d", Priority: "urgent"})
		assert.True(t, IsValidation(err))
	})
}

// TestTaskLifecycleAcrossAgents walks the whole flow two separate clients
// would run against a shared store: post, discover, race the claim,
// report progress, complete.
func TestTaskLifecycleAcrossAgents(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	poster, err := NewBoard(store, "agent-pm")
	require.NoError(t, err)
	workerA, err := NewBoard(store, "agent-worker-a")
	require.NoError(t, err)
	workerB, err := NewBoard(store, "agent-worker-b")
	require.NoError(t, err)

	task, err := poster.PostTask(ctx, PostTaskParams{
		Title:       "Fix auth bug",
		Description: "Sessions expire immediately after login",
		Priority:    PriorityHigh,
	})
	require.NoError(t, err)

	// Both workers see the task in the pickup queue.
	for _, w := range []*Board{workerA, workerB} {
		pending, err := w.GetPendingTasks(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, task.ID, pending[0].ID)
	}

	// Worker A wins the claim; worker B's claim is a no-op outcome.
	_, err = workerA.ClaimTask(ctx, task.ID)
	require.NoError(t, err)

	_, err = workerB.ClaimTask(ctx, task.ID)
	require.Error(t, err)
	assert.True(t, IsAlreadyClaimed(err))

	// The claimed task leaves the pickup queue for everyone.
	pending, err := workerB.GetPendingTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = workerA.PostStatus(ctx, PostStatusParams{
		Title: "auth fix underway", StatusText: "found the bad cookie TTL", TaskID: task.ID,
	})
	require.NoError(t, err)

	// Only the claimant can complete.
	_, err = workerB.CompleteTask(ctx, task.ID, nil)
	assert.True(t, IsNotOwner(err))

	done, err := workerA.CompleteTask(ctx, task.ID, map[string]any{"commit": "a1b2c3"})
	require.NoError(t, err)
	assert.Equal(t, TaskStatusCompleted, done.Status)

	// The poster sees the result and the full activity trail.
	got, err := poster.GetMessage(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, TaskStatusCompleted, got.Status)
	assert.Equal(t, "a1b2c3", got.Result["commit"])

	trail, err := poster.GetMessages(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, trail, 2, "task plus one status report")
}

func TestSweepThroughBoard(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	b, err := NewBoard(store, "agent-admin", WithClock(func() time.Time { return clock }))
	require.NoError(t, err)

	task, err := b.PostTask(ctx, PostTaskParams{Title: "t", Description: "d"})
	require.NoError(t, err)
	_, err = b.ClaimTask(ctx, task.ID)
	require.NoError(t, err)

	clock = clock.Add(3 * time.Hour)
	reverted, err := b.SweepStaleClaims(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{task.ID}, reverted)
}
