package board

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store with linearizable conditional writes,
// used to exercise the repository without a real backend. putHook lets
// tests inject conflicts and outages.
type memStore struct {
	mu      sync.Mutex
	objects map[string]memObject
	puts    int
	putHook func(key string, expected Version) error
}

type memObject struct {
	payload []byte
	version Version
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string]memObject)}
}

func (s *memStore) Put(ctx context.Context, key string, payload []byte, expected Version) (Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.puts++
	if s.putHook != nil {
		if err := s.putHook(key, expected); err != nil {
			return NoVersion, err
		}
	}

	obj, exists := s.objects[key]
	if expected == NoVersion {
		if exists {
			return NoVersion, fmt.Errorf("key %s: %w", key, ErrAlreadyExists)
		}
	} else {
		if !exists {
			return NoVersion, fmt.Errorf("key %s: %w", key, ErrNotFound)
		}
		if obj.version != expected {
			return NoVersion, fmt.Errorf("key %s: %w", key, ErrConflict)
		}
	}

	next := memObject{payload: append([]byte(nil), payload...), version: Version(uuid.NewString())}
	s.objects[key] = next
	return next.version, nil
}

func (s *memStore) Get(ctx context.Context, key string) ([]byte, Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, exists := s.objects[key]
	if !exists {
		return nil, NoVersion, fmt.Errorf("key %s: %w", key, ErrNotFound)
	}
	return append([]byte(nil), obj.payload...), obj.version, nil
}

func (s *memStore) List(ctx context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []string
	for key := range s.objects {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// newTestTask posts a pending task through a repository and returns it.
func newTestTask(t *testing.T, repo *Repository, priority Priority) *Message {
	t.Helper()
	now := time.Now().UTC()
	task := &Message{
		ID:        NewID(MessageTypeTask),
		CreatedAt: now,
		UpdatedAt: now,
		AgentID:   "agent-poster",
		Type:      MessageTypeTask,
		Priority:  priority,
		Status:    TaskStatusPending,
		Title:     "test task",
	}
	require.NoError(t, repo.Create(context.Background(), task))
	return task
}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("creates and reads back", func(t *testing.T) {
		repo := NewRepository(newMemStore())
		task := newTestTask(t, repo, PriorityNormal)
		assert.NotEmpty(t, task.Version, "create must attach the store version")

		got, err := repo.Get(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, task.ID, got.ID)
		assert.Equal(t, TaskStatusPending, got.Status)
		assert.Equal(t, task.Version, got.Version)
	})

	t.Run("regenerates id once on collision", func(t *testing.T) {
		store := newMemStore()
		repo := NewRepository(store)

		first := newTestTask(t, repo, PriorityNormal)

		// Force the same ID to collide on the first create attempt.
		dup := first.clone()
		dup.Version = NoVersion
		require.NoError(t, repo.Create(ctx, dup))
		assert.NotEqual(t, first.ID, dup.ID, "colliding create must regenerate the ID")
	})

	t.Run("rejects invalid message", func(t *testing.T) {
		repo := NewRepository(newMemStore())
		err := repo.Create(ctx, &Message{ID: "task-abc", Type: MessageTypeTask})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid message")
	})
}

func TestClaimTask(t *testing.T) {
	ctx := context.Background()

	t.Run("claims a pending task", func(t *testing.T) {
		repo := NewRepository(newMemStore())
		task := newTestTask(t, repo, PriorityNormal)

		claimed, err := repo.ClaimTask(ctx, task.ID, "agent-b")
		require.NoError(t, err)
		assert.Equal(t, TaskStatusInProgress, claimed.Status)
		assert.Equal(t, "agent-b", claimed.ClaimedBy)
		require.NotNil(t, claimed.ClaimedAt)
		assert.False(t, claimed.UpdatedAt.Before(task.UpdatedAt))
	})

	t.Run("second claim loses with AlreadyClaimedError", func(t *testing.T) {
		repo := NewRepository(newMemStore())
		task := newTestTask(t, repo, PriorityNormal)

		_, err := repo.ClaimTask(ctx, task.ID, "agent-b")
		require.NoError(t, err)

		_, err = repo.ClaimTask(ctx, task.ID, "agent-c")
		require.Error(t, err)
		assert.True(t, IsAlreadyClaimed(err))

		var raced *AlreadyClaimedError
		require.ErrorAs(t, err, &raced)
		assert.Equal(t, "agent-b", raced.ClaimedBy)
	})

	t.Run("exactly one of N concurrent claimants wins", func(t *testing.T) {
		repo := NewRepository(newMemStore())
		task := newTestTask(t, repo, PriorityHigh)

		const agents = 8
		results := make(chan error, agents)
		var wg sync.WaitGroup
		for i := 0; i < agents; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				_, err := repo.ClaimTask(ctx, task.ID, fmt.Sprintf("agent-%d", n))
				results <- err
			}(i)
		}
		wg.Wait()
		close(results)

		winners, losers := 0, 0
		for err := range results {
			if err == nil {
				winners++
			} else {
				require.True(t, IsAlreadyClaimed(err), "losers must see AlreadyClaimedError, got %v", err)
				losers++
			}
		}
		assert.Equal(t, 1, winners)
		assert.Equal(t, agents-1, losers)

		got, err := repo.Get(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, TaskStatusInProgress, got.Status)
		assert.NotEmpty(t, got.ClaimedBy)
	})

	t.Run("retries conflicts from unrelated updates", func(t *testing.T) {
		store := newMemStore()
		repo := NewRepository(store)
		task := newTestTask(t, repo, PriorityNormal)

		// First conditional write fails as if an unrelated field update
		// raced it; the task itself stays pending, so the retry wins.
		conflicts := 1
		store.putHook = func(key string, expected Version) error {
			if expected != NoVersion && conflicts > 0 {
				conflicts--
				return fmt.Errorf("key %s: %w", key, ErrConflict)
			}
			return nil
		}

		claimed, err := repo.ClaimTask(ctx, task.ID, "agent-b")
		require.NoError(t, err)
		assert.Equal(t, "agent-b", claimed.ClaimedBy)
	})

	t.Run("bounded retries surface ErrConcurrentModification", func(t *testing.T) {
		store := newMemStore()
		repo := NewRepository(store, WithMaxAttempts(2))
		task := newTestTask(t, repo, PriorityNormal)

		store.putHook = func(key string, expected Version) error {
			if expected != NoVersion {
				return fmt.Errorf("key %s: %w", key, ErrConflict)
			}
			return nil
		}

		_, err := repo.ClaimTask(ctx, task.ID, "agent-b")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConcurrentModification)
	})

	t.Run("rejects non-task messages", func(t *testing.T) {
		repo := NewRepository(newMemStore())
		now := time.Now().UTC()
		note := &Message{
			ID: NewID(MessageTypeMessage), CreatedAt: now, UpdatedAt: now,
			AgentID: "agent-a", Type: MessageTypeMessage, Priority: PriorityNormal, Title: "note",
		}
		require.NoError(t, repo.Create(ctx, note))

		_, err := repo.ClaimTask(ctx, note.ID, "agent-b")
		assert.True(t, IsInvalidState(err))
	})

	t.Run("unknown task id", func(t *testing.T) {
		repo := NewRepository(newMemStore())
		_, err := repo.ClaimTask(ctx, "task-missing00", "agent-b")
		assert.True(t, IsNotFound(err))
	})
}

func TestCompleteTask(t *testing.T) {
	ctx := context.Background()

	t.Run("claiming agent completes exactly once", func(t *testing.T) {
		repo := NewRepository(newMemStore())
		task := newTestTask(t, repo, PriorityNormal)

		_, err := repo.ClaimTask(ctx, task.ID, "agent-b")
		require.NoError(t, err)

		done, err := repo.CompleteTask(ctx, task.ID, "agent-b", map[string]any{"fixed": true})
		require.NoError(t, err)
		assert.Equal(t, TaskStatusCompleted, done.Status)
		assert.Equal(t, map[string]any{"fixed": true}, done.Result)
		assert.Equal(t, "agent-b", done.ClaimedBy, "completion keeps the claim record")

		// Terminal states permit no further transitions.
		_, err = repo.CompleteTask(ctx, task.ID, "agent-b", nil)
		assert.True(t, IsInvalidState(err))

		_, err = repo.ClaimTask(ctx, task.ID, "agent-c")
		assert.True(t, IsInvalidState(err))
	})

	t.Run("non-owner is rejected", func(t *testing.T) {
		repo := NewRepository(newMemStore())
		task := newTestTask(t, repo, PriorityNormal)

		_, err := repo.ClaimTask(ctx, task.ID, "agent-b")
		require.NoError(t, err)

		_, err = repo.CompleteTask(ctx, task.ID, "agent-c", nil)
		assert.True(t, IsNotOwner(err))
	})

	t.Run("unclaimed task cannot be completed", func(t *testing.T) {
		repo := NewRepository(newMemStore())
		task := newTestTask(t, repo, PriorityNormal)

		_, err := repo.CompleteTask(ctx, task.ID, "agent-b", nil)
		assert.True(t, IsInvalidState(err))
	})

	t.Run("conflict surfaces as concurrent modification", func(t *testing.T) {
		store := newMemStore()
		repo := NewRepository(store)
		task := newTestTask(t, repo, PriorityNormal)

		_, err := repo.ClaimTask(ctx, task.ID, "agent-b")
		require.NoError(t, err)

		injected := false
		store.putHook = func(key string, expected Version) error {
			if !injected {
				injected = true
				return fmt.Errorf("key %s: %w", key, ErrConflict)
			}
			return nil
		}

		_, err = repo.CompleteTask(ctx, task.ID, "agent-b", nil)
		assert.ErrorIs(t, err, ErrConcurrentModification)
	})
}

func TestFailTask(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(newMemStore())
	task := newTestTask(t, repo, PriorityNormal)

	_, err := repo.ClaimTask(ctx, task.ID, "agent-b")
	require.NoError(t, err)

	failed, err := repo.FailTask(ctx, task.ID, "agent-b", map[string]any{"error": "dependency down"})
	require.NoError(t, err)
	assert.Equal(t, TaskStatusFailed, failed.Status)
	assert.Equal(t, map[string]any{"error": "dependency down"}, failed.Result)
	assert.Empty(t, failed.ClaimedBy, "failure releases the claim")
	assert.Nil(t, failed.ClaimedAt)
}

func TestReopenTask(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(newMemStore())
	task := newTestTask(t, repo, PriorityNormal)

	t.Run("only failed tasks reopen", func(t *testing.T) {
		_, err := repo.ReopenTask(ctx, task.ID)
		assert.True(t, IsInvalidState(err))
	})

	t.Run("failed task returns to pending", func(t *testing.T) {
		_, err := repo.ClaimTask(ctx, task.ID, "agent-b")
		require.NoError(t, err)
		_, err = repo.FailTask(ctx, task.ID, "agent-b", map[string]any{"error": "boom"})
		require.NoError(t, err)

		reopened, err := repo.ReopenTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, TaskStatusPending, reopened.Status)
		assert.Empty(t, reopened.ClaimedBy)
		assert.Nil(t, reopened.Result, "reopen clears the failure payload")

		// The reopened task is claimable again.
		_, err = repo.ClaimTask(ctx, task.ID, "agent-c")
		assert.NoError(t, err)
	})
}

func TestSweepStaleClaims(t *testing.T) {
	ctx := context.Background()

	now := time.Now().UTC()
	clock := now
	repo := NewRepository(newMemStore(), WithClock(func() time.Time { return clock }))

	stale := newTestTask(t, repo, PriorityNormal)
	fresh := newTestTask(t, repo, PriorityNormal)
	pending := newTestTask(t, repo, PriorityNormal)

	_, err := repo.ClaimTask(ctx, stale.ID, "agent-crashed")
	require.NoError(t, err)

	// The fresh claim happens two hours later.
	clock = now.Add(2 * time.Hour)
	_, err = repo.ClaimTask(ctx, fresh.ID, "agent-alive")
	require.NoError(t, err)

	reverted, err := repo.SweepStaleClaims(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{stale.ID}, reverted)

	got, err := repo.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, TaskStatusPending, got.Status)
	assert.Empty(t, got.ClaimedBy)

	got, err = repo.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, TaskStatusInProgress, got.Status)

	got, err = repo.Get(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, TaskStatusPending, got.Status)

	t.Run("rejects non-positive cutoff", func(t *testing.T) {
		_, err := repo.SweepStaleClaims(ctx, 0)
		assert.True(t, IsValidation(err))
	})
}
