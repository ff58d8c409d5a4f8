package board

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// defaultMaxAttempts bounds every conditional-write loop. Retries exist to
// absorb unrelated concurrent writes, not to win claim races - a lost race
// is terminal and never retried.
const defaultMaxAttempts = 5

// Repository implements the message lifecycle on top of a Store: creation,
// reads, and the task claim protocol. It holds no locks and no in-process
// shared state; correctness across processes comes entirely from the store's
// conditional-write guarantee. The repository is safe for concurrent use.
type Repository struct {
	store       Store
	logger      zerolog.Logger
	maxAttempts uint64
	now         func() time.Time
}

// RepositoryOption customizes a Repository.
type RepositoryOption func(*Repository)

// WithLogger attaches a zerolog logger. The default discards everything.
func WithLogger(logger zerolog.Logger) RepositoryOption {
	return func(r *Repository) { r.logger = logger }
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) RepositoryOption {
	return func(r *Repository) { r.now = now }
}

// WithMaxAttempts overrides the conditional-write retry bound.
// Values below 1 are ignored.
func WithMaxAttempts(n int) RepositoryOption {
	return func(r *Repository) {
		if n >= 1 {
			r.maxAttempts = uint64(n)
		}
	}
}

// NewRepository creates a repository over the given store.
func NewRepository(store Store, opts ...RepositoryOption) *Repository {
	r := &Repository{
		store:       store,
		logger:      zerolog.Nop(),
		maxAttempts: defaultMaxAttempts,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create writes a brand-new message. The expected version NoVersion makes
// this a create-only write: an ID collision surfaces as ErrAlreadyExists,
// in which case the ID is regenerated exactly once before giving up.
// On success the message's Version is set to the store's token.
func (r *Repository) Create(ctx context.Context, m *Message) error {
	payload, err := EncodeMessage(m)
	if err != nil {
		return err
	}

	ver, err := r.store.Put(ctx, MessageKey(m.ID), payload, NoVersion)
	if errors.Is(err, ErrAlreadyExists) {
		r.logger.Warn().Str("message_id", m.ID).Msg("board.Create: id collision, regenerating")
		m.ID = NewID(m.Type)
		if payload, err = EncodeMessage(m); err != nil {
			return err
		}
		ver, err = r.store.Put(ctx, MessageKey(m.ID), payload, NoVersion)
	}
	if err != nil {
		return fmt.Errorf("failed to create message %s: %w", m.ID, err)
	}

	m.Version = ver
	return nil
}

// Get retrieves a message by ID, with its current store version attached.
func (r *Repository) Get(ctx context.Context, id string) (*Message, error) {
	payload, ver, err := r.store.Get(ctx, MessageKey(id))
	if err != nil {
		return nil, fmt.Errorf("failed to read message %s: %w", id, err)
	}

	m, err := DecodeMessage(payload)
	if err != nil {
		return nil, fmt.Errorf("message %s: %w", id, err)
	}

	m.Version = ver
	return m, nil
}

// ClaimTask transitions a pending task to in_progress on behalf of agentID.
// At most one agent can win: the write is conditional on the version read,
// so two agents racing the same pending task cannot both succeed.
//
// A conflict caused by another agent's claim surfaces as AlreadyClaimedError
// and is never retried - it is the expected outcome of a lost race, not a
// transient failure. A conflict caused by an unrelated field update is
// retried from the top with jittered backoff, up to the attempt bound, then
// surfaces as ErrConcurrentModification.
func (r *Repository) ClaimTask(ctx context.Context, taskID, agentID string) (*Message, error) {
	if agentID == "" {
		return nil, fmt.Errorf("%w: agent_id cannot be empty", ErrValidation)
	}

	var claimed *Message
	op := func() error {
		cur, err := r.Get(ctx, taskID)
		if err != nil {
			return permanentUnlessRetryable(err)
		}
		if !cur.IsTask() {
			return backoff.Permanent(fmt.Errorf("%w: %s is a %s, not a task", ErrInvalidState, taskID, cur.Type))
		}
		if cur.Status != TaskStatusPending {
			if cur.Status == TaskStatusInProgress && cur.ClaimedBy != agentID {
				return backoff.Permanent(&AlreadyClaimedError{TaskID: taskID, ClaimedBy: cur.ClaimedBy})
			}
			return backoff.Permanent(fmt.Errorf("%w: task %s is %s, not pending", ErrInvalidState, taskID, cur.Status))
		}

		next := cur.clone()
		now := r.now().UTC()
		next.Status = TaskStatusInProgress
		next.ClaimedBy = agentID
		next.ClaimedAt = &now
		next.UpdatedAt = now

		ver, err := r.put(ctx, next)
		if errors.Is(err, ErrConflict) {
			// Lost a race on this object. Re-read to learn which kind.
			latest, gerr := r.Get(ctx, taskID)
			if gerr != nil {
				return permanentUnlessRetryable(gerr)
			}
			switch {
			case latest.Status == TaskStatusInProgress && latest.ClaimedBy == agentID:
				// Our own write landed even though the store reported a
				// conflict (ambiguous outcome). The claim is ours.
				claimed = latest
				return nil
			case latest.Status == TaskStatusInProgress:
				return backoff.Permanent(&AlreadyClaimedError{TaskID: taskID, ClaimedBy: latest.ClaimedBy})
			case latest.Status.Terminal():
				return backoff.Permanent(fmt.Errorf("%w: task %s is %s, not pending", ErrInvalidState, taskID, latest.Status))
			default:
				// Unrelated field update won the write. Transient; retry.
				r.logger.Debug().Str("task_id", taskID).Msg("board.ClaimTask: conflict on unrelated update, retrying")
				return err
			}
		}
		if err != nil {
			return permanentUnlessRetryable(err)
		}

		next.Version = ver
		claimed = next
		return nil
	}

	if err := backoff.Retry(op, r.newCASBackoff(ctx)); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, fmt.Errorf("failed to claim task %s: %w", taskID, ErrConcurrentModification)
		}
		return nil, err
	}

	r.logger.Info().Str("task_id", claimed.ID).Str("agent_id", agentID).Msg("board.ClaimTask: claimed")
	return claimed, nil
}

// CompleteTask transitions an in_progress task to completed, recording the
// result. Only the claiming agent may complete; anyone else gets ErrNotOwner.
func (r *Repository) CompleteTask(ctx context.Context, taskID, agentID string, result map[string]any) (*Message, error) {
	return r.finishTask(ctx, taskID, agentID, TaskStatusCompleted, result)
}

// FailTask transitions an in_progress task to failed, recording the error
// payload in place of a result and releasing the claim fields.
func (r *Repository) FailTask(ctx context.Context, taskID, agentID string, errPayload map[string]any) (*Message, error) {
	return r.finishTask(ctx, taskID, agentID, TaskStatusFailed, errPayload)
}

// finishTask performs the shared terminal transition for complete and fail.
// A conflict here means another writer is illegally racing a claimed task,
// so it surfaces as ErrConcurrentModification instead of being absorbed.
func (r *Repository) finishTask(ctx context.Context, taskID, agentID string, terminal TaskStatus, result map[string]any) (*Message, error) {
	if agentID == "" {
		return nil, fmt.Errorf("%w: agent_id cannot be empty", ErrValidation)
	}

	var finished *Message
	op := func() error {
		cur, err := r.Get(ctx, taskID)
		if err != nil {
			return permanentUnlessRetryable(err)
		}
		if !cur.IsTask() {
			return backoff.Permanent(fmt.Errorf("%w: %s is a %s, not a task", ErrInvalidState, taskID, cur.Type))
		}
		if cur.Status != TaskStatusInProgress {
			return backoff.Permanent(fmt.Errorf("%w: task %s is %s, not in_progress", ErrInvalidState, taskID, cur.Status))
		}
		if cur.ClaimedBy != agentID {
			return backoff.Permanent(fmt.Errorf("%w: task %s is claimed by %s", ErrNotOwner, taskID, cur.ClaimedBy))
		}

		next := cur.clone()
		next.Status = terminal
		next.Result = result
		next.UpdatedAt = r.now().UTC()
		if terminal == TaskStatusFailed {
			next.ClaimedBy = ""
			next.ClaimedAt = nil
		}

		ver, err := r.put(ctx, next)
		if errors.Is(err, ErrConflict) {
			return backoff.Permanent(fmt.Errorf("task %s: %w", taskID, ErrConcurrentModification))
		}
		if err != nil {
			return permanentUnlessRetryable(err)
		}

		next.Version = ver
		finished = next
		return nil
	}

	if err := backoff.Retry(op, r.newCASBackoff(ctx)); err != nil {
		return nil, err
	}

	r.logger.Info().Str("task_id", taskID).Str("agent_id", agentID).Str("status", string(terminal)).Msg("board.finishTask: task finished")
	return finished, nil
}

// ReopenTask is the explicit administrative failed → pending transition, the
// only backward move the lifecycle permits. It clears the claim fields and
// the error payload. It is never triggered automatically.
func (r *Repository) ReopenTask(ctx context.Context, taskID string) (*Message, error) {
	var reopened *Message
	op := func() error {
		cur, err := r.Get(ctx, taskID)
		if err != nil {
			return permanentUnlessRetryable(err)
		}
		if !cur.IsTask() {
			return backoff.Permanent(fmt.Errorf("%w: %s is a %s, not a task", ErrInvalidState, taskID, cur.Type))
		}
		if cur.Status != TaskStatusFailed {
			return backoff.Permanent(fmt.Errorf("%w: task %s is %s, only failed tasks can be reopened", ErrInvalidState, taskID, cur.Status))
		}

		next := cur.clone()
		next.Status = TaskStatusPending
		next.ClaimedBy = ""
		next.ClaimedAt = nil
		next.Result = nil
		next.UpdatedAt = r.now().UTC()

		ver, err := r.put(ctx, next)
		if errors.Is(err, ErrConflict) {
			return err // unrelated writer, retry from the top
		}
		if err != nil {
			return permanentUnlessRetryable(err)
		}

		next.Version = ver
		reopened = next
		return nil
	}

	if err := backoff.Retry(op, r.newCASBackoff(ctx)); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, fmt.Errorf("failed to reopen task %s: %w", taskID, ErrConcurrentModification)
		}
		return nil, err
	}

	r.logger.Info().Str("task_id", taskID).Msg("board.ReopenTask: reopened")
	return reopened, nil
}

// SweepStaleClaims reverts in_progress tasks whose claim is older than
// olderThan back to pending, returning the IDs it reverted. This is the
// board's answer to crashed claimants: recovery is an explicit
// administrative sweep, never an automatic timeout.
//
// Per-task conflicts are skipped, not errors - a conflict means someone is
// actively working the task (completing it or re-claiming it), which is
// exactly the situation the sweep must not fight.
func (r *Repository) SweepStaleClaims(ctx context.Context, olderThan time.Duration) ([]string, error) {
	if olderThan <= 0 {
		return nil, fmt.Errorf("%w: olderThan must be positive", ErrValidation)
	}

	cutoff := r.now().UTC().Add(-olderThan)

	keys, err := r.store.List(ctx, TypePrefix(MessageTypeTask))
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	var reverted []string
	for _, key := range keys {
		id, ok := MessageIDFromKey(key)
		if !ok {
			continue
		}

		cur, err := r.Get(ctx, id)
		if err != nil {
			if IsNotFound(err) {
				continue // vanished between list and get
			}
			r.logger.Warn().Err(err).Str("task_id", id).Msg("board.SweepStaleClaims: skipping unreadable task")
			continue
		}
		if cur.Status != TaskStatusInProgress || cur.ClaimedAt == nil || cur.ClaimedAt.After(cutoff) {
			continue
		}

		next := cur.clone()
		next.Status = TaskStatusPending
		next.ClaimedBy = ""
		next.ClaimedAt = nil
		next.UpdatedAt = r.now().UTC()

		if _, err := r.put(ctx, next); err != nil {
			if errors.Is(err, ErrConflict) {
				continue
			}
			return reverted, fmt.Errorf("failed to revert stale claim on %s: %w", id, err)
		}

		r.logger.Info().Str("task_id", id).Str("claimed_by", cur.ClaimedBy).Msg("board.SweepStaleClaims: reverted stale claim")
		reverted = append(reverted, id)
	}

	return reverted, nil
}

// put writes a message conditionally on the version it was read at.
func (r *Repository) put(ctx context.Context, m *Message) (Version, error) {
	payload, err := EncodeMessage(m)
	if err != nil {
		return NoVersion, err
	}
	return r.store.Put(ctx, MessageKey(m.ID), payload, m.Version)
}

// newCASBackoff returns the jittered, context-aware backoff policy used by
// every conditional-write loop. maxAttempts counts total tries, so the
// retry budget is maxAttempts-1.
func (r *Repository) newCASBackoff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 20 * time.Millisecond
	bo.MaxInterval = 250 * time.Millisecond
	bo.RandomizationFactor = 0.5
	return backoff.WithContext(backoff.WithMaxRetries(bo, r.maxAttempts-1), ctx)
}

// permanentUnlessRetryable stops the retry loop for everything except store
// outages, which are worth waiting out.
func permanentUnlessRetryable(err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return backoff.Permanent(err)
}
