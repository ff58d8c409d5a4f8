package board

import (
	"errors"
	"fmt"
)

// Error taxonomy for board operations.
//
// Two errors deserve special note:
//
//   - ErrConflict is the store adapter's signal that a conditional write lost
//     an optimistic-concurrency race. It is retried a bounded number of times
//     inside the repository and surfaces as ErrConcurrentModification when
//     the bound is exhausted.
//   - AlreadyClaimedError is NOT a retryable failure. It is the expected
//     outcome of a legitimately lost claim race and must be surfaced to the
//     caller as a first-class result, never retried.
var (
	// ErrNotFound indicates the message ID has no object in the store.
	ErrNotFound = errors.New("message not found")

	// ErrAlreadyExists indicates a create hit an existing key (ID collision).
	ErrAlreadyExists = errors.New("message already exists")

	// ErrConflict indicates a conditional write was rejected because the
	// expected version was stale. Returned by Store implementations.
	ErrConflict = errors.New("version conflict")

	// ErrConcurrentModification indicates the bounded retry budget for an
	// optimistic-concurrency loop was exhausted by unrelated writers.
	ErrConcurrentModification = errors.New("concurrent modification")

	// ErrAlreadyClaimed is matched by AlreadyClaimedError via errors.Is.
	ErrAlreadyClaimed = errors.New("task already claimed")

	// ErrInvalidState indicates an illegal task lifecycle transition.
	ErrInvalidState = errors.New("invalid task state")

	// ErrNotOwner indicates a mutation attempted by a non-claiming agent.
	ErrNotOwner = errors.New("task owned by another agent")

	// ErrValidation indicates bad input, detected before any store call.
	ErrValidation = errors.New("validation failed")

	// ErrStoreUnavailable indicates the backing store could not be reached.
	// Retried with backoff inside the repository, then surfaced.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// AlreadyClaimedError reports a lost claim race: by the time the write
// landed, another agent already held the task.
type AlreadyClaimedError struct {
	TaskID    string
	ClaimedBy string
}

func (e *AlreadyClaimedError) Error() string {
	return fmt.Sprintf("task %s already claimed by %s", e.TaskID, e.ClaimedBy)
}

// Is makes errors.Is(err, ErrAlreadyClaimed) match.
func (e *AlreadyClaimedError) Is(target error) bool {
	return target == ErrAlreadyClaimed
}

// IsNotFound returns true if the error indicates a missing message.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyClaimed returns true if the error reports a lost claim race.
// Callers should treat this as a no-op outcome, not a failure.
func IsAlreadyClaimed(err error) bool {
	return errors.Is(err, ErrAlreadyClaimed)
}

// IsConflict returns true if the error is an optimistic-concurrency rejection.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsInvalidState returns true if the error reports an illegal transition.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsNotOwner returns true if the error reports a mutation by a non-owner.
func IsNotOwner(err error) bool {
	return errors.Is(err, ErrNotOwner)
}

// IsValidation returns true if the error reports rejected input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
