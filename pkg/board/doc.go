// Package board provides the Drey agent message board: a shared space where
// independent agent processes coordinate work through a durable object store.
//
// # Overview
//
// Agents communicate by posting JSON messages - tasks, status updates,
// free-form notes, and handoffs - to a shared namespace in an external store.
// The store offers no locking and no transactions; multiple agent processes,
// possibly on different hosts, must nevertheless agree on who owns a given
// task. The board solves this with optimistic concurrency: every object
// carries an opaque version token, every mutation is a conditional write,
// and a claim race has exactly one winner.
//
// # Core Concepts
//
// Messages are the sole persisted entity. A message of type task carries a
// lifecycle (pending → in_progress → completed/failed) driven by the claim
// protocol; status, message, and handoff messages have no lifecycle.
//
// The Store interface is the adapter contract over the external backend.
// Implementations must synthesize conditional-write semantics even when the
// backend lacks them; see internal/store for the shipped adapters (shared
// folder, Redis, remote drive).
//
// The Repository implements the claim protocol: a compare-and-swap loop with
// bounded, jittered retry. A lost claim race is a first-class outcome
// (AlreadyClaimedError), never a retried failure.
//
// The Board façade binds the operations to one agent identity and validates
// arguments before anything touches the store.
//
// # Usage Example
//
//	store, err := filestore.New("/shared/drey", "default")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	b, err := board.NewBoard(store, "agent-builder")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	task, err := b.PostTask(ctx, board.PostTaskParams{
//		Title:       "fix-auth",
//		Description: "Token refresh fails for expired sessions",
//		Priority:    board.PriorityHigh,
//	})
//
//	claimed, err := b.ClaimTask(ctx, task.ID)
//	if board.IsAlreadyClaimed(err) {
//		// another agent won the race - pick a different task
//	}
//
//	_, err = b.CompleteTask(ctx, task.ID, map[string]any{"fixed": true})
//
// # Consistency Model
//
// The store is the only shared resource. No component holds a long-lived
// lock; every mutation is conditional on the version the writer read, and
// retries are bounded with jittered backoff. The board guarantees no
// ordering across messages beyond read-your-writes after a successful put.
package board
