// Package board provides type-safe Go definitions and the claim protocol for
// the Drey agent message board. The board is a shared space where independent,
// uncoordinated agent processes post tasks, claim them exclusively, report
// status, and hand off work through a durable store that offers no native
// locking or transactions.
package board

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message is the sole persisted entity on the board. One store object exists
// per message, keyed by its ID. Tasks additionally carry a lifecycle status
// governed by the claim protocol; for all other types Status is unset.
type Message struct {
	ID          string         `json:"id"`                    // {type}-{12 hex}, unique, immutable, assigned at creation
	CreatedAt   time.Time      `json:"created_at"`            // Set once at creation, immutable
	UpdatedAt   time.Time      `json:"updated_at"`            // Bumped on every mutation
	AgentID     string         `json:"agent_id"`              // Posting agent, immutable
	Type        MessageType    `json:"type"`                  // task, status, message, or handoff
	Priority    Priority       `json:"priority"`              // low, normal, or high
	Status      TaskStatus     `json:"status,omitempty"`      // Task lifecycle state; unset for non-tasks
	Title       string         `json:"title"`                 // Free text
	Description string         `json:"description"`           // Free text
	Context     map[string]any `json:"context,omitempty"`     // Opaque to the board
	Result      map[string]any `json:"result,omitempty"`      // Set on completion/failure, opaque to the board
	ClaimedBy   string         `json:"claimed_by,omitempty"`  // Agent holding the claim while in_progress
	ClaimedAt   *time.Time     `json:"claimed_at,omitempty"`  // When the claim was taken
	RefTaskID   string         `json:"ref_task_id,omitempty"` // Back-reference from status/handoff messages to a task

	// Version is the store's opaque concurrency token for this message.
	// It is set by the repository on every read and is never part of the
	// serialized payload. Callers must not modify it.
	Version Version `json:"-"`
}

// MessageType classifies what a message represents on the board.
type MessageType string

const (
	// MessageTypeTask is a unit of work other agents can claim and complete
	MessageTypeTask MessageType = "task"

	// MessageTypeStatus is a progress report, optionally linked to a task
	MessageTypeStatus MessageType = "status"

	// MessageTypeMessage is a free-form note with no lifecycle
	MessageTypeMessage MessageType = "message"

	// MessageTypeHandoff transfers in-progress work context between agents.
	// Informational only - it does not reassign a task's claim.
	MessageTypeHandoff MessageType = "handoff"
)

// Priority orders pending tasks for pickup: high before normal before low.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// TaskStatus is the lifecycle state of a task message.
// Transitions only move forward: pending → in_progress → completed/failed.
// The single exception is the explicit administrative reopen (failed → pending).
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// NewID generates a message ID of the form {type}-{12 hex chars}.
// The random portion comes from a v4 UUID, so collisions are vanishingly
// unlikely; the repository still treats a create collision as fatal after
// one regeneration attempt.
func NewID(t MessageType) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s-%s", t, raw[:12])
}

// Validate checks if the MessageType is a valid enum value.
func (t MessageType) Validate() error {
	switch t {
	case MessageTypeTask, MessageTypeStatus, MessageTypeMessage, MessageTypeHandoff:
		return nil
	default:
		return fmt.Errorf("unknown message type: %q", t)
	}
}

// Validate checks if the Priority is a valid enum value.
func (p Priority) Validate() error {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh:
		return nil
	default:
		return fmt.Errorf("unknown priority: %q", p)
	}
}

// Rank returns the sort weight of a priority: higher sorts first in
// pending-task listings.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 2
	case PriorityNormal:
		return 1
	default:
		return 0
	}
}

// Validate checks if the TaskStatus is a valid enum value.
func (s TaskStatus) Validate() error {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusFailed:
		return nil
	default:
		return fmt.Errorf("unknown task status: %q", s)
	}
}

// Terminal reports whether the status permits no further transitions.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// IsTask reports whether the message carries the task lifecycle.
func (m *Message) IsTask() bool {
	return m.Type == MessageTypeTask
}

// Validate checks if the Message has valid field values.
// Returns an error if any validation fails.
func (m *Message) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("message ID cannot be empty")
	}

	if err := m.Type.Validate(); err != nil {
		return fmt.Errorf("invalid type: %w", err)
	}

	if !strings.HasPrefix(m.ID, string(m.Type)+"-") {
		return fmt.Errorf("message ID %q does not match type %q", m.ID, m.Type)
	}

	if m.AgentID == "" {
		return fmt.Errorf("agent_id cannot be empty")
	}

	if m.Title == "" {
		return fmt.Errorf("title cannot be empty")
	}

	if err := m.Priority.Validate(); err != nil {
		return fmt.Errorf("invalid priority: %w", err)
	}

	if m.CreatedAt.IsZero() {
		return fmt.Errorf("created_at cannot be zero")
	}

	if m.IsTask() {
		if err := m.Status.Validate(); err != nil {
			return fmt.Errorf("invalid status: %w", err)
		}
		if m.Status == TaskStatusInProgress && m.ClaimedBy == "" {
			return fmt.Errorf("in_progress task must have claimed_by set")
		}
	} else if m.Status != "" {
		return fmt.Errorf("status is only meaningful for tasks, got %q on type %q", m.Status, m.Type)
	}

	return nil
}

// clone returns a deep-enough copy for the repository's read-mutate-write
// loop: scalar fields are copied, the Context and Result maps are shallow
// copied (the board never mutates their values).
func (m *Message) clone() *Message {
	cp := *m
	if m.Context != nil {
		cp.Context = make(map[string]any, len(m.Context))
		for k, v := range m.Context {
			cp.Context[k] = v
		}
	}
	if m.Result != nil {
		cp.Result = make(map[string]any, len(m.Result))
		for k, v := range m.Result {
			cp.Result[k] = v
		}
	}
	if m.ClaimedAt != nil {
		t := *m.ClaimedAt
		cp.ClaimedAt = &t
	}
	return &cp
}
