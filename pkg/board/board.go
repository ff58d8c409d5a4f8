package board

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Board is the public operation surface of the message board, bound to a
// single agent identity. It validates arguments, constructs messages, and
// delegates to the repository; it contains no concurrency logic of its own.
type Board struct {
	repo     *Repository
	agentID  string
	validate *validator.Validate
}

// NewBoard creates a board client over the given store.
// If agentID is empty, a random identity of the form agent-{8 hex} is
// generated, matching the behavior of unconfigured agents.
func NewBoard(store Store, agentID string, opts ...RepositoryOption) (*Board, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store cannot be nil", ErrValidation)
	}
	if agentID == "" {
		agentID = fmt.Sprintf("agent-%s", strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	}

	return &Board{
		repo:     NewRepository(store, opts...),
		agentID:  agentID,
		validate: validator.New(),
	}, nil
}

// AgentID returns the identity this board client posts and claims as.
func (b *Board) AgentID() string {
	return b.agentID
}

// Repository exposes the underlying repository for callers that need
// operations outside the façade (custom clocks in tests, mostly).
func (b *Board) Repository() *Repository {
	return b.repo
}

// PostMessageParams are the arguments to PostMessage.
type PostMessageParams struct {
	Title    string `validate:"required"`
	Content  string `validate:"required"`
	Priority Priority
	Context  map[string]any
}

// PostTaskParams are the arguments to PostTask.
type PostTaskParams struct {
	Title       string `validate:"required"`
	Description string `validate:"required"`
	Priority    Priority
	Context     map[string]any
}

// PostStatusParams are the arguments to PostStatus.
type PostStatusParams struct {
	Title      string `validate:"required"`
	StatusText string `validate:"required"`
	TaskID     string // optional back-reference to the task being reported on
}

// PostHandoffParams are the arguments to PostHandoff.
type PostHandoffParams struct {
	Title       string `validate:"required"`
	Description string `validate:"required"`
	Context     map[string]any
	TaskID      string // optional back-reference to the task being handed off
	TargetAgent string // optional intended recipient, recorded in context
}

// PostMessage posts a free-form message with no lifecycle.
func (b *Board) PostMessage(ctx context.Context, p PostMessageParams) (*Message, error) {
	if err := b.checkParams(p, p.Priority); err != nil {
		return nil, err
	}

	m := b.newMessage(MessageTypeMessage, p.Title, p.Content, p.Priority, p.Context)
	if err := b.repo.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// PostTask posts a task other agents can claim. Tasks start pending.
func (b *Board) PostTask(ctx context.Context, p PostTaskParams) (*Message, error) {
	if err := b.checkParams(p, p.Priority); err != nil {
		return nil, err
	}

	m := b.newMessage(MessageTypeTask, p.Title, p.Description, p.Priority, p.Context)
	m.Status = TaskStatusPending
	if err := b.repo.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// PostStatus posts a progress report, optionally linked to a task.
func (b *Board) PostStatus(ctx context.Context, p PostStatusParams) (*Message, error) {
	if err := b.checkParams(p, ""); err != nil {
		return nil, err
	}

	m := b.newMessage(MessageTypeStatus, p.Title, p.StatusText, "", nil)
	m.RefTaskID = p.TaskID
	if err := b.repo.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// PostHandoff posts a transfer of in-progress work context to another
// session or agent. Handoffs default to high priority so they surface
// promptly; the intended recipient, if any, is recorded in context under
// "target_agent". A handoff is informational only - it never reassigns a
// task's claim.
func (b *Board) PostHandoff(ctx context.Context, p PostHandoffParams) (*Message, error) {
	if err := b.checkParams(p, ""); err != nil {
		return nil, err
	}

	hctx := p.Context
	if p.TargetAgent != "" {
		hctx = make(map[string]any, len(p.Context)+1)
		for k, v := range p.Context {
			hctx[k] = v
		}
		hctx["target_agent"] = p.TargetAgent
	}

	m := b.newMessage(MessageTypeHandoff, p.Title, p.Description, PriorityHigh, hctx)
	m.RefTaskID = p.TaskID
	if err := b.repo.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// GetMessage retrieves a single message by ID.
func (b *Board) GetMessage(ctx context.Context, id string) (*Message, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: message id cannot be empty", ErrValidation)
	}
	return b.repo.Get(ctx, id)
}

// GetMessages lists messages matching the filter, newest first.
func (b *Board) GetMessages(ctx context.Context, f Filter) ([]*Message, error) {
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return b.repo.Messages(ctx, f)
}

// GetPendingTasks lists unclaimed tasks in pickup order
// (priority high > normal > low, oldest first within a priority).
func (b *Board) GetPendingTasks(ctx context.Context) ([]*Message, error) {
	return b.repo.PendingTasks(ctx)
}

// ClaimTask claims a pending task for this agent. A lost race surfaces as
// AlreadyClaimedError; check it with IsAlreadyClaimed and treat it as a
// no-op outcome, not a failure.
func (b *Board) ClaimTask(ctx context.Context, taskID string) (*Message, error) {
	if taskID == "" {
		return nil, fmt.Errorf("%w: task id cannot be empty", ErrValidation)
	}
	return b.repo.ClaimTask(ctx, taskID, b.agentID)
}

// CompleteTask marks a task this agent claimed as completed.
func (b *Board) CompleteTask(ctx context.Context, taskID string, result map[string]any) (*Message, error) {
	if taskID == "" {
		return nil, fmt.Errorf("%w: task id cannot be empty", ErrValidation)
	}
	return b.repo.CompleteTask(ctx, taskID, b.agentID, result)
}

// FailTask marks a task this agent claimed as failed, releasing the claim.
func (b *Board) FailTask(ctx context.Context, taskID string, errPayload map[string]any) (*Message, error) {
	if taskID == "" {
		return nil, fmt.Errorf("%w: task id cannot be empty", ErrValidation)
	}
	return b.repo.FailTask(ctx, taskID, b.agentID, errPayload)
}

// ReopenTask is the explicit administrative failed → pending transition.
func (b *Board) ReopenTask(ctx context.Context, taskID string) (*Message, error) {
	if taskID == "" {
		return nil, fmt.Errorf("%w: task id cannot be empty", ErrValidation)
	}
	return b.repo.ReopenTask(ctx, taskID)
}

// SweepStaleClaims reverts claims older than olderThan back to pending.
// Administrative; see Repository.SweepStaleClaims.
func (b *Board) SweepStaleClaims(ctx context.Context, olderThan time.Duration) ([]string, error) {
	return b.repo.SweepStaleClaims(ctx, olderThan)
}

// checkParams runs struct-tag validation plus the priority enum check
// shared by the post operations. Everything fails before any store call.
func (b *Board) checkParams(params any, p Priority) error {
	if err := b.validate.Struct(params); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if p != "" {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}
	return nil
}

// newMessage constructs a message posted by this agent. An empty priority
// defaults to normal.
func (b *Board) newMessage(t MessageType, title, description string, priority Priority, context map[string]any) *Message {
	if priority == "" {
		priority = PriorityNormal
	}
	now := b.repo.now().UTC()

	return &Message{
		ID:          NewID(t),
		CreatedAt:   now,
		UpdatedAt:   now,
		AgentID:     b.agentID,
		Type:        t,
		Priority:    priority,
		Title:       title,
		Description: description,
		Context:     context,
	}
}
