package board

import (
	"context"
	"sort"
	"time"

	"github.com/samber/lo"
)

// Filter narrows a message listing. Zero-valued fields match everything.
type Filter struct {
	Type    MessageType // restrict to one message type
	Status  TaskStatus  // restrict to one task status (implies Type task)
	AgentID string      // restrict to one posting agent
	Since   time.Time   // only messages created at or after this instant
	Limit   int         // cap the result count; 0 means unlimited
}

// Validate checks the filter's enum fields.
func (f Filter) Validate() error {
	if f.Type != "" {
		if err := f.Type.Validate(); err != nil {
			return err
		}
	}
	if f.Status != "" {
		if err := f.Status.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (f Filter) matches(m *Message) bool {
	if f.Type != "" && m.Type != f.Type {
		return false
	}
	if f.Status != "" && m.Status != f.Status {
		return false
	}
	if f.AgentID != "" && m.AgentID != f.AgentID {
		return false
	}
	if !f.Since.IsZero() && m.CreatedAt.Before(f.Since) {
		return false
	}
	return true
}

// Messages lists board messages matching the filter, newest first.
//
// The listing is a best-effort snapshot: keys are enumerated, then each
// object is fetched individually. A message that disappears between the
// list and the get, or one that fails to decode, is skipped with a warning
// rather than failing the whole scan - independent writers are always
// racing the reader and that is not an error.
func (r *Repository) Messages(ctx context.Context, f Filter) ([]*Message, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	keys, err := r.store.List(ctx, TypePrefix(f.Type))
	if err != nil {
		return nil, err
	}

	messages := make([]*Message, 0, len(keys))
	for _, key := range keys {
		id, ok := MessageIDFromKey(key)
		if !ok {
			continue
		}

		m, err := r.Get(ctx, id)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			r.logger.Warn().Err(err).Str("key", key).Msg("board.Messages: skipping unreadable object")
			continue
		}
		messages = append(messages, m)
	}

	messages = lo.Filter(messages, func(m *Message, _ int) bool { return f.matches(m) })

	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.After(messages[j].CreatedAt)
	})

	if f.Limit > 0 && len(messages) > f.Limit {
		messages = messages[:f.Limit]
	}

	return messages, nil
}

// PendingTasks lists unclaimed tasks in pickup order: priority high before
// normal before low, ties broken oldest first so long-waiting tasks surface.
func (r *Repository) PendingTasks(ctx context.Context) ([]*Message, error) {
	tasks, err := r.Messages(ctx, Filter{Type: MessageTypeTask, Status: TaskStatusPending})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Priority.Rank() != tasks[j].Priority.Rank() {
			return tasks[i].Priority.Rank() > tasks[j].Priority.Rank()
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})

	return tasks, nil
}
