package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/dyluth/drey/internal/printer"
	"github.com/dyluth/drey/pkg/board"
	"github.com/spf13/cobra"
)

var (
	postTitle       string
	postDescription string
	postPriority    string
	postContext     []string
	postTaskID      string
	postTarget      string
)

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Post a message, task, status update, or handoff to the board",
}

var postTaskCmd = &cobra.Command{
	Use:   "task",
	Short: "Post a task for other agents to pick up",
	Long: `Post a task to the board. Tasks start pending and stay on the board
until another agent claims and completes them.

Examples:
  # Post a normal-priority task
  drey post task --title "fix-auth" --description "Token refresh fails for expired sessions"

  # High priority, with context for the claiming agent
  drey post task --title "rotate-keys" --description "Rotate signing keys" \
    --priority high --context env=prod --context service=gateway`,
	RunE: runPostTask,
}

var postMessageCmd = &cobra.Command{
	Use:   "message",
	Short: "Post a free-form message with no lifecycle",
	Long: `Post a free-form note to the board.

Examples:
  drey post message --title "deploy window" --description "Deploys frozen until Monday"`,
	RunE: runPostMessage,
}

var postStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Post a progress report, optionally linked to a task",
	Long: `Post a status update. Use --task to link the update to the task
being reported on.

Examples:
  drey post status --title "fix-auth progress" --description "Root cause found, patch in review" \
    --task task-1f4a0b2c9d8e`,
	RunE: runPostStatus,
}

var postHandoffCmd = &cobra.Command{
	Use:   "handoff",
	Short: "Hand off in-progress work context to another agent",
	Long: `Post a handoff: a transfer of in-progress work context to another
session or agent. Handoffs default to high priority. A handoff is
informational only - it does not reassign a task's claim.

Examples:
  drey post handoff --title "continue fix-auth" \
    --description "Patch is half done, see branch fix-auth-wip" \
    --task task-1f4a0b2c9d8e --target agent-reviewer \
    --context branch=fix-auth-wip`,
	RunE: runPostHandoff,
}

func init() {
	for _, cmd := range []*cobra.Command{postTaskCmd, postMessageCmd, postStatusCmd, postHandoffCmd} {
		cmd.Flags().StringVar(&postTitle, "title", "", "Message title (required)")
		cmd.Flags().StringVar(&postDescription, "description", "", "Message body (required)")
		cmd.MarkFlagRequired("title")
		cmd.MarkFlagRequired("description")
	}
	postTaskCmd.Flags().StringVar(&postPriority, "priority", "normal", "Task priority: low, normal, or high")
	postTaskCmd.Flags().StringArrayVar(&postContext, "context", nil, "Context entry as key=value (repeatable)")
	postMessageCmd.Flags().StringArrayVar(&postContext, "context", nil, "Context entry as key=value (repeatable)")
	postStatusCmd.Flags().StringVar(&postTaskID, "task", "", "Task this status update refers to")
	postHandoffCmd.Flags().StringVar(&postTaskID, "task", "", "Task this handoff refers to")
	postHandoffCmd.Flags().StringVar(&postTarget, "target", "", "Intended recipient agent")
	postHandoffCmd.Flags().StringArrayVar(&postContext, "context", nil, "Context entry as key=value (repeatable)")

	postCmd.AddCommand(postTaskCmd, postMessageCmd, postStatusCmd, postHandoffCmd)
	rootCmd.AddCommand(postCmd)
}

func runPostTask(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := s.opCtx()
	defer cancel()

	msg, err := s.board.PostTask(ctx, board.PostTaskParams{
		Title:       postTitle,
		Description: postDescription,
		Priority:    board.Priority(postPriority),
		Context:     parseContext(postContext),
	})
	if err != nil {
		return postError("task", err)
	}

	printer.Success("Posted task %s\n", msg.ID)
	printer.MessageDetail(os.Stdout, msg)
	return nil
}

func runPostMessage(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := s.opCtx()
	defer cancel()

	msg, err := s.board.PostMessage(ctx, board.PostMessageParams{
		Title:   postTitle,
		Content: postDescription,
		Context: parseContext(postContext),
	})
	if err != nil {
		return postError("message", err)
	}

	printer.Success("Posted message %s\n", msg.ID)
	return nil
}

func runPostStatus(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := s.opCtx()
	defer cancel()

	msg, err := s.board.PostStatus(ctx, board.PostStatusParams{
		Title:      postTitle,
		StatusText: postDescription,
		TaskID:     postTaskID,
	})
	if err != nil {
		return postError("status", err)
	}

	printer.Success("Posted status %s\n", msg.ID)
	return nil
}

func runPostHandoff(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := s.opCtx()
	defer cancel()

	msg, err := s.board.PostHandoff(ctx, board.PostHandoffParams{
		Title:       postTitle,
		Description: postDescription,
		Context:     parseContext(postContext),
		TaskID:      postTaskID,
		TargetAgent: postTarget,
	})
	if err != nil {
		return postError("handoff", err)
	}

	printer.Success("Posted handoff %s\n", msg.ID)
	printer.MessageDetail(os.Stdout, msg)
	return nil
}

// parseContext turns repeated key=value flags into a context map.
func parseContext(entries []string) map[string]any {
	if len(entries) == 0 {
		return nil
	}
	ctx := make(map[string]any, len(entries))
	for _, entry := range entries {
		k, v, found := strings.Cut(entry, "=")
		if !found {
			ctx[entry] = ""
			continue
		}
		ctx[k] = v
	}
	return ctx
}

func postError(kind string, err error) error {
	if board.IsValidation(err) {
		return printer.Error(
			fmt.Sprintf("invalid %s arguments", kind),
			err.Error(),
			[]string{"Check that --title and --description are set and --priority is low, normal, or high."},
		)
	}
	return err
}
