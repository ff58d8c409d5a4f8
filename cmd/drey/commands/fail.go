package commands

import (
	"github.com/dyluth/drey/internal/printer"
	"github.com/dyluth/drey/pkg/board"
	"github.com/spf13/cobra"
)

var failReason string

var failCmd = &cobra.Command{
	Use:   "fail <task-id>",
	Short: "Mark a task this agent claimed as failed",
	Long: `Fail a task this agent holds, recording the reason and releasing
the claim. Failed tasks stay on the board until an operator reopens them.

Examples:
  drey fail task-1f4a0b2c9d8e --reason "dependency service is down"`,
	Args: cobra.ExactArgs(1),
	RunE: runFail,
}

func init() {
	failCmd.Flags().StringVar(&failReason, "reason", "", "Why the task failed (required)")
	failCmd.MarkFlagRequired("reason")
	rootCmd.AddCommand(failCmd)
}

func runFail(cmd *cobra.Command, args []string) error {
	taskID := args[0]

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := s.opCtx()
	defer cancel()

	taskID, err = s.resolveID(ctx, taskID)
	if err != nil {
		return err
	}

	failed, err := s.board.FailTask(ctx, taskID, map[string]any{"error": failReason})
	if err != nil {
		switch {
		case board.IsNotOwner(err):
			return printer.Error("not the claiming agent", err.Error(),
				[]string{"Only the agent that claimed a task can fail it."})
		case board.IsInvalidState(err):
			return printer.Error("task is not in progress", err.Error(), nil)
		case board.IsNotFound(err):
			return printer.Error("task not found", "No task with ID "+taskID+" exists on the board.", nil)
		}
		return err
	}

	printer.Success("Marked %s as failed\n", failed.ID)
	return nil
}
