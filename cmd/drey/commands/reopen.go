package commands

import (
	"github.com/dyluth/drey/internal/printer"
	"github.com/dyluth/drey/pkg/board"
	"github.com/spf13/cobra"
)

var reopenCmd = &cobra.Command{
	Use:   "reopen <task-id>",
	Short: "Reopen a failed task (administrative)",
	Long: `Move a failed task back to pending so another agent can claim it.
This is the only backward transition the task lifecycle permits, and it is
always an explicit operator action - failed tasks never reopen on their own.

Examples:
  drey reopen task-1f4a0b2c9d8e`,
	Args: cobra.ExactArgs(1),
	RunE: runReopen,
}

func init() {
	rootCmd.AddCommand(reopenCmd)
}

func runReopen(cmd *cobra.Command, args []string) error {
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

	reopened, err := s.board.ReopenTask(ctx, taskID)
	if err != nil {
		switch {
		case board.IsInvalidState(err):
			return printer.Error("task is not failed", err.Error(),
				[]string{"Only failed tasks can be reopened."})
		case board.IsNotFound(err):
			return printer.Error("task not found", "No task with ID "+taskID+" exists on the board.", nil)
		}
		return err
	}

	printer.Success("Reopened %s - it is pending again\n", reopened.ID)
	return nil
}
