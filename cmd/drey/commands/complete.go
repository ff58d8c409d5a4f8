package commands

import (
	"os"

	"github.com/dyluth/drey/internal/printer"
	"github.com/dyluth/drey/pkg/board"
	"github.com/spf13/cobra"
)

var completeResult []string

var completeCmd = &cobra.Command{
	Use:   "complete <task-id>",
	Short: "Mark a task this agent claimed as completed",
	Long: `Complete a task this agent holds, recording a result. Only the
claiming agent may complete a task.

Examples:
  drey complete task-1f4a0b2c9d8e --result fixed=true --result commit=abc123`,
	Args: cobra.ExactArgs(1),
	RunE: runComplete,
}

func init() {
	completeCmd.Flags().StringArrayVar(&completeResult, "result", nil, "Result entry as key=value (repeatable)")
	rootCmd.AddCommand(completeCmd)
}

func runComplete(cmd *cobra.Command, args []string) error {
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

	done, err := s.board.CompleteTask(ctx, taskID, parseContext(completeResult))
	if err != nil {
		switch {
		case board.IsNotOwner(err):
			return printer.Error("not the claiming agent", err.Error(),
				[]string{"Only the agent that claimed a task can complete it."})
		case board.IsInvalidState(err):
			return printer.Error("task is not in progress", err.Error(),
				[]string{"Claim the task first with: drey claim " + taskID})
		case board.IsNotFound(err):
			return printer.Error("task not found", "No task with ID "+taskID+" exists on the board.", nil)
		}
		return err
	}

	printer.Success("Completed %s\n", done.ID)
	printer.MessageDetail(os.Stdout, done)
	return nil
}
