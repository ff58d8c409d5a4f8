package commands

import (
	"errors"
	"os"

	"github.com/dyluth/drey/internal/printer"
	"github.com/dyluth/drey/pkg/board"
	"github.com/spf13/cobra"
)

var claimCmd = &cobra.Command{
	Use:   "claim <task-id>",
	Short: "Claim a pending task for this agent",
	Long: `Claim a pending task. At most one agent can hold a task; if another
agent wins the race, the command reports who holds it and exits cleanly -
a lost race is an expected outcome, not a failure.

Task IDs may be abbreviated to a unique prefix of at least 6 characters.

Examples:
  drey claim task-1f4a0b2c9d8e
  drey claim task-1f4a
  drey --agent agent-builder claim task-1f4a0b2c9d8e`,
	Args: cobra.ExactArgs(1),
	RunE: runClaim,
}

func init() {
	rootCmd.AddCommand(claimCmd)
}

func runClaim(cmd *cobra.Command, args []string) error {
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

	claimed, err := s.board.ClaimTask(ctx, taskID)
	if err != nil {
		var raced *board.AlreadyClaimedError
		if errors.As(err, &raced) {
			printer.Warning("Task %s is already claimed by %s - pick another task.\n", taskID, raced.ClaimedBy)
			return nil
		}
		switch {
		case board.IsNotFound(err):
			return printer.Error("task not found", "No task with ID "+taskID+" exists on the board.",
				[]string{"List pending tasks with: drey tasks"})
		case board.IsInvalidState(err):
			return printer.Error("task is not pending", err.Error(),
				[]string{"Only pending tasks can be claimed. Check its state with: drey list --type task"})
		}
		return err
	}

	printer.Success("Claimed %s as %s\n", claimed.ID, s.board.AgentID())
	printer.MessageDetail(os.Stdout, claimed)
	return nil
}
