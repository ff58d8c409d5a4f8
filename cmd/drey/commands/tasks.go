package commands

import (
	"os"

	"github.com/dyluth/drey/internal/printer"
	"github.com/spf13/cobra"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List pending tasks in pickup order",
	Long: `List unclaimed tasks in pickup order: high priority first, then
normal, then low; oldest first within a priority.

Examples:
  drey tasks`,
	RunE: runTasks,
}

func init() {
	rootCmd.AddCommand(tasksCmd)
}

func runTasks(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := s.opCtx()
	defer cancel()

	tasks, err := s.board.GetPendingTasks(ctx)
	if err != nil {
		return err
	}

	if len(tasks) == 0 {
		printer.Info("No pending tasks.\n")
		return nil
	}

	printer.TaskTable(os.Stdout, tasks)
	return nil
}
