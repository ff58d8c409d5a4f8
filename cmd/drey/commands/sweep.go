package commands

import (
	"time"

	"github.com/dyluth/drey/internal/printer"
	"github.com/spf13/cobra"
)

var sweepOlderThan time.Duration

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Revert stale claims to pending (administrative)",
	Long: `Revert in-progress tasks whose claim is older than --older-than back
to pending, recovering work abandoned by crashed agents.

Recovery is deliberately an explicit operator action: the board never
reverts a claim on its own, because only an operator can judge how long
"too long" is for a given workload.

Examples:
  # Reclaim anything held for more than two hours
  drey sweep --older-than 2h`,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().DurationVar(&sweepOlderThan, "older-than", 0, "Minimum claim age to revert (required)")
	sweepCmd.MarkFlagRequired("older-than")
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := s.opCtx()
	defer cancel()

	reverted, err := s.board.SweepStaleClaims(ctx, sweepOlderThan)
	if err != nil {
		return err
	}

	if len(reverted) == 0 {
		printer.Info("No stale claims found.\n")
		return nil
	}

	for _, id := range reverted {
		printer.Success("Reverted %s to pending\n", id)
	}
	return nil
}
