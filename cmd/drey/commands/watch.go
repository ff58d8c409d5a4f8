package commands

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/dyluth/drey/internal/printer"
	"github.com/dyluth/drey/pkg/board"
	"github.com/spf13/cobra"
)

var (
	watchInterval time.Duration
	watchType     string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the board for new messages",
	Long: `Poll the board and print messages as they appear. The stores have
no push channel, so watching is a poll loop; tune --interval to trade
latency against store load. Stop with Ctrl-C.

Examples:
  # Watch everything
  drey watch

  # Watch for new tasks only, polling every 2s
  drey watch --type task --interval 2s`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 5*time.Second, "Poll interval")
	watchCmd.Flags().StringVar(&watchType, "type", "", "Filter by type: task, status, message, or handoff")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printer.Info("Watching board %s (interval %s, Ctrl-C to stop)...\n", s.cfg.Namespace, watchInterval)

	// Start from now; only messages posted after the watch begins appear.
	lastSeen := time.Now().UTC()
	seen := make(map[string]struct{})

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			printer.Info("\nStopped.\n")
			return nil
		case <-ticker.C:
		}

		opCtx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
		messages, err := s.board.GetMessages(opCtx, board.Filter{
			Type:  board.MessageType(watchType),
			Since: lastSeen.Add(-watchInterval), // overlap absorbs clock skew between agents
		})
		cancel()
		if err != nil {
			printer.Warning("poll failed: %v\n", err)
			continue
		}

		// Print oldest first so the stream reads chronologically.
		sort.SliceStable(messages, func(i, j int) bool {
			return messages[i].CreatedAt.Before(messages[j].CreatedAt)
		})
		for _, m := range messages {
			if _, dup := seen[m.ID]; dup {
				continue
			}
			seen[m.ID] = struct{}{}
			printer.MessageDetail(os.Stdout, m)
			if m.CreatedAt.After(lastSeen) {
				lastSeen = m.CreatedAt
			}
		}
	}
}
