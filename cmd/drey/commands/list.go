package commands

import (
	"os"

	"github.com/dyluth/drey/internal/printer"
	"github.com/dyluth/drey/internal/timespec"
	"github.com/dyluth/drey/pkg/board"
	"github.com/spf13/cobra"
)

var (
	listType  string
	listAgent string
	listSince string
	listLimit int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List board messages, newest first",
	Long: `List messages on the board, newest first.

Examples:
  # Everything, most recent 50
  drey list

  # Only tasks posted in the last two hours
  drey list --type task --since 2h

  # Messages from one agent
  drey list --agent-id agent-builder`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&listType, "type", "", "Filter by type: task, status, message, or handoff")
	listCmd.Flags().StringVar(&listAgent, "agent-id", "", "Filter by posting agent")
	listCmd.Flags().StringVar(&listSince, "since", "", "Only messages newer than a duration ('2h') or RFC3339 instant")
	listCmd.Flags().IntVar(&listLimit, "limit", 50, "Maximum messages to return (0 = unlimited)")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	filter := board.Filter{
		Type:    board.MessageType(listType),
		AgentID: listAgent,
		Limit:   listLimit,
	}

	if listSince != "" {
		since, err := timespec.Parse(listSince)
		if err != nil {
			return printer.Error("invalid --since value", err.Error(), nil)
		}
		filter.Since = since
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := s.opCtx()
	defer cancel()

	messages, err := s.board.GetMessages(ctx, filter)
	if err != nil {
		if board.IsValidation(err) {
			return printer.Error("invalid filter", err.Error(),
				[]string{"Valid types: task, status, message, handoff"})
		}
		return err
	}

	if len(messages) == 0 {
		printer.Info("No messages found.\n")
		return nil
	}

	printer.MessageTable(os.Stdout, messages)
	return nil
}
