package commands

import (
	"os"

	"github.com/dyluth/drey/internal/printer"
	"github.com/dyluth/drey/pkg/board"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <message-id>",
	Short: "Show the full detail of one message",
	Long: `Show every field of a message: lifecycle state, claim holder,
context, and result. Works for any message type.

Message IDs may be abbreviated to a unique prefix of at least 6 characters.

Examples:
  drey show task-1f4a0b2c9d8e
  drey show handoff-3c9d`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := s.opCtx()
	defer cancel()

	id, err := s.resolveID(ctx, args[0])
	if err != nil {
		return err
	}

	m, err := s.board.GetMessage(ctx, id)
	if err != nil {
		if board.IsNotFound(err) {
			return printer.Error("message not found", "No message with ID "+id+" exists on the board.", nil)
		}
		return err
	}

	printer.MessageDetail(os.Stdout, m)
	return nil
}
