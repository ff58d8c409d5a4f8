package commands

import (
	"github.com/dyluth/drey/internal/config"
	"github.com/dyluth/drey/internal/printer"
	"github.com/dyluth/drey/internal/store/filestore"
	"github.com/spf13/cobra"
)

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Remove superseded message versions (file backend only)",
	Long: `Compact the shared folder by removing superseded generation files.
The board keeps every version a message has ever had; compaction trims each
message down to its newest versions. Safe to run while agents are active.

Only the file backend accumulates versions; the other backends store one
version per message and need no compaction.

Examples:
  drey compact`,
	Args: cobra.NoArgs,
	RunE: runCompact,
}

func init() {
	rootCmd.AddCommand(compactCmd)
}

func runCompact(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	if s.cfg.Backend != config.BackendFile {
		return printer.Error("nothing to compact", "The "+s.cfg.Backend+" backend keeps one version per message.",
			[]string{"Compaction only applies to the file backend."})
	}

	fs, ok := s.store.(*filestore.Store)
	if !ok {
		return printer.Error("nothing to compact", "The configured store does not accumulate versions.", nil)
	}

	ctx, cancel := s.opCtx()
	defer cancel()

	if err := fs.Compact(ctx); err != nil {
		return err
	}

	printer.Success("Compacted board data under %s\n", s.cfg.File.Root)
	return nil
}
