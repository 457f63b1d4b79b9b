package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gaiakodi/gaiasource/internal/config"
	journal "github.com/gaiakodi/gaiasource/internal/log"
	"github.com/gaiakodi/gaiasource/internal/render"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent sessions from the operation journal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := config.JournalDir()
		if err != nil {
			return err
		}
		sessions, err := journal.ReadSessions(dir, historyLimit)
		if err != nil {
			return fmt.Errorf("failed to read journal: %w", err)
		}
		if len(sessions) == 0 && !globalFlags.JSON {
			fmt.Fprintln(cmd.OutOrStdout(), "No sessions recorded yet.")
			return nil
		}
		return render.New(os.Stdout, outputFormat(), globalFlags.Plain).Sessions(sessions)
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of sessions")
	rootCmd.AddCommand(historyCmd)
}
