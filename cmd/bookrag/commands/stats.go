package commands

import (
	"github.com/spf13/cobra"
)

// NewStatsCmd creates the stats command.
func NewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show library statistics",
		Long: `Count the stored passages, distinct books and distinct authors by
walking the whole index page by page.`,
		Args: cobra.NoArgs,
		RunE: runStats,
	}
}

func runStats(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.Engine.Statistics(cmd.Context())
	if err != nil {
		return err
	}
	printStats(cmd.OutOrStdout(), stats)
	return nil
}
