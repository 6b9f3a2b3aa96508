package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"bookrag/internal/service"
)

var (
	ingestReset bool
	ingestWatch bool
)

// NewIngestCmd creates the ingest command.
func NewIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [dir]",
		Short: "Index the books in a directory",
		Long: `Extract, chunk, embed and store every supported book in dir
(default: library.books_dir from the config).

Ingesting the same directory twice stores its passages twice; use
--reset to clear the index first.`,
		Example: `  bookrag ingest books/
  bookrag ingest --reset
  bookrag ingest --watch books/`,
		Args: cobra.MaximumNArgs(1),
		RunE: runIngest,
	}

	cmd.Flags().BoolVar(&ingestReset, "reset", false, "Clear the index before ingesting")
	cmd.Flags().BoolVar(&ingestWatch, "watch", false, "Keep running and ingest books added to the directory")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	dir := a.Config.Library.BooksDir
	if len(args) == 1 {
		dir = args[0]
	}
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if ingestReset {
		if err := a.Library.Reset(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, yellow("Index cleared."))
	}

	report, err := a.Library.IngestDirectory(ctx, dir)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", dir, err)
	}
	printReport(out, report)
	if report.Discovered == 0 {
		fmt.Fprintf(out, "No supported books found in %s\n", dir)
	}

	if !ingestWatch {
		return nil
	}
	w := service.NewWatcher(a.Library, dir, 0)
	w.OnIngest = func(path string, chunks int, err error) {
		if err != nil {
			fmt.Fprintf(out, "%s %s: %v\n", red("failed"), path, err)
			return
		}
		fmt.Fprintf(out, "%s %s (%d chunks)\n", boldGreen("ingested"), path, chunks)
	}
	fmt.Fprintf(out, "Watching %s, press Ctrl+C to stop.\n", dir)
	return w.Run(ctx)
}
