package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"bookrag/internal/domain"
)

var (
	searchBook      string
	searchAuthor    string
	searchTopK      int
	searchThreshold float64
)

// NewSearchCmd creates the search command.
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find the passages most relevant to a query",
		Long: `Search the indexed library and print ranked passages.

Unscoped searches drop passages scoring below the threshold. Searches
scoped to a book or author return the best matches without a threshold.`,
		Example: `  bookrag search "spice"
  bookrag search --top-k 3 --threshold 0.3 "desert ecology"
  bookrag search --author "Frank Herbert" "sandworms"`,
		Args: cobra.ExactArgs(1),
		RunE: runSearch,
	}

	cmd.Flags().StringVar(&searchBook, "book", "", "Only search the book with this exact title")
	cmd.Flags().StringVar(&searchAuthor, "author", "", "Only search books by this exact author")
	cmd.Flags().IntVar(&searchTopK, "top-k", 0, "Maximum results (default from config)")
	cmd.Flags().Float64Var(&searchThreshold, "threshold", 0, "Minimum relevance score for unscoped searches (default from config)")
	cmd.MarkFlagsMutuallyExclusive("book", "author")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchTopK < 0 {
		return fmt.Errorf("top-k must not be negative, got %d", searchTopK)
	}
	a, err := openApp(cmd, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	query := args[0]

	var results []domain.SearchResult
	switch {
	case searchBook != "":
		results, err = a.Engine.SearchByBook(ctx, searchBook, query, searchTopK)
	case searchAuthor != "":
		results, err = a.Engine.SearchByAuthor(ctx, searchAuthor, query, searchTopK)
	default:
		p := a.Engine.DefaultParams()
		if searchTopK > 0 {
			p.TopK = searchTopK
		}
		if cmd.Flags().Changed("threshold") {
			p.ScoreThreshold = &searchThreshold
		}
		qr := a.Engine.ProcessWith(ctx, query, p)
		results, err = qr.Results, qr.Err
		query = qr.Query
	}
	if err != nil {
		printUnavailable(out, err)
		return err
	}
	if len(results) == 0 {
		fmt.Fprintf(out, "No relevant passages found for: %s\n", query)
		return nil
	}
	printResults(out, results)
	fmt.Fprintf(out, "Found %d result(s)\n", len(results))
	return nil
}
