package commands

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"bookrag/internal/domain"
	"bookrag/internal/service"
)

var (
	boldCyan   = color.New(color.FgCyan, color.Bold).SprintFunc()
	boldGreen  = color.New(color.FgGreen, color.Bold).SprintFunc()
	yellow     = color.New(color.FgYellow).SprintFunc()
	red        = color.New(color.FgRed).SprintFunc()
	faint      = color.New(color.Faint).SprintFunc()
	excerptLen = 200
)

// truncate shortens a string to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

func printResults(w io.Writer, results []domain.SearchResult) {
	for i, r := range results {
		fmt.Fprintf(w, "%s %s by %s, p.%d  %s\n", boldCyan(fmt.Sprintf("%d.", i+1)), r.Title, r.Author, r.PageNumber, yellow(fmt.Sprintf("score %.3f", r.Score)))
		fmt.Fprintf(w, "   %s\n\n", truncate(r.Text, excerptLen))
	}
}

func printSources(w io.Writer, results []domain.SearchResult, n int) {
	if len(results) == 0 {
		return
	}
	fmt.Fprintln(w, boldGreen("Sources:"))
	for i, r := range results[:min(n, len(results))] {
		fmt.Fprintf(w, "  [Source %d] %s by %s, p.%d (%.3f)\n", i+1, r.Title, r.Author, r.PageNumber, r.Score)
	}
}

func printStats(w io.Writer, s domain.LibraryStats) {
	fmt.Fprintln(w, boldGreen("Library statistics"))
	fmt.Fprintf(w, "  Chunks:   %d\n", s.TotalChunks)
	fmt.Fprintf(w, "  Books:    %d\n", s.UniqueBooks)
	fmt.Fprintf(w, "  Authors:  %d\n", s.UniqueAuthors)
	fmt.Fprintf(w, "  Vectors:  %d\n", s.VectorCount)
	fmt.Fprintf(w, "  Status:   %s\n", s.CollectionStatus)
	if !s.Complete {
		fmt.Fprintln(w, yellow("  enumeration stopped at the page cap; counts are lower bounds"))
	}
}

func printReport(w io.Writer, r service.IngestReport) {
	fmt.Fprintf(w, "%s %d discovered, %d ingested, %d skipped, %d failed, %d chunks stored\n",
		boldGreen("Ingestion:"), r.Discovered, r.Ingested, r.Skipped, r.Failed, r.ChunksStored)
	if len(r.Errors) == 0 {
		return
	}
	paths := make([]string, 0, len(r.Errors))
	for p := range r.Errors {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		fmt.Fprintf(w, "  %s %s: %v\n", red("failed"), p, r.Errors[p])
	}
}

func printUnavailable(w io.Writer, err error) {
	fmt.Fprintln(w, red("Search unavailable: ")+strings.TrimSpace(err.Error()))
}
