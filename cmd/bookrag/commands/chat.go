package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"bookrag/internal/tui"
)

// NewChatCmd creates the interactive chat command.
func NewChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive question answering session",
		Long: `Open a full-screen session for asking questions, browsing ranked
passages and searching within one book or author. Type help inside the
session for the command list.`,
		Args: cobra.NoArgs,
		RunE: runChat,
	}
}

func runChat(cmd *cobra.Command, _ []string) error {
	// The session owns the terminal; logs would corrupt the screen.
	a, err := openApp(cmd, io.Discard)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	summary := "Library statistics unavailable"
	if stats, err := a.Engine.Statistics(ctx); err == nil {
		summary = fmt.Sprintf("%d books by %d authors, %d passages | answers by %s",
			stats.UniqueBooks, stats.UniqueAuthors, stats.TotalChunks, a.Responder.Generator().Name())
	}
	m := tui.New(ctx, a.Engine, a.Responder, summary, a.Config.Retrieval.SummaryContextChars)
	return tui.Run(ctx, m)
}
