package commands

import (
	"fmt"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"bookrag/internal/mcp"
)

// NewMCPCmd creates the MCP command.
func NewMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for LLM agents",
		Long: `Serve the library over the Model Context Protocol on stdio so agents
can call search_library, library_context and library_stats.`,
		Example: `  # claude_desktop_config.json
  # {
  #   "mcpServers": {
  #     "bookrag": {"command": "bookrag", "args": ["mcp"]}
  #   }
  # }`,
		Args: cobra.NoArgs,
		RunE: runMCP,
	}
}

func runMCP(cmd *cobra.Command, _ []string) error {
	// stdout carries the protocol, so logs go to stderr.
	a, err := openApp(cmd, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	server, _ := mcp.NewServer(a.Engine, a.Config.Retrieval.MaxContextChars, a.Logger)
	a.Logger.Info("MCP server starting on stdio")

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- mcpserver.ServeStdio(server)
	}()

	select {
	case <-cmd.Context().Done():
		a.Logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}
	return nil
}
