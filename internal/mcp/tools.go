// Package mcp exposes library search to agents over the Model Context Protocol.
package mcp

import (
	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"bookrag/internal/retrieval"
)

const (
	ServerName    = "bookrag"
	ServerVersion = "0.1.0"
)

// NewServer creates an MCP server with every library tool registered.
func NewServer(engine *retrieval.Engine, maxContextChars int, logger *log.Logger) (*mcpserver.MCPServer, *Handlers) {
	server := mcpserver.NewMCPServer(ServerName, ServerVersion, mcpserver.WithToolCapabilities(false))
	return server, RegisterTools(server, engine, maxContextChars, logger)
}

// RegisterTools registers search_library, library_context and library_stats.
func RegisterTools(server *mcpserver.MCPServer, engine *retrieval.Engine, maxContextChars int, logger *log.Logger) *Handlers {
	handlers := NewHandlers(engine, maxContextChars, logger)

	server.AddTool(mcp.Tool{
		Name:        "search_library",
		Description: "Semantic search over the ingested book library. Optionally restrict to one book title or one author.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language search query",
				},
				"book": map[string]interface{}{
					"type":        "string",
					"description": "Exact book title to search within",
				},
				"author": map[string]interface{}{
					"type":        "string",
					"description": "Exact author name to search within",
				},
				"top_k": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of passages to return (default: 10, or 5 when scoped)",
				},
			},
			Required: []string{"query"},
		},
	}, handlers.SearchLibrary)

	server.AddTool(mcp.Tool{
		Name:        "library_context",
		Description: "Citation-tagged context window of the passages most relevant to a question, ready to ground an answer.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Question to build context for",
				},
				"max_chars": map[string]interface{}{
					"type":        "number",
					"description": "Character budget for the passage text (default: 2000)",
				},
			},
			Required: []string{"query"},
		},
	}, handlers.LibraryContext)

	server.AddTool(mcp.Tool{
		Name:        "library_stats",
		Description: "Counts of stored chunks, books and authors in the library index.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handlers.LibraryStats)

	return handlers
}
