package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"

	"bookrag/internal/domain"
	"bookrag/internal/logging"
	"bookrag/internal/retrieval"
)

const defaultMaxContextChars = 2000

// Handlers implements the library tools.
type Handlers struct {
	engine          *retrieval.Engine
	maxContextChars int
	logger          *log.Logger
}

func NewHandlers(engine *retrieval.Engine, maxContextChars int, logger *log.Logger) *Handlers {
	if maxContextChars <= 0 {
		maxContextChars = defaultMaxContextChars
	}
	return &Handlers{engine: engine, maxContextChars: maxContextChars, logger: logging.Component(logger, "mcp")}
}

type passage struct {
	Title      string  `json:"title"`
	Author     string  `json:"author"`
	Page       int     `json:"page"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
	Text       string  `json:"text"`
}

type searchResponse struct {
	Query   string    `json:"query"`
	Count   int       `json:"count"`
	Results []passage `json:"results"`
}

type statsResponse struct {
	TotalChunks      int    `json:"total_chunks"`
	UniqueBooks      int    `json:"unique_books"`
	UniqueAuthors    int    `json:"unique_authors"`
	VectorCount      int    `json:"vector_count"`
	CollectionStatus string `json:"collection_status"`
	Complete         bool   `json:"complete"`
}

// SearchLibrary handles the search_library tool.
func (h *Handlers) SearchLibrary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query argument is required and must be a string"), nil
	}
	book := request.GetString("book", "")
	author := request.GetString("author", "")
	topK := request.GetInt("top_k", 0)
	if book != "" && author != "" {
		return mcp.NewToolResultError("book and author cannot both be set"), nil
	}

	var results []domain.SearchResult
	switch {
	case book != "":
		results, err = h.engine.SearchByBook(ctx, book, query, topK)
	case author != "":
		results, err = h.engine.SearchByAuthor(ctx, author, query, topK)
	default:
		p := h.engine.DefaultParams()
		if topK > 0 {
			p.TopK = topK
		}
		qr := h.engine.ProcessWith(ctx, query, p)
		results, err = qr.Results, qr.Err
		query = qr.Query
	}
	if err != nil {
		h.logger.Error("search failed", "query", query, "err", err)
		return mcp.NewToolResultError(fmt.Sprintf("search unavailable: %v", err)), nil
	}

	resp := searchResponse{Query: query, Count: len(results), Results: make([]passage, 0, len(results))}
	for _, r := range results {
		resp.Results = append(resp.Results, passage{
			Title:      r.Title,
			Author:     r.Author,
			Page:       r.PageNumber,
			ChunkIndex: r.ChunkIndex,
			Score:      r.Score,
			Text:       r.Text,
		})
	}
	return jsonResult(resp)
}

// LibraryContext handles the library_context tool.
func (h *Handlers) LibraryContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query argument is required and must be a string"), nil
	}
	maxChars := request.GetInt("max_chars", h.maxContextChars)
	if maxChars <= 0 {
		return mcp.NewToolResultError("max_chars must be positive"), nil
	}

	qr := h.engine.Process(ctx, query)
	if qr.Unavailable() {
		h.logger.Error("context search failed", "query", query, "err", qr.Err)
		return mcp.NewToolResultError(fmt.Sprintf("search unavailable: %v", qr.Err)), nil
	}
	text := qr.ContextText(maxChars)
	if text == "" {
		text = "No relevant passages found."
	}
	return mcp.NewToolResultText(text), nil
}

// LibraryStats handles the library_stats tool.
func (h *Handlers) LibraryStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := h.engine.Statistics(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("statistics unavailable: %v", err)), nil
	}
	return jsonResult(statsResponse{
		TotalChunks:      stats.TotalChunks,
		UniqueBooks:      stats.UniqueBooks,
		UniqueAuthors:    stats.UniqueAuthors,
		VectorCount:      stats.VectorCount,
		CollectionStatus: stats.CollectionStatus,
		Complete:         stats.Complete,
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
