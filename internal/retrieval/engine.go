// Package retrieval turns user queries into ranked chunks from the vector index.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"bookrag/internal/domain"
	"bookrag/internal/logging"
)

// minQueryWords is the word count below which a query is rephrased as a question.
const minQueryWords = 3

// Config holds retrieval defaults.
type Config struct {
	TopK           int
	FilteredTopK   int
	ScoreThreshold float64
	StatsPageSize  int
	// StatsMaxPages bounds statistics enumeration; 0 walks every page.
	StatsMaxPages int
	// QueryTimeout is applied to each search; 0 disables it.
	QueryTimeout time.Duration
}

// DefaultConfig returns the stock retrieval settings.
func DefaultConfig() Config {
	return Config{
		TopK:           10,
		FilteredTopK:   5,
		ScoreThreshold: 0.5,
		StatsPageSize:  1000,
		QueryTimeout:   30 * time.Second,
	}
}

// Params parameterize a single search. A nil ScoreThreshold disables thresholding.
type Params struct {
	TopK           int
	ScoreThreshold *float64
	Filter         *domain.Filter
}

// Engine embeds queries and delegates nearest-neighbour search to the index.
type Engine struct {
	cfg      Config
	embedder domain.Embedder
	index    domain.VectorIndex
	logger   *log.Logger
}

// NewEngine validates its collaborators; a missing one is a startup error.
func NewEngine(cfg Config, embedder domain.Embedder, index domain.VectorIndex, logger *log.Logger) (*Engine, error) {
	if embedder == nil {
		return nil, errors.New("retrieval: embedder is required")
	}
	if index == nil {
		return nil, errors.New("retrieval: vector index is required")
	}
	def := DefaultConfig()
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	if cfg.FilteredTopK <= 0 {
		cfg.FilteredTopK = def.FilteredTopK
	}
	if cfg.StatsPageSize <= 0 {
		cfg.StatsPageSize = def.StatsPageSize
	}
	return &Engine{cfg: cfg, embedder: embedder, index: index, logger: logging.Component(logger, "retrieval")}, nil
}

// Config returns the effective settings.
func (e *Engine) Config() Config { return e.cfg }

// DefaultParams are used for unscoped queries: top 10 above a 0.5 score.
func (e *Engine) DefaultParams() Params {
	threshold := e.cfg.ScoreThreshold
	return Params{TopK: e.cfg.TopK, ScoreThreshold: &threshold}
}

// Preprocess trims and collapses whitespace. Queries shorter than three words
// that are not already questions become "What is <query>?".
func Preprocess(raw string) string {
	words := strings.Fields(raw)
	query := strings.Join(words, " ")
	if len(words) < minQueryWords && !strings.HasSuffix(query, "?") {
		query = "What is " + query + "?"
	}
	return query
}

// Search embeds query and returns the index's ranking unchanged. On any
// backend failure it returns an empty slice and an error wrapping
// domain.ErrSearchUnavailable.
func (e *Engine) Search(ctx context.Context, query string, p Params) ([]domain.SearchResult, error) {
	if p.TopK <= 0 {
		p.TopK = e.cfg.TopK
	}
	if e.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.QueryTimeout)
		defer cancel()
	}

	vec, err := e.embedder.EmbedOne(ctx, query)
	if err != nil {
		e.logger.Error("error embedding query", "query", query, "err", err)
		return []domain.SearchResult{}, fmt.Errorf("%w: embedding: %w", domain.ErrSearchUnavailable, err)
	}
	hits, err := e.index.Search(ctx, vec, domain.SearchOptions{
		Limit:          p.TopK,
		ScoreThreshold: p.ScoreThreshold,
		Filter:         p.Filter,
	})
	if err != nil {
		e.logger.Error("error searching for similar chunks", "query", query, "err", err)
		return []domain.SearchResult{}, fmt.Errorf("%w: %w", domain.ErrSearchUnavailable, err)
	}

	results := make([]domain.SearchResult, len(hits))
	for i, h := range hits {
		results[i] = domain.NewSearchResult(h.Payload, h.Score)
	}
	e.logger.Debug("found relevant chunks", "count", len(results))
	return results, nil
}

// SearchByBook searches chunks whose title equals title exactly.
func (e *Engine) SearchByBook(ctx context.Context, title, query string, topK int) ([]domain.SearchResult, error) {
	return e.searchScoped(ctx, domain.FilterTitle, title, query, topK)
}

// SearchByAuthor searches chunks whose author equals author exactly.
func (e *Engine) SearchByAuthor(ctx context.Context, author, query string, topK int) ([]domain.SearchResult, error) {
	return e.searchScoped(ctx, domain.FilterAuthor, author, query, topK)
}

func (e *Engine) searchScoped(ctx context.Context, field domain.FilterField, value, query string, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = e.cfg.FilteredTopK
	}
	results, err := e.Search(ctx, query, Params{
		TopK:   topK,
		Filter: &domain.Filter{Field: field, Value: value},
	})
	if err == nil {
		e.logger.Info("scoped search", string(field), value, "results", len(results))
	}
	return results, err
}

// Process runs an unscoped query with the default parameters.
func (e *Engine) Process(ctx context.Context, query string) domain.QueryResult {
	return e.ProcessWith(ctx, query, e.DefaultParams())
}

// ProcessWith preprocesses and searches. It never fails: a backend failure
// yields empty results with Err set.
func (e *Engine) ProcessWith(ctx context.Context, query string, p Params) domain.QueryResult {
	start := time.Now()
	processed := Preprocess(query)
	e.logger.Info("processing query", "query", processed)

	results, err := e.Search(ctx, processed, p)
	elapsed := time.Since(start)

	e.logger.Info("query processed", "elapsed", elapsed, "results", len(results))
	return domain.QueryResult{
		Query:          processed,
		Results:        results,
		TotalResults:   len(results),
		ProcessingTime: elapsed,
		Err:            err,
	}
}
