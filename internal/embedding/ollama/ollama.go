package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ollama/ollama/api"

	"bookrag/internal/domain"
	"bookrag/internal/logging"
)

var _ domain.Embedder = (*Embedder)(nil)

// Config points the embedder at an Ollama server.
type Config struct {
	Host      string
	Model     string
	Timeout   time.Duration
	BatchSize int
}

// Embedder produces embeddings with a locally served Ollama model.
type Embedder struct {
	client    *api.Client
	model     string
	batchSize int
	logger    *log.Logger

	mu        sync.RWMutex
	dimension int
}

// NewEmbedder creates an embedder talking to the configured Ollama host.
func NewEmbedder(cfg Config, logger *log.Logger) (*Embedder, error) {
	if cfg.Host == "" {
		cfg.Host = "http://localhost:11434"
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama embedder: model is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 16
	}
	base, err := url.Parse(cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", cfg.Host, err)
	}
	return &Embedder{
		client:    api.NewClient(base, &http.Client{Timeout: cfg.Timeout}),
		model:     cfg.Model,
		batchSize: cfg.BatchSize,
		logger:    logging.Component(logger, "embedder").With("model", cfg.Model),
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "ollama" }

// Dimension is known after the first successful call.
func (e *Embedder) Dimension() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dimension
}

// EmbedOne returns an embedding vector for the given text.
func (e *Embedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedMany embeds texts in batches, returning vectors in input order.
func (e *Embedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		batch := texts[start:end]
		resp, err := e.client.Embed(ctx, &api.EmbedRequest{Model: e.model, Input: batch})
		if err != nil {
			return nil, fmt.Errorf("ollama embed: %w", err)
		}
		if len(resp.Embeddings) != len(batch) {
			return nil, fmt.Errorf("ollama embed: %w: sent %d texts, got %d vectors",
				domain.ErrLengthMismatch, len(batch), len(resp.Embeddings))
		}
		if err := e.checkDimension(len(resp.Embeddings[0])); err != nil {
			return nil, err
		}
		out = append(out, resp.Embeddings...)
	}
	e.logger.Debug("embedded texts", "count", len(texts))
	return out, nil
}

func (e *Embedder) checkDimension(n int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dimension == 0 {
		e.dimension = n
		return nil
	}
	if e.dimension != n {
		return fmt.Errorf("%w: expected %d, got %d", domain.ErrDimensionMismatch, e.dimension, n)
	}
	return nil
}
