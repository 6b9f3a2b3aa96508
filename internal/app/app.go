// Package app assembles the configured components into a runnable pipeline.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"bookrag/internal/answer"
	"bookrag/internal/chunker"
	"bookrag/internal/config"
	"bookrag/internal/domain"
	"bookrag/internal/embedding/hashing"
	"bookrag/internal/embedding/ollama"
	"bookrag/internal/embedding/openai"
	"bookrag/internal/extract"
	"bookrag/internal/logging"
	"bookrag/internal/retrieval"
	"bookrag/internal/service"
	"bookrag/internal/vectorstore/memory"
	"bookrag/internal/vectorstore/qdrant"
	"bookrag/internal/vectorstore/sqlite"
)

// App bundles the ingestion, retrieval and answering components.
type App struct {
	Config    *config.AppConfig
	Embedder  domain.Embedder
	Index     domain.VectorIndex
	Library   *service.Library
	Engine    *retrieval.Engine
	Responder *answer.Responder
	Logger    *log.Logger
}

// Build constructs every component from cfg. Connectivity problems with the
// vector index are reported here rather than at query time.
func Build(ctx context.Context, cfg *config.AppConfig, logger *log.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	embedder, err := buildEmbedder(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	index, err := buildIndex(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("vector store: %w", err)
	}
	gen, err := buildGenerator(cfg)
	if err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("generator: %w", err)
	}

	ch, err := chunker.New(cfg.Chunker.ChunkSize, cfg.Chunker.Overlap, cfg.Chunker.MinChunkChars)
	if err != nil {
		_ = index.Close()
		return nil, err
	}
	library := service.NewLibrary(service.Config{
		Extensions: cfg.Library.Extensions,
		BatchSize:  cfg.VectorStore.UpsertBatchSize,
	}, extract.New(logger), ch, embedder, index, logger)

	r := cfg.Retrieval
	engine, err := retrieval.NewEngine(retrieval.Config{
		TopK:           r.TopK,
		FilteredTopK:   r.FilteredTopK,
		ScoreThreshold: r.ScoreThreshold,
		StatsPageSize:  r.StatsPageSize,
		StatsMaxPages:  r.StatsMaxPages,
		QueryTimeout:   time.Duration(r.QueryTimeoutSecs) * time.Second,
	}, embedder, index, logger)
	if err != nil {
		_ = index.Close()
		return nil, err
	}

	logger.Debug("components ready", "embedder", embedder.Name(), "store", cfg.VectorStore.Type, "generator", gen.Name())
	return &App{
		Config:    cfg,
		Embedder:  embedder,
		Index:     index,
		Library:   library,
		Engine:    engine,
		Responder: answer.NewResponder(gen, r.PromptResults, logger),
		Logger:    logger,
	}, nil
}

// Close releases the vector index connection.
func (a *App) Close() error { return a.Index.Close() }

func buildEmbedder(cfg *config.AppConfig, logger *log.Logger) (domain.Embedder, error) {
	e := cfg.Embedder
	switch e.Type {
	case "hashing":
		return hashing.NewEmbedder(e.Dimension)
	case "openai":
		o := e.OpenAI
		return openai.NewClient(openai.Config{
			BaseURL:           o.BaseURL,
			APIKeyEnv:         o.APIKeyEnv,
			Model:             o.Model,
			Timeout:           time.Duration(o.TimeoutSecs) * time.Second,
			BatchSize:         o.BatchSize,
			RequestsPerSecond: o.RequestsPerSecond,
			MaxRetries:        o.MaxRetries,
			Dimension:         e.Dimension,
		}, logger)
	case "ollama":
		o := e.Ollama
		return ollama.NewEmbedder(ollama.Config{
			Host:    o.Host,
			Model:   o.Model,
			Timeout: time.Duration(o.TimeoutSecs) * time.Second,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown embedder: %s", e.Type)
	}
}

func buildIndex(ctx context.Context, cfg *config.AppConfig, logger *log.Logger) (domain.VectorIndex, error) {
	v := cfg.VectorStore
	switch v.Type {
	case "memory":
		return memory.NewStorage(), nil
	case "sqlite":
		return sqlite.Open(v.SQLite.Path, v.Collection)
	case "qdrant":
		q := v.Qdrant
		s, err := qdrant.NewStorage(qdrant.Config{
			Host:       q.Host,
			Port:       q.Port,
			APIKey:     q.APIKey,
			UseTLS:     q.UseTLS,
			Collection: v.Collection,
		}, logger)
		if err != nil {
			return nil, err
		}
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("qdrant unreachable at %s:%d: %w", q.Host, q.Port, err)
		}
		return s, nil
	default:
		return nil, errors.New("unknown vector store: " + v.Type)
	}
}

func buildGenerator(cfg *config.AppConfig) (domain.AnswerGenerator, error) {
	g := cfg.Generator
	switch g.Type {
	case "extractive":
		return answer.NewExtractive(g.Extractive.MaxSentences), nil
	case "openai":
		o := g.OpenAI
		return answer.NewOpenAIGenerator(answer.OpenAIConfig{
			BaseURL:     o.BaseURL,
			APIKeyEnv:   o.APIKeyEnv,
			Model:       o.Model,
			Temperature: o.Temperature,
			MaxTokens:   o.MaxTokens,
			Timeout:     time.Duration(o.TimeoutSecs) * time.Second,
		})
	case "ollama":
		o := g.Ollama
		return answer.NewOllamaGenerator(answer.OllamaConfig{
			Host:    o.Host,
			Model:   o.Model,
			Timeout: time.Duration(o.TimeoutSecs) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown generator: %s", g.Type)
	}
}
