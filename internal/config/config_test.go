package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookrag/internal/domain"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 400, cfg.Chunker.ChunkSize)
	assert.Equal(t, 50, cfg.Chunker.Overlap)
	assert.Equal(t, 50, cfg.Chunker.MinChunkChars)
	assert.Equal(t, "hashing", cfg.Embedder.Type)
	assert.Equal(t, HashingDimension, cfg.Embedder.Dimension)
	assert.Equal(t, "sqlite", cfg.VectorStore.Type)
	assert.Equal(t, "book_library", cfg.VectorStore.Collection)
	assert.Equal(t, 50, cfg.VectorStore.UpsertBatchSize)
	assert.Equal(t, 10, cfg.Retrieval.TopK)
	assert.Equal(t, 5, cfg.Retrieval.FilteredTopK)
	assert.InDelta(t, HashingScoreThreshold, cfg.Retrieval.ScoreThreshold, 1e-9)
	assert.Equal(t, 30, cfg.Retrieval.QueryTimeoutSecs)
	assert.Equal(t, 2000, cfg.Retrieval.MaxContextChars)
	assert.Equal(t, 500, cfg.Retrieval.SummaryContextChars)
	assert.Equal(t, 1000, cfg.Retrieval.StatsPageSize)
	assert.Equal(t, "extractive", cfg.Generator.Type)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookrag.yaml")
	data := `
chunker:
  chunk_size: 200
  overlap: 20
vector_store:
  type: qdrant
  qdrant:
    host: qdrant.local
retrieval:
  score_threshold: 0.7
generator:
  type: openai
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 200, cfg.Chunker.ChunkSize)
	assert.Equal(t, 20, cfg.Chunker.Overlap)
	assert.Equal(t, "qdrant.local", cfg.VectorStore.Qdrant.Host)
	assert.Equal(t, 6334, cfg.VectorStore.Qdrant.Port)
	assert.InDelta(t, 0.7, cfg.Retrieval.ScoreThreshold, 1e-9)
	require.NotNil(t, cfg.Generator.OpenAI)
	assert.Equal(t, "GROQ_API_KEY", cfg.Generator.OpenAI.APIKeyEnv)
	assert.Equal(t, "https://api.groq.com/openai/v1", cfg.Generator.OpenAI.BaseURL)
}

func TestLoad_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookrag.toml")
	data := `
[embedder]
type = "ollama"

[embedder.ollama]
host = "http://gpu-box:11434"

[vector_store]
type = "memory"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.NotNil(t, cfg.Embedder.Ollama)
	assert.Equal(t, "http://gpu-box:11434", cfg.Embedder.Ollama.Host)
	assert.Equal(t, "all-minilm", cfg.Embedder.Ollama.Model)
	assert.Equal(t, "memory", cfg.VectorStore.Type)
}

func TestLoad_RejectsOverlapNotSmallerThanChunk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunker:\n  chunk_size: 50\n  overlap: 50\n"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "chunker.overlap")
	assert.ErrorIs(t, err, domain.ErrInvalidChunkConfig)
}

func TestLoad_ExplicitZerosAreKept(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		check func(*testing.T, *AppConfig)
	}{
		{"overlap", "chunker:\n  overlap: 0\n", func(t *testing.T, c *AppConfig) {
			assert.Equal(t, 0, c.Chunker.Overlap)
			assert.Equal(t, 400, c.Chunker.ChunkSize)
		}},
		{"score threshold", "retrieval:\n  score_threshold: 0\n", func(t *testing.T, c *AppConfig) {
			assert.Zero(t, c.Retrieval.ScoreThreshold)
			assert.Equal(t, 10, c.Retrieval.TopK)
		}},
		{"query timeout", "retrieval:\n  query_timeout_secs: 0\n", func(t *testing.T, c *AppConfig) {
			assert.Zero(t, c.Retrieval.QueryTimeoutSecs)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bookrag.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.data), 0o644))

			cfg, err := Load(path)
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoad_ExplicitZeroThresholdTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookrag.toml")
	require.NoError(t, os.WriteFile(path, []byte("[retrieval]\nscore_threshold = 0.0\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Zero(t, cfg.Retrieval.ScoreThreshold)
}

func TestLoad_SmallChunkSizeScalesOverlap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookrag.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunker:\n  chunk_size: 40\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Chunker.ChunkSize)
	assert.Equal(t, 5, cfg.Chunker.Overlap)
}

func TestLoad_ThresholdFollowsEmbedder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookrag.yaml")
	require.NoError(t, os.WriteFile(path, []byte("embedder:\n  type: openai\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.InDelta(t, DefaultScoreThreshold, cfg.Retrieval.ScoreThreshold, 1e-9)
	assert.Zero(t, cfg.Embedder.Dimension)
}

func TestValidate_NegativeQueryTimeout(t *testing.T) {
	cfg := Default()
	cfg.Retrieval.QueryTimeoutSecs = -1
	assert.ErrorContains(t, cfg.Validate(), "query_timeout_secs")
}

func TestValidate_UnknownTypes(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
		want   string
	}{
		{"embedder", func(c *AppConfig) { c.Embedder.Type = "word2vec" }, "unknown embedder"},
		{"store", func(c *AppConfig) { c.VectorStore.Type = "faiss" }, "unknown vector store"},
		{"generator", func(c *AppConfig) { c.Generator.Type = "gpt2" }, "unknown generator"},
		{"threshold", func(c *AppConfig) { c.Retrieval.ScoreThreshold = 1.5 }, "score_threshold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	for _, name := range []string{"out.yaml", "out.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			cfg := Default()
			cfg.Chunker.ChunkSize = 300
			cfg.Library.BooksDir = "/srv/books"

			require.NoError(t, Save(path, cfg))
			loaded, err := Load(path)
			require.NoError(t, err)

			assert.Equal(t, 300, loaded.Chunker.ChunkSize)
			assert.Equal(t, "/srv/books", loaded.Library.BooksDir)
			assert.Equal(t, cfg.VectorStore.SQLite.Path, loaded.VectorStore.SQLite.Path)
		})
	}
}
