package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookrag/internal/config"
	"bookrag/internal/logging"
)

const dunePage = "The spice melange extends life and expands consciousness. " +
	"Arrakis is the only source of the spice in the known universe. " +
	"The Fremen ride the great sandworms across the deep desert of Arrakis. " +
	"Paul Atreides learns the ways of the Fremen and their water discipline."

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	cfg := config.Default()
	cfg.VectorStore.Type = "memory"
	cfg.Chunker.ChunkSize = 20
	cfg.Chunker.Overlap = 5
	cfg.Chunker.MinChunkChars = 10
	return cfg
}

func TestBuild_IngestSearchAnswer(t *testing.T) {
	ctx := context.Background()
	a, err := Build(ctx, testConfig(t), logging.Discard())
	require.NoError(t, err)
	defer a.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dune - Frank Herbert.txt"), []byte(dunePage), 0o644))

	report, err := a.Library.IngestDirectory(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Ingested)
	assert.Positive(t, report.ChunksStored)

	qr := a.Engine.Process(ctx, "the spice of Arrakis source")
	require.NoError(t, qr.Err)
	require.NotEmpty(t, qr.Results)
	assert.Equal(t, "Dune", qr.Results[0].Title)
	assert.Equal(t, "Frank Herbert", qr.Results[0].Author)

	text, err := a.Responder.Respond(ctx, qr)
	require.NoError(t, err)
	assert.Contains(t, text, "[Source")

	stats, err := a.Engine.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.UniqueBooks)
	assert.True(t, stats.Complete)
}

const duneBook = `The spice melange is found only on the desert planet Arrakis. It extends life, expands consciousness and makes folding space possible for the Guild navigators. Whoever controls the spice controls the universe.

The Fremen are the native people of Arrakis. They live in hidden sietches deep in the desert and ride the giant sandworms that guard the spice sands. Water is so precious to them that they reclaim the moisture of their own dead.

Paul Atreides and his mother Jessica flee into the deep desert after the Harkonnen attack on Arrakeen. The Fremen accept them, and Paul takes the name Muad'Dib.`

const emmaBook = `Emma Woodhouse is handsome, clever and rich, and lives with her anxious father at Hartfield in the village of Highbury. She believes she has a talent for matchmaking after her governess marries Mr Weston.

Emma takes up Harriet Smith, a pretty but naive young woman, and persuades her to refuse a proposal from the farmer Robert Martin. Mr Knightley, an old friend of the family, warns Emma that her schemes will do harm.

At the picnic on Box Hill Emma insults poor Miss Bates, and Mr Knightley rebukes her. In the end Emma realises that she loves Mr Knightley herself.`

// Only the store is changed: chunking, embedder and threshold are the shipped defaults.
func TestBuild_DefaultConfigAnswersNaturalQuestions(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.VectorStore.Type = "memory"

	a, err := Build(ctx, cfg, logging.Discard())
	require.NoError(t, err)
	defer a.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dune - Frank Herbert.txt"), []byte(duneBook), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Emma - Jane Austen.txt"), []byte(emmaBook), 0o644))
	_, err = a.Library.IngestDirectory(ctx, dir)
	require.NoError(t, err)

	tests := []struct {
		question string
		title    string
	}{
		{"What is the spice melange?", "Dune"},
		{"Why is water precious to the Fremen?", "Dune"},
		{"What name does Paul take?", "Dune"},
		{"Who does Emma love?", "Emma"},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			qr := a.Engine.Process(ctx, tt.question)
			require.NoError(t, qr.Err)
			require.NotEmpty(t, qr.Results)
			assert.Equal(t, tt.title, qr.Results[0].Title)

			text, err := a.Responder.Respond(ctx, qr)
			require.NoError(t, err)
			assert.Contains(t, text, "[Source 1]")
		})
	}
}

func TestBuild_SQLitePersistsAcrossBuilds(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.VectorStore.Type = "sqlite"
	cfg.VectorStore.SQLite = &config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "index.db")}

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dune - Frank Herbert.txt"), []byte(dunePage), 0o644))

	a, err := Build(ctx, cfg, nil)
	require.NoError(t, err)
	_, err = a.Library.IngestDirectory(ctx, dir)
	require.NoError(t, err)
	require.NoError(t, a.Close())

	b, err := Build(ctx, cfg, nil)
	require.NoError(t, err)
	defer b.Close()
	results, err := b.Engine.SearchByAuthor(ctx, "Frank Herbert", "sandworms of the desert", 0)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.Equal(t, "Frank Herbert", r.Author)
	}
}

func TestBuild_UnknownComponents(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.AppConfig)
		want   string
	}{
		{"embedder", func(c *config.AppConfig) { c.Embedder.Type = "word2vec" }, "unknown embedder"},
		{"store", func(c *config.AppConfig) { c.VectorStore.Type = "faiss" }, "unknown vector store"},
		{"generator", func(c *config.AppConfig) { c.Generator.Type = "gpt2" }, "unknown generator"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)
			_, err := Build(context.Background(), cfg, nil)
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.want), err.Error())
		})
	}
}

func TestBuild_OpenAIGeneratorNeedsKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Generator.Type = "openai"
	cfg.Generator.OpenAI = &config.OpenAIGeneratorConfig{APIKeyEnv: "BOOKRAG_TEST_MISSING_KEY", Model: "m"}
	t.Setenv("BOOKRAG_TEST_MISSING_KEY", "")
	_, err := Build(context.Background(), cfg, nil)
	assert.Error(t, err)
}
