package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookrag/internal/chunker"
	"bookrag/internal/domain"
	"bookrag/internal/embedding/hashing"
	"bookrag/internal/extract"
	"bookrag/internal/vectorstore/memory"
)

type failingEmbedder struct{ domain.Embedder }

func (failingEmbedder) EmbedMany(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("embedding service down")
}

type shortEmbedder struct{ domain.Embedder }

func (s shortEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	out, err := s.Embedder.EmbedMany(ctx, texts)
	if err != nil {
		return nil, err
	}
	return out[:len(out)-1], nil
}

type countingIndex struct {
	*memory.Storage
	upserts   int
	failAfter int
}

func (c *countingIndex) Upsert(ctx context.Context, records []domain.Record) error {
	c.upserts++
	if c.failAfter > 0 && c.upserts > c.failAfter {
		return errors.New("index write failed")
	}
	return c.Storage.Upsert(ctx, records)
}

func writeBook(t *testing.T, dir, name string, words int) string {
	t.Helper()
	var b strings.Builder
	for i := 0; i < words; i++ {
		b.WriteString("photon ")
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func newTestLibrary(t *testing.T, embedder domain.Embedder, index domain.VectorIndex, batch int) *Library {
	t.Helper()
	ch, err := chunker.New(10, 2, 5)
	require.NoError(t, err)
	if embedder == nil {
		embedder, err = hashing.NewEmbedder(32)
		require.NoError(t, err)
	}
	return NewLibrary(Config{BatchSize: batch}, extract.New(nil), ch, embedder, index, nil)
}

func TestParseBookName(t *testing.T) {
	tests := []struct {
		file, title, author string
	}{
		{"Physics - Feynman.pdf", "Physics", "Feynman"},
		{"Physics.txt", "Physics", UnknownAuthor},
		{"A - B - C.txt", "A", "B"},
		{"  Spaced  -  Name .txt", "Spaced", "Name"},
		{"dir/Origin of Species - Darwin.txt", "Origin of Species", "Darwin"},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			title, author := ParseBookName(tt.file)
			assert.Equal(t, tt.title, title)
			assert.Equal(t, tt.author, author)
		})
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writeBook(t, dir, "Physics - Feynman.txt", 5)
	writeBook(t, dir, "Notes.PDF", 5)
	writeBook(t, dir, "cover.jpg", 5)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.txt"), 0o755))

	lib := newTestLibrary(t, nil, memory.NewStorage(), 50)
	books, err := lib.Discover(dir)
	require.NoError(t, err)
	require.Len(t, books, 2)

	titles := []string{books[0].Title, books[1].Title}
	assert.ElementsMatch(t, []string{"Physics", "Notes"}, titles)
	assert.NotEqual(t, books[0].ID, books[1].ID)
}

func TestSupports(t *testing.T) {
	ch, err := chunker.New(10, 2, 5)
	require.NoError(t, err)
	embedder, err := hashing.NewEmbedder(32)
	require.NoError(t, err)

	defaults := NewLibrary(Config{}, extract.New(nil), ch, embedder, memory.NewStorage(), nil)
	for _, ext := range extract.SupportedExtensions {
		assert.True(t, defaults.Supports("Book - Author"+ext), ext)
	}
	assert.False(t, defaults.Supports("cover.jpg"))

	// a configured extension the extractor cannot read is still skipped
	textOnly := NewLibrary(Config{Extensions: []string{".txt", ".epub"}}, extract.New(nil), ch, embedder, memory.NewStorage(), nil)
	assert.True(t, textOnly.Supports("Book.TXT"))
	assert.False(t, textOnly.Supports("Book.pdf"))
	assert.False(t, textOnly.Supports("Book.epub"))
}

func TestIngestBook_BatchesUpserts(t *testing.T) {
	dir := t.TempDir()
	path := writeBook(t, dir, "Physics - Feynman.txt", 42)
	index := &countingIndex{Storage: memory.NewStorage()}
	lib := newTestLibrary(t, nil, index, 2)

	book := domain.NewBook("Physics", "Feynman", path)
	n, err := lib.IngestBook(context.Background(), book)
	require.NoError(t, err)

	// 42 words, windows of 10 advancing by 8: starts 0,8,16,24,32
	assert.Equal(t, 5, n)
	assert.Equal(t, 3, index.upserts)
	assert.Equal(t, 1, book.TotalPages)

	info, err := index.Describe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, info.RecordCount)

	recs, _, err := index.Enumerate(context.Background(), 10, "")
	require.NoError(t, err)
	for i, r := range recs {
		assert.Equal(t, book.ID, r.Payload.BookID)
		assert.Equal(t, i, r.Payload.ChunkIndex)
		assert.Equal(t, "Feynman", r.Payload.Author)
	}
}

func TestIngestBook_FailFastOnBatchError(t *testing.T) {
	dir := t.TempDir()
	path := writeBook(t, dir, "Physics - Feynman.txt", 42)
	index := &countingIndex{Storage: memory.NewStorage(), failAfter: 1}
	lib := newTestLibrary(t, nil, index, 2)

	_, err := lib.IngestBook(context.Background(), domain.NewBook("Physics", "Feynman", path))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch 2/3")
	assert.Equal(t, 2, index.upserts)
}

func TestIngestBook_LengthMismatch(t *testing.T) {
	dir := t.TempDir()
	path := writeBook(t, dir, "Physics - Feynman.txt", 42)
	base, err := hashing.NewEmbedder(16)
	require.NoError(t, err)
	lib := newTestLibrary(t, shortEmbedder{base}, memory.NewStorage(), 50)

	_, err = lib.IngestBook(context.Background(), domain.NewBook("Physics", "Feynman", path))
	assert.ErrorIs(t, err, domain.ErrLengthMismatch)
}

func TestIngestBook_EmptyBookSkipped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Empty - Nobody.txt")
	require.NoError(t, os.WriteFile(path, []byte("  \n\n "), 0o644))
	lib := newTestLibrary(t, nil, memory.NewStorage(), 50)

	n, err := lib.IngestBook(context.Background(), domain.NewBook("Empty", "Nobody", path))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIngestDirectory_ContinuesPastFailures(t *testing.T) {
	dir := t.TempDir()
	writeBook(t, dir, "Physics - Feynman.txt", 42)
	writeBook(t, dir, "Biology - Darwin.txt", 20)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Blank - Nobody.txt"), []byte(" "), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Broken - Somebody.pdf"), []byte("not a pdf"), 0o644))

	index := memory.NewStorage()
	lib := newTestLibrary(t, nil, index, 50)
	report, err := lib.IngestDirectory(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 4, report.Discovered)
	assert.Equal(t, 2, report.Ingested)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Failed)
	assert.Contains(t, report.Errors, filepath.Join(dir, "Broken - Somebody.pdf"))

	info, err := index.Describe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report.ChunksStored, info.RecordCount)
}

func TestIngestDirectory_EmbedFailureRecorded(t *testing.T) {
	dir := t.TempDir()
	writeBook(t, dir, "Physics - Feynman.txt", 42)
	lib := newTestLibrary(t, failingEmbedder{}, memory.NewStorage(), 50)

	report, err := lib.IngestDirectory(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Zero(t, report.Ingested)
}

func TestReset(t *testing.T) {
	dir := t.TempDir()
	path := writeBook(t, dir, "Physics - Feynman.txt", 42)
	index := memory.NewStorage()
	lib := newTestLibrary(t, nil, index, 50)
	ctx := context.Background()

	_, err := lib.IngestBook(ctx, domain.NewBook("Physics", "Feynman", path))
	require.NoError(t, err)
	require.NoError(t, lib.Reset(ctx))

	info, err := index.Describe(ctx)
	require.NoError(t, err)
	assert.Zero(t, info.RecordCount)
}
