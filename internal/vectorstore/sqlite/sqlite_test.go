package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookrag/internal/domain"
)

func openTest(t *testing.T, collection string) *Storage {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "index.db"), collection)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func record(id, title, author string, v ...float32) domain.Record {
	return domain.Record{ID: id, Vector: v, Payload: domain.ChunkPayload{
		ChunkID: id, Title: title, Author: author, PageNumber: 1, Text: "text " + id,
	}}
}

func TestBlobRoundTrip(t *testing.T) {
	v := []float32{0, 1.5, -2.25, 3.4028235e38}
	assert.Equal(t, v, blobToVector(vectorToBlob(v)))
	assert.Empty(t, blobToVector(nil))
}

func TestStorage_SearchWithFilterAndThreshold(t *testing.T) {
	ctx := context.Background()
	s := openTest(t, "books")
	require.NoError(t, s.EnsureCollection(ctx, 2))
	require.NoError(t, s.Upsert(ctx, []domain.Record{
		record("1", "Physics", "Feynman", 1, 0),
		record("2", "Physics II", "Feynman", 1, 0),
		record("3", "Biology", "Darwin", 0, 1),
	}))

	threshold := 0.5
	out, err := s.Search(ctx, []float32{1, 0}, domain.SearchOptions{Limit: 10, ScoreThreshold: &threshold})
	require.NoError(t, err)
	require.Len(t, out, 2)

	out, err = s.Search(ctx, []float32{1, 0}, domain.SearchOptions{
		Limit:  5,
		Filter: &domain.Filter{Field: domain.FilterTitle, Value: "Physics"},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "1", out[0].Payload.ChunkID)
	assert.Equal(t, "text 1", out[0].Payload.Text)

	out, err = s.Search(ctx, []float32{1, 0}, domain.SearchOptions{
		Limit:  5,
		Filter: &domain.Filter{Field: domain.FilterAuthor, Value: "Darwin"},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Biology", out[0].Payload.Title)
}

func TestStorage_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	s := openTest(t, "books")
	require.NoError(t, s.Upsert(ctx, []domain.Record{record("1", "Old", "A", 1, 0)}))
	require.NoError(t, s.Upsert(ctx, []domain.Record{record("1", "New", "A", 0, 1)}))

	info, err := s.Describe(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, info.RecordCount)
	assert.Equal(t, "green", info.Status)

	out, err := s.Search(ctx, []float32{0, 1}, domain.SearchOptions{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, "New", out[0].Payload.Title)
}

func TestStorage_DimensionEnforced(t *testing.T) {
	ctx := context.Background()
	s := openTest(t, "books")
	require.NoError(t, s.EnsureCollection(ctx, 3))
	require.NoError(t, s.EnsureCollection(ctx, 3))
	assert.ErrorIs(t, s.EnsureCollection(ctx, 2), domain.ErrDimensionMismatch)
	assert.ErrorIs(t, s.Upsert(ctx, []domain.Record{record("1", "x", "y", 1, 0)}), domain.ErrDimensionMismatch)
}

func TestStorage_EnumerateAllPages(t *testing.T) {
	ctx := context.Background()
	s := openTest(t, "books")
	var recs []domain.Record
	for i := 0; i < 7; i++ {
		recs = append(recs, record(fmt.Sprintf("r%d", i), "T", "A", 1, float32(i)))
	}
	require.NoError(t, s.Upsert(ctx, recs))

	var ids []string
	cursor, pages := "", 0
	for {
		page, next, err := s.Enumerate(ctx, 3, cursor)
		require.NoError(t, err)
		pages++
		for _, r := range page {
			ids = append(ids, r.ID)
			assert.Len(t, r.Vector, 2)
		}
		if next == "" {
			break
		}
		cursor = next
	}
	assert.Equal(t, 3, pages)
	assert.Len(t, ids, 7)
	assert.Equal(t, "r0", ids[0])
	assert.Equal(t, "r6", ids[6])
}

func TestStorage_CollectionsIsolatedAndClear(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")
	a, err := Open(path, "a")
	require.NoError(t, err)
	defer a.Close()
	b, err := Open(path, "b")
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.Upsert(ctx, []domain.Record{record("1", "x", "y", 1, 0)}))
	require.NoError(t, b.Upsert(ctx, []domain.Record{record("1", "x", "y", 1, 0, 0)}))

	require.NoError(t, a.Clear(ctx))
	infoA, err := a.Describe(ctx)
	require.NoError(t, err)
	infoB, err := b.Describe(ctx)
	require.NoError(t, err)
	assert.Zero(t, infoA.RecordCount)
	assert.Equal(t, 1, infoB.RecordCount)

	require.NoError(t, a.EnsureCollection(ctx, 8))
}
