package domain

import (
	"context"
	"iter"
)

// FilterField names the metadata field an exact-match filter applies to.
type FilterField string

const (
	FilterTitle  FilterField = "title"
	FilterAuthor FilterField = "author"
)

// Filter is an exclusive "must match exactly" predicate on one payload field.
type Filter struct {
	Field FilterField
	Value string
}

// Matches reports whether the payload satisfies the filter.
func (f Filter) Matches(p ChunkPayload) bool { return p.Field(f.Field) == f.Value }

// SearchOptions parameterize a nearest-neighbour search.
type SearchOptions struct {
	Limit int
	// ScoreThreshold excludes results scoring below it when non-nil.
	ScoreThreshold *float64
	Filter         *Filter
}

// Record is a vector plus its chunk payload.
type Record struct {
	ID      string
	Vector  []float32
	Payload ChunkPayload
}

// ScoredRecord is a search hit returned by the index, highest score first.
type ScoredRecord struct {
	Payload ChunkPayload
	Score   float64
}

// CollectionInfo describes the state of the vector collection.
type CollectionInfo struct {
	Status      string
	RecordCount int
}

// Embedder maps text into a fixed-length vector space.
// EmbedMany returns one vector per input in the same order.
type Embedder interface {
	Name() string
	Dimension() int
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex persists vectors and supports filtered similarity search.
type VectorIndex interface {
	EnsureCollection(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, records []Record) error
	Search(ctx context.Context, vector []float32, opts SearchOptions) ([]ScoredRecord, error)
	// Enumerate returns up to limit records starting at cursor ("" for the
	// first page) and the cursor of the next page ("" when exhausted).
	Enumerate(ctx context.Context, limit int, cursor string) ([]Record, string, error)
	Describe(ctx context.Context) (CollectionInfo, error)
	Clear(ctx context.Context) error
	Close() error
}

// PageExtractor turns a book file into ordered pages and sets book.TotalPages.
type PageExtractor interface {
	Extract(ctx context.Context, book *Book) ([]Page, error)
}

// AnswerGenerator produces an answer from a system and user prompt.
// CompleteStream yields fragments lazily; it is finite and may be ranged over once.
type AnswerGenerator interface {
	Name() string
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	CompleteStream(ctx context.Context, systemPrompt, userPrompt string) iter.Seq2[string, error]
}
