package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"bookrag/internal/domain"
)

const (
	DefaultChunkSize     = 400
	DefaultOverlap       = 50
	DefaultMinChunkChars = 50
)

// disallowed keeps word characters, whitespace and basic punctuation.
var disallowed = regexp.MustCompile(`[^\p{L}\p{N}_\s.,;:!?()\-]`)

// WordChunker splits page text into overlapping windows of words.
type WordChunker struct {
	chunkSize     int
	overlap       int
	minChunkChars int
}

// New validates the window geometry. overlap must be smaller than chunkSize,
// otherwise the window would never advance.
func New(chunkSize, overlap, minChunkChars int) (*WordChunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidChunkConfig, chunkSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must not be negative, got %d", domain.ErrInvalidChunkConfig, overlap)
	}
	if overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", domain.ErrInvalidChunkConfig, overlap, chunkSize)
	}
	if minChunkChars < 0 {
		minChunkChars = 0
	}
	return &WordChunker{chunkSize: chunkSize, overlap: overlap, minChunkChars: minChunkChars}, nil
}

// Normalize collapses whitespace runs, strips characters outside the
// conservative set and trims. The transformation is lossy.
func Normalize(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	text = disallowed.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// Split windows the normalized text. Consecutive windows share exactly
// overlap words; the last window ends at the final word.
func (c *WordChunker) Split(text string) []string {
	clean := Normalize(text)
	words := strings.Fields(clean)
	if len(words) <= c.chunkSize {
		return []string{clean}
	}

	var chunks []string
	start := 0
	for start < len(words) {
		end := min(start+c.chunkSize, len(words))
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end >= len(words) {
			break
		}
		start = end - c.overlap
	}
	return chunks
}

// Build chunks every page of book in the order given. Windows shorter than
// the minimum length are dropped; indices stay dense across the whole book.
func (c *WordChunker) Build(book *domain.Book, pages []domain.Page) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	idx := 0
	for _, page := range pages {
		if !utf8.ValidString(page.Text) {
			return nil, fmt.Errorf("page %d of %q: text is not valid UTF-8", page.Number, book.Title)
		}
		for _, text := range c.Split(page.Text) {
			if utf8.RuneCountInString(strings.TrimSpace(text)) < c.minChunkChars {
				continue
			}
			chunks = append(chunks, domain.NewChunk(book, page.Number, text, idx))
			idx++
		}
	}
	return chunks, nil
}
