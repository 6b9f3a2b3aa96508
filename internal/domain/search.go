package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// SearchResult is a chunk's metadata plus its relevance score.
type SearchResult struct {
	ChunkID    string
	BookID     string
	Title      string
	Author     string
	PageNumber int
	ChunkIndex int
	Text       string
	Score      float64
}

// NewSearchResult rebuilds a result from stored payload.
func NewSearchResult(p ChunkPayload, score float64) SearchResult {
	return SearchResult{
		ChunkID:    p.ChunkID,
		BookID:     p.BookID,
		Title:      p.Title,
		Author:     p.Author,
		PageNumber: p.PageNumber,
		ChunkIndex: p.ChunkIndex,
		Text:       p.Text,
		Score:      score,
	}
}

// Citation renders the short "[title, p.N]" tag used in context windows.
func (r SearchResult) Citation() string {
	return fmt.Sprintf("[%s, p.%d]", r.Title, r.PageNumber)
}

func (r SearchResult) String() string {
	excerpt := r.Text
	if utf8.RuneCountInString(excerpt) > 200 {
		excerpt = string([]rune(excerpt)[:200])
	}
	return fmt.Sprintf("[%s by %s, p.%d] Score: %.3f\n%s...", r.Title, r.Author, r.PageNumber, r.Score, excerpt)
}

// QueryResult aggregates one processed query.
// Err is set when the backend failed; Results is then empty, exactly as for a zero-match query.
type QueryResult struct {
	Query          string
	Results        []SearchResult
	TotalResults   int
	ProcessingTime time.Duration
	Err            error
}

// Unavailable reports whether the search backend failed for this query.
func (q QueryResult) Unavailable() bool { return q.Err != nil }

// ContextText concatenates citation-tagged results in rank order.
// A result whose text would push the running character count past maxChars
// is dropped along with everything after it.
func (q QueryResult) ContextText(maxChars int) string {
	var parts []string
	count := 0
	for _, r := range q.Results {
		n := utf8.RuneCountInString(r.Text)
		if count+n > maxChars {
			break
		}
		parts = append(parts, r.Citation()+": "+r.Text)
		count += n
	}
	return strings.Join(parts, "\n\n")
}

// LibraryStats are corpus-level counts derived by enumerating stored records.
type LibraryStats struct {
	TotalChunks      int
	UniqueBooks      int
	UniqueAuthors    int
	CollectionStatus string
	VectorCount      int
	// Complete is false when enumeration stopped at the page cap.
	Complete bool
}
