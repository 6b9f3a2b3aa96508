package retrieval

import (
	"context"
	"fmt"

	"bookrag/internal/domain"
)

type bookKey struct{ title, author string }

// Statistics enumerates stored records page by page and counts unique
// (title, author) pairs and unique authors. When StatsMaxPages stops the
// walk early the counts are a lower bound and Complete is false.
func (e *Engine) Statistics(ctx context.Context) (domain.LibraryStats, error) {
	info, err := e.index.Describe(ctx)
	if err != nil {
		e.logger.Error("error getting collection info", "err", err)
		return domain.LibraryStats{}, fmt.Errorf("describing collection: %w", err)
	}

	books := map[bookKey]struct{}{}
	authors := map[string]struct{}{}
	total := 0
	cursor := ""
	complete := true
	for page := 0; ; page++ {
		if e.cfg.StatsMaxPages > 0 && page >= e.cfg.StatsMaxPages {
			complete = false
			break
		}
		records, next, err := e.index.Enumerate(ctx, e.cfg.StatsPageSize, cursor)
		if err != nil {
			e.logger.Error("error enumerating records", "page", page, "err", err)
			return domain.LibraryStats{}, fmt.Errorf("enumerating page %d: %w", page, err)
		}
		for _, r := range records {
			books[bookKey{r.Payload.Title, r.Payload.Author}] = struct{}{}
			authors[r.Payload.Author] = struct{}{}
			total++
		}
		if next == "" {
			break
		}
		cursor = next
	}

	vectors := info.RecordCount
	if vectors == 0 {
		vectors = total
	}
	return domain.LibraryStats{
		TotalChunks:      total,
		UniqueBooks:      len(books),
		UniqueAuthors:    len(authors),
		CollectionStatus: info.Status,
		VectorCount:      vectors,
		Complete:         complete,
	}, nil
}
