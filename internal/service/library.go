// Package service ingests a directory of books into the vector index.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"bookrag/internal/domain"
	"bookrag/internal/extract"
	"bookrag/internal/logging"
)

// UnknownAuthor is used when a file name carries no " - Author" suffix.
const UnknownAuthor = "Unknown Author"

const nameSeparator = " - "

// ChunkBuilder turns a book's pages into chunks.
type ChunkBuilder interface {
	Build(book *domain.Book, pages []domain.Page) ([]domain.Chunk, error)
}

// Config controls discovery and upload batching.
type Config struct {
	Extensions []string
	BatchSize  int
}

// IngestReport summarizes a directory ingestion.
type IngestReport struct {
	Discovered   int
	Ingested     int
	Skipped      int
	Failed       int
	ChunksStored int
	Errors       map[string]error
}

// Library runs the extract, chunk, embed and upsert pipeline.
type Library struct {
	cfg       Config
	extractor domain.PageExtractor
	chunker   ChunkBuilder
	embedder  domain.Embedder
	index     domain.VectorIndex
	logger    *log.Logger
}

func NewLibrary(cfg Config, extractor domain.PageExtractor, chunker ChunkBuilder, embedder domain.Embedder, index domain.VectorIndex, logger *log.Logger) *Library {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = slices.Clone(extract.SupportedExtensions)
	}
	return &Library{
		cfg:       cfg,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		logger:    logging.Component(logger, "library"),
	}
}

// ParseBookName reads "<Title> - <Author>" from a file name without its extension.
func ParseBookName(filename string) (title, author string) {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	parts := strings.Split(base, nameSeparator)
	title = strings.TrimSpace(parts[0])
	author = UnknownAuthor
	if len(parts) > 1 {
		author = strings.TrimSpace(parts[1])
	}
	return title, author
}

// Supports reports whether the file extension is configured for ingestion
// and readable by the extractor.
func (l *Library) Supports(path string) bool {
	if !extract.Supported(path) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	return slices.ContainsFunc(l.cfg.Extensions, func(e string) bool { return strings.EqualFold(e, ext) })
}

// Discover lists the supported regular files directly inside dir, one fresh Book each.
func (l *Library) Discover(dir string) ([]*domain.Book, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading books directory: %w", err)
	}
	var books []*domain.Book
	for _, e := range entries {
		if !e.Type().IsRegular() || !l.Supports(e.Name()) {
			continue
		}
		title, author := ParseBookName(e.Name())
		books = append(books, domain.NewBook(title, author, filepath.Join(dir, e.Name())))
	}
	l.logger.Info("discovered books", "dir", dir, "books", len(books))
	return books, nil
}

// IngestBook stores every chunk of one book and returns how many were stored.
// A book without text is skipped with zero chunks and no error.
func (l *Library) IngestBook(ctx context.Context, book *domain.Book) (int, error) {
	l.logger.Info("processing book", "title", book.Title)

	pages, err := l.extractor.Extract(ctx, book)
	if err != nil {
		return 0, err
	}
	if len(pages) == 0 {
		l.logger.Warn("no text extracted", "title", book.Title)
		return 0, nil
	}

	chunks, err := l.chunker.Build(book, pages)
	if err != nil {
		return 0, fmt.Errorf("chunking %s: %w", book.Title, err)
	}
	if len(chunks) == 0 {
		l.logger.Warn("no chunks created", "title", book.Title)
		return 0, nil
	}
	l.logger.Info("created chunks", "title", book.Title, "chunks", len(chunks))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := l.embedder.EmbedMany(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding %s: %w", book.Title, err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("%w: %d chunks, %d embeddings", domain.ErrLengthMismatch, len(chunks), len(vectors))
	}
	if err := l.index.EnsureCollection(ctx, len(vectors[0])); err != nil {
		return 0, err
	}

	records := make([]domain.Record, len(chunks))
	for i, c := range chunks {
		records[i] = domain.Record{ID: uuid.NewString(), Vector: vectors[i], Payload: c.Payload()}
	}
	if err := l.upload(ctx, records); err != nil {
		return 0, err
	}
	l.logger.Info("stored book", "title", book.Title, "chunks", len(records))
	return len(records), nil
}

func (l *Library) upload(ctx context.Context, records []domain.Record) error {
	size := l.cfg.BatchSize
	total := (len(records)-1)/size + 1
	for start := 0; start < len(records); start += size {
		batch := records[start:min(start+size, len(records))]
		n := start/size + 1
		if err := l.index.Upsert(ctx, batch); err != nil {
			l.logger.Error("failed to upload batch", "batch", n, "err", err)
			return fmt.Errorf("uploading batch %d/%d: %w", n, total, err)
		}
		l.logger.Debug("uploaded batch", "batch", n, "of", total, "points", len(batch))
	}
	return nil
}

// IngestDirectory ingests every book in dir. A failing book is logged and
// recorded in the report; the remaining books are still processed.
func (l *Library) IngestDirectory(ctx context.Context, dir string) (IngestReport, error) {
	report := IngestReport{Errors: map[string]error{}}
	books, err := l.Discover(dir)
	if err != nil {
		return report, err
	}
	report.Discovered = len(books)
	for _, b := range books {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		n, err := l.IngestBook(ctx, b)
		switch {
		case err != nil:
			if errors.Is(err, context.Canceled) {
				return report, err
			}
			l.logger.Error("failed to process book", "title", b.Title, "err", err)
			report.Failed++
			report.Errors[b.FilePath] = err
		case n == 0:
			report.Skipped++
		default:
			report.Ingested++
			report.ChunksStored += n
		}
	}
	info, err := l.index.Describe(ctx)
	if err == nil {
		l.logger.Info("ingestion complete", "ingested", report.Ingested, "failed", report.Failed,
			"records", info.RecordCount, "status", info.Status)
	}
	return report, nil
}

// Reset removes everything from the index.
func (l *Library) Reset(ctx context.Context) error {
	if err := l.index.Clear(ctx); err != nil {
		return fmt.Errorf("clearing index: %w", err)
	}
	l.logger.Info("index cleared")
	return nil
}
