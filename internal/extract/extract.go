// Package extract turns book files into numbered pages of plain text.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/ledongthuc/pdf"

	"bookrag/internal/domain"
	"bookrag/internal/logging"
)

// TextPageChars is the size of a simulated page for text files without page breaks.
const TextPageChars = 2000

const textPageBreak = "\n\n\n"

var _ domain.PageExtractor = (*Extractor)(nil)

// SupportedExtensions lists the file types Extract understands.
var SupportedExtensions = []string{".pdf", ".txt"}

// Extractor dispatches on the file extension.
type Extractor struct {
	logger *log.Logger
}

func New(logger *log.Logger) *Extractor {
	return &Extractor{logger: logging.Component(logger, "extract")}
}

// Supported reports whether path has an extension Extract handles.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Extract reads the book's file and returns its non-blank pages in order.
// It sets book.TotalPages to the number of pages returned.
func (e *Extractor) Extract(ctx context.Context, book *domain.Book) ([]domain.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var (
		pages []domain.Page
		err   error
	)
	if !Supported(book.FilePath) {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, filepath.Ext(book.FilePath))
	}
	if strings.EqualFold(filepath.Ext(book.FilePath), ".pdf") {
		pages, err = extractPDF(ctx, book.FilePath)
	} else {
		pages, err = extractText(book.FilePath)
	}
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", book.FilePath, err)
	}
	book.TotalPages = len(pages)
	e.logger.Info("extracted pages", "title", book.Title, "pages", len(pages))
	return pages, nil
}

func extractPDF(ctx context.Context, path string) ([]domain.Page, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pages []domain.Page
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, domain.Page{Number: i, Text: text})
	}
	return pages, nil
}

func extractText(path string) ([]domain.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return SplitTextPages(string(data)), nil
}

// SplitTextPages simulates pages: triple newlines are page breaks, and content
// without any break is sliced every TextPageChars characters. Blank pages are
// dropped without renumbering the rest.
func SplitTextPages(content string) []domain.Page {
	pieces := strings.Split(content, textPageBreak)
	if len(pieces) == 1 {
		pieces = sliceRunes(content, TextPageChars)
	}
	var pages []domain.Page
	for i, piece := range pieces {
		text := strings.TrimSpace(piece)
		if text == "" {
			continue
		}
		pages = append(pages, domain.Page{Number: i + 1, Text: text})
	}
	return pages
}

func sliceRunes(s string, size int) []string {
	runes := []rune(s)
	var out []string
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		out = append(out, string(runes[start:end]))
	}
	return out
}
