package domain

import (
	"strings"

	"github.com/google/uuid"
)

const (
	bookIDPrefix  = "BK_"
	chunkIDPrefix = "CH_"
)

// Book identifies a source document in the library.
type Book struct {
	ID         string
	Title      string
	Author     string
	FilePath   string
	TotalPages int
}

// NewBook always allocates a fresh BK_ identifier.
func NewBook(title, author, filePath string) *Book {
	return &Book{
		ID:       NewBookID(),
		Title:    title,
		Author:   author,
		FilePath: filePath,
	}
}

// NewBookID returns an identifier of the form BK_<8 hex chars>.
func NewBookID() string { return bookIDPrefix + shortHex() }

// NewChunkID returns an identifier of the form CH_<8 hex chars>.
func NewChunkID() string { return chunkIDPrefix + shortHex() }

func shortHex() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
