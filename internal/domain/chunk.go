package domain

// Chunk is a bounded span of normalized text from one page of one book.
// Index is dense and zero-based within a book's chunk stream.
type Chunk struct {
	ID         string
	BookID     string
	Title      string
	Author     string
	PageNumber int
	Text       string
	Index      int
}

// NewChunk builds a chunk for book with a freshly generated CH_ identifier.
func NewChunk(book *Book, page int, text string, index int) Chunk {
	return Chunk{
		ID:         NewChunkID(),
		BookID:     book.ID,
		Title:      book.Title,
		Author:     book.Author,
		PageNumber: page,
		Text:       text,
		Index:      index,
	}
}

// ChunkPayload is the storage-ready metadata kept next to every vector.
// It carries everything needed to rebuild a SearchResult without a lookup.
type ChunkPayload struct {
	ChunkID    string `json:"chunk_id"`
	BookID     string `json:"book_id"`
	Title      string `json:"title"`
	Author     string `json:"author"`
	PageNumber int    `json:"page_number"`
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"text"`
}

// Payload serializes the chunk into its index metadata.
func (c Chunk) Payload() ChunkPayload {
	return ChunkPayload{
		ChunkID:    c.ID,
		BookID:     c.BookID,
		Title:      c.Title,
		Author:     c.Author,
		PageNumber: c.PageNumber,
		ChunkIndex: c.Index,
		Text:       c.Text,
	}
}

// Field returns the payload value used by exact-match filters.
func (p ChunkPayload) Field(f FilterField) string {
	switch f {
	case FilterTitle:
		return p.Title
	case FilterAuthor:
		return p.Author
	default:
		return ""
	}
}

// Page is one extracted page of a book.
type Page struct {
	Number int
	Text   string
}
