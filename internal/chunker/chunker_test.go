package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookrag/internal/domain"
)

func words(from, to int) string {
	var b strings.Builder
	for i := from; i < to; i++ {
		if i > from {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "w%d", i)
	}
	return b.String()
}

func TestNew_RejectsBadGeometry(t *testing.T) {
	tests := []struct {
		name      string
		size, ovl int
	}{
		{"overlap equals size", 10, 10},
		{"overlap exceeds size", 10, 11},
		{"zero size", 0, 0},
		{"negative overlap", 10, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.size, tt.ovl, DefaultMinChunkChars)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidChunkConfig)
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  hello \n\n  world\t ", "hello world"},
		{"keep: these, (marks) - ok? yes! end.", "keep: these, (marks) - ok? yes! end."},
		{"strip @#$% symbols*", "strip  symbols"},
		{"naïve café 42", "naïve café 42"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "Normalize(%q)", tt.in)
	}
}

func TestSplit_ShortTextIsOneChunk(t *testing.T) {
	c, err := New(5, 2, 0)
	require.NoError(t, err)

	text := "  one   two three\nfour  five "
	got := c.Split(text)

	require.Len(t, got, 1)
	assert.Equal(t, Normalize(text), got[0])
}

func TestSplit_OverlapProperty(t *testing.T) {
	for _, tc := range []struct{ n, size, ovl int }{
		{12, 5, 2},
		{11, 5, 2},
		{100, 10, 3},
		{401, 400, 50},
		{1000, 400, 50},
		{7, 3, 0},
	} {
		t.Run(fmt.Sprintf("n=%d size=%d overlap=%d", tc.n, tc.size, tc.ovl), func(t *testing.T) {
			c, err := New(tc.size, tc.ovl, 0)
			require.NoError(t, err)

			chunks := c.Split(words(0, tc.n))
			require.Greater(t, len(chunks), 1)

			for i := 0; i+1 < len(chunks); i++ {
				cur := strings.Fields(chunks[i])
				next := strings.Fields(chunks[i+1])
				assert.Len(t, cur, tc.size)
				assert.Equal(t, cur[len(cur)-tc.ovl:], next[:tc.ovl])
			}
			last := strings.Fields(chunks[len(chunks)-1])
			assert.Equal(t, fmt.Sprintf("w%d", tc.n-1), last[len(last)-1])
		})
	}
}

func TestSplit_KnownWindows(t *testing.T) {
	c, err := New(5, 2, 0)
	require.NoError(t, err)

	got := c.Split(words(0, 12))

	assert.Equal(t, []string{
		"w0 w1 w2 w3 w4",
		"w3 w4 w5 w6 w7",
		"w6 w7 w8 w9 w10",
		"w9 w10 w11",
	}, got)
}

func TestBuild_DenseIndicesAcrossPages(t *testing.T) {
	c, err := New(DefaultChunkSize, DefaultOverlap, DefaultMinChunkChars)
	require.NoError(t, err)
	book := domain.NewBook("Physics", "Chen", "Physics - Chen.txt")

	long := strings.Repeat("Energy levels of electrons are quantized in atoms. ", 5)
	pages := []domain.Page{
		{Number: 1, Text: long},
		{Number: 2, Text: "too short"},
		{Number: 3, Text: ""},
		{Number: 4, Text: long},
	}

	chunks, err := c.Build(book, pages)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
		assert.Equal(t, book.ID, ch.BookID)
		assert.Equal(t, "Physics", ch.Title)
		assert.GreaterOrEqual(t, len(ch.Text), DefaultMinChunkChars)
	}
	assert.Equal(t, 1, chunks[0].PageNumber)
	assert.Equal(t, 4, chunks[1].PageNumber)
	assert.NotEqual(t, chunks[0].ID, chunks[1].ID)
}

func TestBuild_IndicesContinueOverWindows(t *testing.T) {
	c, err := New(20, 5, 10)
	require.NoError(t, err)
	book := domain.NewBook("Long", "Author", "long.txt")

	chunks, err := c.Build(book, []domain.Page{
		{Number: 1, Text: words(0, 50)},
		{Number: 2, Text: words(50, 100)},
	})
	require.NoError(t, err)

	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
	}
	assert.Greater(t, len(chunks), 4)
}

func TestBuild_MinChunkCharsConfigurable(t *testing.T) {
	c, err := New(DefaultChunkSize, DefaultOverlap, 5)
	require.NoError(t, err)

	chunks, err := c.Build(domain.NewBook("T", "A", "t.txt"), []domain.Page{{Number: 1, Text: "short page"}})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "short page", chunks[0].Text)
}

func TestBuild_InvalidUTF8(t *testing.T) {
	c, err := New(DefaultChunkSize, DefaultOverlap, DefaultMinChunkChars)
	require.NoError(t, err)

	_, err = c.Build(domain.NewBook("T", "A", "t.txt"), []domain.Page{{Number: 1, Text: "bad \xff bytes"}})
	assert.Error(t, err)
}

func TestBuild_NoPages(t *testing.T) {
	c, err := New(DefaultChunkSize, DefaultOverlap, DefaultMinChunkChars)
	require.NoError(t, err)

	chunks, err := c.Build(domain.NewBook("T", "A", "t.txt"), nil)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}
