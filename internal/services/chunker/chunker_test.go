package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/docgpt/internal/models"
)

// letters builds n runes of non-space text so trimming never alters windows
func letters(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteByte(byte('a' + i%26))
	}
	return b.String()
}

func TestWindows_ThreeThousandCharPage(t *testing.T) {
	windows := Windows(letters(3000), 1500, 300)

	require.Len(t, windows, 3)
	assert.Equal(t, 0, windows[0].Start)
	assert.Equal(t, 1500, windows[0].End)
	assert.Equal(t, 1200, windows[1].Start)
	assert.Equal(t, 2700, windows[1].End)
	assert.Equal(t, 2400, windows[2].Start)
	assert.Equal(t, 3000, windows[2].End)
}

func TestChunk_SizeBound(t *testing.T) {
	tests := []struct {
		name    string
		length  int
		size    int
		overlap int
	}{
		{"exact multiple", 1000, 100, 20},
		{"shorter than window", 50, 100, 20},
		{"single rune windows", 30, 1, 0},
		{"large overlap", 500, 100, 99},
		{"overlap equals size", 300, 100, 100},
		{"overlap exceeds size", 300, 100, 250},
		{"negative overlap", 300, 100, -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := Chunk(letters(tt.length), tt.size, tt.overlap)
			require.NotEmpty(t, chunks)
			for _, c := range chunks {
				assert.LessOrEqual(t, len([]rune(c)), tt.size)
			}
		})
	}
}

func TestChunk_ReconstructsText(t *testing.T) {
	text := letters(2345)
	size, overlap := 400, 75

	chunks := Chunk(text, size, overlap)
	require.NotEmpty(t, chunks)

	var rebuilt strings.Builder
	rebuilt.WriteString(chunks[0])
	for _, c := range chunks[1:] {
		rebuilt.WriteString(string([]rune(c)[overlap:]))
	}
	assert.Equal(t, text, rebuilt.String())
}

func TestChunk_OverlapDisabledBound(t *testing.T) {
	text := letters(1050)
	size := 100

	for _, overlap := range []int{100, 101, 500} {
		chunks := Chunk(text, size, overlap)
		// ceil(1050/100) = 11
		assert.LessOrEqual(t, len(chunks), 11)
		assert.Equal(t, text, strings.Join(chunks, ""))
	}
}

func TestChunk_DropsWhitespaceWindows(t *testing.T) {
	text := "alpha" + strings.Repeat(" ", 20) + "omega"
	chunks := Chunk(text, 5, 0)

	assert.Equal(t, []string{"alpha", "omega"}, chunks)
}

func TestChunk_EmptyAndInvalid(t *testing.T) {
	assert.Empty(t, Chunk("", 100, 10))
	assert.Empty(t, Chunk("   \n\t ", 100, 10))
	assert.Empty(t, Chunk("text", 0, 0))
	assert.Empty(t, Chunk("text", -1, 0))
}

func TestChunk_Unicode(t *testing.T) {
	text := strings.Repeat("日本語", 10) // 30 runes
	chunks := Chunk(text, 10, 0)

	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.Equal(t, 10, len([]rune(c)))
	}
}

func TestChunk_Deterministic(t *testing.T) {
	text := letters(5000)
	assert.Equal(t, Chunk(text, 700, 120), Chunk(text, 700, 120))
}

func TestChunkPages_ResetsIndexPerPage(t *testing.T) {
	pages := []models.Page{
		{Number: 1, Text: letters(3000)},
		{Number: 2, Text: letters(200)},
		{Number: 3, Text: "   "},
		{Number: 4, Text: letters(1600)},
	}

	chunks := ChunkPages("doc_1", pages, 1500, 300)

	var perPage = map[int][]int{}
	for _, c := range chunks {
		assert.Equal(t, "doc_1", c.DocumentID)
		perPage[c.PageNumber] = append(perPage[c.PageNumber], c.Index)
	}

	assert.Equal(t, []int{0, 1, 2}, perPage[1])
	assert.Equal(t, []int{0}, perPage[2])
	assert.NotContains(t, perPage, 3)
	assert.Equal(t, []int{0, 1}, perPage[4])
}

func TestChunkPages_UniqueIdentity(t *testing.T) {
	pages := []models.Page{
		{Number: 1, Text: letters(4000)},
		{Number: 2, Text: letters(4000)},
	}

	seen := map[uint64]bool{}
	for _, c := range ChunkPages("doc_1", pages, 500, 50) {
		id := c.PointID()
		assert.False(t, seen[id], "duplicate point id for %s", c.ID())
		seen[id] = true
	}
}
