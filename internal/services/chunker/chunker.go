// Package chunker splits page text into overlapping windows for embedding.
package chunker

import (
	"strings"

	"github.com/ternarybob/docgpt/internal/models"
)

// Window is one slice of text with its rune offsets
type Window struct {
	Text  string
	Start int
	End   int
}

// Windows slides a window of size runes across text. Each window after the
// first starts overlap runes before the previous end. When overlap >= size the
// overlap is ignored so every step makes progress. Whitespace-only windows are
// dropped and the remaining windows are trimmed. The last window is the one
// that reaches the end of the text.
func Windows(text string, size, overlap int) []Window {
	if size <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	var windows []Window
	for start := 0; start < len(runes); {
		end := min(start+size, len(runes))
		if trimmed := strings.TrimSpace(string(runes[start:end])); trimmed != "" {
			windows = append(windows, Window{Text: trimmed, Start: start, End: end})
		}
		if end == len(runes) {
			break
		}
		start = end - overlap
	}
	return windows
}

// Chunk returns the text of every window of text
func Chunk(text string, size, overlap int) []string {
	windows := Windows(text, size, overlap)
	chunks := make([]string, 0, len(windows))
	for _, w := range windows {
		chunks = append(chunks, w.Text)
	}
	return chunks
}

// ChunkPages chunks each page independently. Chunk indexes restart at 0 on
// every page and count only the windows that were kept.
func ChunkPages(documentID string, pages []models.Page, size, overlap int) []models.Chunk {
	var chunks []models.Chunk
	for _, page := range pages {
		for i, w := range Windows(page.Text, size, overlap) {
			chunks = append(chunks, models.Chunk{
				DocumentID: documentID,
				PageNumber: page.Number,
				Index:      i,
				Text:       w.Text,
				Start:      w.Start,
				End:        w.End,
			})
		}
	}
	return chunks
}
