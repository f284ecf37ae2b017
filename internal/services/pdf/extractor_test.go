package pdf

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docgpt/internal/common"
)

// buildPDF renders one page per entry; an empty entry produces a blank page
func buildPDF(t *testing.T, pages ...string) []byte {
	t.Helper()
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetFont("Helvetica", "", 12)
	for _, text := range pages {
		doc.AddPage()
		if text != "" {
			doc.Cell(0, 10, text)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}

func TestExtractor_PageCount(t *testing.T) {
	e := NewExtractor(arbor.NewLogger())
	n, err := e.PageCount(context.Background(), buildPDF(t, "one", "two", "three"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestExtractor_ExtractPages(t *testing.T) {
	e := NewExtractor(arbor.NewLogger())
	data := buildPDF(t, "Revenue grew 12 percent", "", "Outlook remains stable")

	pages, err := e.ExtractPages(context.Background(), data)
	require.NoError(t, err)
	require.Len(t, pages, 3)

	assert.Equal(t, 1, pages[0].Number)
	assert.Contains(t, pages[0].Text, "Revenue grew 12 percent")
	assert.Equal(t, 2, pages[1].Number)
	assert.Empty(t, strings.TrimSpace(pages[1].Text))
	assert.Equal(t, 3, pages[2].Number)
	assert.Contains(t, pages[2].Text, "Outlook remains stable")
}

func TestExtractor_InvalidPDF(t *testing.T) {
	e := NewExtractor(arbor.NewLogger())

	_, err := e.PageCount(context.Background(), []byte("this is not a pdf"))
	require.Error(t, err)
	var verr *common.ValidationError
	assert.True(t, errors.As(err, &verr))

	_, err = e.ExtractPages(context.Background(), []byte("%PDF-1.4 truncated"))
	require.Error(t, err)
	assert.True(t, errors.As(err, &verr))
}

func TestExtractor_CancelledContext(t *testing.T) {
	e := NewExtractor(arbor.NewLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.PageCount(ctx, buildPDF(t, "x"))
	assert.ErrorIs(t, err, context.Canceled)
}
