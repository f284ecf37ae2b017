package interfaces

import (
	"context"

	"github.com/ternarybob/docgpt/internal/models"
)

// PDFExtractor pulls per-page text out of PDF bytes
type PDFExtractor interface {
	// PageCount validates the PDF and returns its page count
	PageCount(ctx context.Context, data []byte) (int, error)

	// ExtractPages returns the text of every page, 1-based, in order.
	// Pages without text are returned with empty Text.
	ExtractPages(ctx context.Context, data []byte) ([]models.Page, error)
}

// TranscriptRenderer renders a chat session as a PDF
type TranscriptRenderer interface {
	RenderTranscript(doc *models.Document, session *models.ChatSession, messages []*models.ChatMessage) ([]byte, error)
}
