package interfaces

import (
	"context"
	"io"

	"github.com/ternarybob/docgpt/internal/models"
)

// UploadRequest carries one uploaded file
type UploadRequest struct {
	UserID   string
	FileName string
	Size     int64
	Content  io.Reader
}

// DocumentService - document lifecycle and indexing
type DocumentService interface {
	Upload(ctx context.Context, req UploadRequest) (*models.Document, error)
	List(ctx context.Context, userID string, limit, offset int) ([]*models.DocumentSummary, int, error)
	Get(ctx context.Context, userID, documentID string) (*models.Document, error)
	Delete(ctx context.Context, userID, documentID string) error
	Reindex(ctx context.Context, userID, documentID string) (*models.IndexResult, error)
	ReindexAll(ctx context.Context) ([]*models.IndexResult, error)
	Search(ctx context.Context, userID, documentID, query string, topK int) ([]models.Passage, error)
}

// SessionService - chat session lifecycle
type SessionService interface {
	Create(ctx context.Context, userID, documentID, title string) (*models.ChatSession, error)
	List(ctx context.Context, userID, documentID string, limit, offset int) ([]*models.ChatSession, error)
	Get(ctx context.Context, userID, sessionID string) (*models.ChatSession, *models.Document, error)
	Rename(ctx context.Context, userID, sessionID, title string) (*models.ChatSession, error)
	Delete(ctx context.Context, userID, sessionID string) error
	Export(ctx context.Context, userID, sessionID string) ([]byte, error)
}

// ChatService - chat turns over a session
type ChatService interface {
	// Stream runs one turn and delivers its events to emit in order.
	// The last event is either done or error.
	Stream(ctx context.Context, userID, sessionID, content string, emit func(models.ChatEvent) error) error
	Answer(ctx context.Context, userID, sessionID, content string) (*models.ChatAnswer, error)
	ListMessages(ctx context.Context, userID, sessionID string, limit, offset int) ([]*models.ChatMessage, error)
	DeleteMessage(ctx context.Context, userID, messageID string) error
	ClearHistory(ctx context.Context, userID, sessionID string) (int, error)
}
