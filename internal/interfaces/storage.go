package interfaces

import (
	"context"
	"io"
	"time"

	"github.com/ternarybob/docgpt/internal/models"
)

// UserStorage - persistence for authenticated users
type UserStorage interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	// EnsureUser creates the user when missing and returns the stored record
	EnsureUser(ctx context.Context, user *models.User) (*models.User, error)
}

// DocumentStorage - persistence for uploaded documents
type DocumentStorage interface {
	SaveDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	// ListDocuments returns the user's documents, newest first
	ListDocuments(ctx context.Context, userID string, limit, offset int) ([]*models.Document, error)
	CountDocuments(ctx context.Context, userID string) (int, error)
	ListAllDocuments(ctx context.Context) ([]*models.Document, error)
	// DeleteDocument removes the document with its sessions and messages
	DeleteDocument(ctx context.Context, id string) error
}

// SessionStorage - persistence for chat sessions
type SessionStorage interface {
	SaveSession(ctx context.Context, session *models.ChatSession) error
	GetSession(ctx context.Context, id string) (*models.ChatSession, error)
	// ListSessions returns the document's sessions, most recently updated first
	ListSessions(ctx context.Context, documentID string, limit, offset int) ([]*models.ChatSession, error)
	CountSessions(ctx context.Context, documentID string) (int, error)
	// DeleteSession removes the session and its messages
	DeleteSession(ctx context.Context, id string) error
	// DeriveTitle sets the title from content once per session.
	// Returns true when this call set the title.
	DeriveTitle(ctx context.Context, id string, content string) (bool, error)
	TouchSession(ctx context.Context, id string, at time.Time) error
}

// MessageStorage - persistence for chat messages
type MessageStorage interface {
	// AppendMessage stores msg, assigning ID and a CreatedAt strictly after the
	// session's previous message
	AppendMessage(ctx context.Context, msg *models.ChatMessage) error
	GetMessage(ctx context.Context, id string) (*models.ChatMessage, error)
	// ListMessages returns messages oldest first
	ListMessages(ctx context.Context, sessionID string, limit, offset int) ([]*models.ChatMessage, error)
	// RecentMessages returns the last n messages, oldest first
	RecentMessages(ctx context.Context, sessionID string, n int) ([]*models.ChatMessage, error)
	CountMessages(ctx context.Context, sessionID string) (int, error)
	DeleteMessage(ctx context.Context, id string) error
	// ClearMessages deletes every message of the session and returns the count
	ClearMessages(ctx context.Context, sessionID string) (int, error)
}

// OrphanStorage - pending vector cleanup after a failed delete
type OrphanStorage interface {
	SaveOrphan(ctx context.Context, orphan *models.OrphanRecord) error
	ListOrphans(ctx context.Context, limit int) ([]*models.OrphanRecord, error)
	DeleteOrphan(ctx context.Context, id string) error
}

// BlobStore - storage for uploaded files
type BlobStore interface {
	// Put stores the content under key and returns its public URL
	Put(ctx context.Context, key string, r io.Reader) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// StorageManager - composite interface for all storage operations
type StorageManager interface {
	UserStorage() UserStorage
	DocumentStorage() DocumentStorage
	SessionStorage() SessionStorage
	MessageStorage() MessageStorage
	OrphanStorage() OrphanStorage
	DB() interface{}
	Close() error
}
