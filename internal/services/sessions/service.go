package sessions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docgpt/internal/common"
	"github.com/ternarybob/docgpt/internal/interfaces"
	"github.com/ternarybob/docgpt/internal/models"
)

// exportMessageLimit bounds the transcript of one export
const exportMessageLimit = 10000

// Service implements SessionService
type Service struct {
	documents  interfaces.DocumentService
	sessions   interfaces.SessionStorage
	messages   interfaces.MessageStorage
	transcript interfaces.TranscriptRenderer
	logger     arbor.ILogger
}

// NewService creates a new session service. Document ownership is checked
// through the document service.
func NewService(
	documents interfaces.DocumentService,
	storage interfaces.StorageManager,
	transcript interfaces.TranscriptRenderer,
	logger arbor.ILogger,
) interfaces.SessionService {
	return &Service{
		documents:  documents,
		sessions:   storage.SessionStorage(),
		messages:   storage.MessageStorage(),
		transcript: transcript,
		logger:     logger,
	}
}

// Create starts a session on an owned document. An empty title becomes
// "New Chat" and is replaced by the first user message.
func (s *Service) Create(ctx context.Context, userID, documentID, title string) (*models.ChatSession, error) {
	if _, err := s.documents.Get(ctx, userID, documentID); err != nil {
		return nil, err
	}

	title = strings.TrimSpace(title)
	now := time.Now().UTC()
	session := &models.ChatSession{
		ID:           common.NewSessionID(),
		DocumentID:   documentID,
		Title:        title,
		TitleDerived: title != "",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if session.Title == "" {
		session.Title = models.DefaultSessionTitle
	}

	if err := s.sessions.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	s.logger.Info().
		Str("session_id", session.ID).
		Str("document_id", documentID).
		Msg("Chat session created")
	return session, nil
}

func (s *Service) List(ctx context.Context, userID, documentID string, limit, offset int) ([]*models.ChatSession, error) {
	if _, err := s.documents.Get(ctx, userID, documentID); err != nil {
		return nil, err
	}
	sessions, err := s.sessions.ListSessions(ctx, documentID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// Get returns the session and its document after checking the caller owns the document
func (s *Service) Get(ctx context.Context, userID, sessionID string) (*models.ChatSession, *models.Document, error) {
	if userID == "" {
		return nil, nil, &common.PermissionError{Message: "authentication required"}
	}
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	doc, err := s.documents.Get(ctx, userID, session.DocumentID)
	if err != nil {
		if common.IsPermission(err) {
			return nil, nil, &common.PermissionError{Message: "session belongs to another user"}
		}
		return nil, nil, err
	}
	return session, doc, nil
}

// Rename sets an explicit title. The title is no longer derived from messages.
func (s *Service) Rename(ctx context.Context, userID, sessionID, title string) (*models.ChatSession, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, common.NewValidationError("title", "title must not be empty")
	}

	session, _, err := s.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	session.Title = title
	session.TitleDerived = true
	session.UpdatedAt = time.Now().UTC()
	if err := s.sessions.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to rename session: %w", err)
	}
	return session, nil
}

func (s *Service) Delete(ctx context.Context, userID, sessionID string) error {
	if _, _, err := s.Get(ctx, userID, sessionID); err != nil {
		return err
	}
	if err := s.sessions.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	s.logger.Info().Str("session_id", sessionID).Msg("Chat session deleted")
	return nil
}

// Export renders the session transcript as a PDF
func (s *Service) Export(ctx context.Context, userID, sessionID string) ([]byte, error) {
	session, doc, err := s.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	messages, err := s.messages.ListMessages(ctx, sessionID, exportMessageLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	data, err := s.transcript.RenderTranscript(doc, session, messages)
	if err != nil {
		return nil, fmt.Errorf("failed to render transcript: %w", err)
	}
	return data, nil
}
