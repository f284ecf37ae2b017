package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/docgpt/internal/common"
	"github.com/ternarybob/docgpt/internal/interfaces"
	"github.com/ternarybob/docgpt/internal/models"
)

// SessionStorage implements the SessionStorage interface for Badger
type SessionStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

func NewSessionStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SessionStorage {
	return &SessionStorage{db: db, logger: logger}
}

func (s *SessionStorage) SaveSession(ctx context.Context, session *models.ChatSession) error {
	if session.ID == "" {
		return fmt.Errorf("session ID is required")
	}

	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	if err := s.db.Store().Upsert(session.ID, session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *SessionStorage) GetSession(ctx context.Context, id string) (*models.ChatSession, error) {
	var session models.ChatSession
	if err := s.db.Store().Get(id, &session); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, common.NewNotFoundError("session", id)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

func (s *SessionStorage) ListSessions(ctx context.Context, documentID string, limit, offset int) ([]*models.ChatSession, error) {
	query := badgerhold.Where("DocumentID").Eq(documentID).SortBy("UpdatedAt").Reverse()
	if offset > 0 {
		query = query.Skip(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var sessions []models.ChatSession
	if err := s.db.Store().Find(&sessions, query); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	result := make([]*models.ChatSession, len(sessions))
	for i := range sessions {
		result[i] = &sessions[i]
	}
	return result, nil
}

func (s *SessionStorage) CountSessions(ctx context.Context, documentID string) (int, error) {
	count, err := s.db.Store().Count(&models.ChatSession{}, badgerhold.Where("DocumentID").Eq(documentID).Index("DocumentID"))
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return int(count), nil
}

// DeleteSession removes the session and its messages in one transaction
func (s *SessionStorage) DeleteSession(ctx context.Context, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		var session models.ChatSession
		if err := s.db.Store().TxGet(txn, id, &session); err != nil {
			if err == badgerhold.ErrNotFound {
				return common.NewNotFoundError("session", id)
			}
			return err
		}
		if _, err := deleteSessionMessages(s.db.Store(), txn, id); err != nil {
			return err
		}
		return s.db.Store().TxDelete(txn, id, &models.ChatSession{})
	})
	if err != nil && !common.IsNotFound(err) {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return err
}

// DeriveTitle sets the title from the first user message exactly once.
// The flag and the title change together so concurrent sends cannot both win.
func (s *SessionStorage) DeriveTitle(ctx context.Context, id string, content string) (bool, error) {
	derived := false
	err := s.db.Update(func(txn *badger.Txn) error {
		derived = false

		var session models.ChatSession
		if err := s.db.Store().TxGet(txn, id, &session); err != nil {
			if err == badgerhold.ErrNotFound {
				return common.NewNotFoundError("session", id)
			}
			return err
		}
		if session.TitleDerived {
			return nil
		}

		session.Title = models.DeriveSessionTitle(content)
		session.TitleDerived = true
		session.UpdatedAt = time.Now()
		if err := s.db.Store().TxUpsert(txn, id, &session); err != nil {
			return err
		}
		derived = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to derive session title: %w", err)
	}
	return derived, nil
}

func (s *SessionStorage) TouchSession(ctx context.Context, id string, at time.Time) error {
	return s.db.Update(func(txn *badger.Txn) error {
		var session models.ChatSession
		if err := s.db.Store().TxGet(txn, id, &session); err != nil {
			if err == badgerhold.ErrNotFound {
				return common.NewNotFoundError("session", id)
			}
			return err
		}
		if !at.After(session.UpdatedAt) {
			return nil
		}
		session.UpdatedAt = at
		return s.db.Store().TxUpsert(txn, id, &session)
	})
}
