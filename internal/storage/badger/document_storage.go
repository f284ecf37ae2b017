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

// DocumentStorage implements the DocumentStorage interface for Badger
type DocumentStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewDocumentStorage creates a new DocumentStorage instance
func NewDocumentStorage(db *BadgerDB, logger arbor.ILogger) interfaces.DocumentStorage {
	return &DocumentStorage{
		db:     db,
		logger: logger,
	}
}

func (s *DocumentStorage) SaveDocument(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	if err := s.db.Store().Upsert(doc.ID, doc); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

func (s *DocumentStorage) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	if err := s.db.Store().Get(id, &doc); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, common.NewNotFoundError("document", id)
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

func (s *DocumentStorage) ListDocuments(ctx context.Context, userID string, limit, offset int) ([]*models.Document, error) {
	query := badgerhold.Where("UserID").Eq(userID).SortBy("CreatedAt").Reverse()
	if offset > 0 {
		query = query.Skip(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var docs []models.Document
	if err := s.db.Store().Find(&docs, query); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return toDocumentPointers(docs), nil
}

func (s *DocumentStorage) CountDocuments(ctx context.Context, userID string) (int, error) {
	count, err := s.db.Store().Count(&models.Document{}, badgerhold.Where("UserID").Eq(userID).Index("UserID"))
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return int(count), nil
}

func (s *DocumentStorage) ListAllDocuments(ctx context.Context) ([]*models.Document, error) {
	var docs []models.Document
	if err := s.db.Store().Find(&docs, badgerhold.Where("ID").Ne("").SortBy("CreatedAt")); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return toDocumentPointers(docs), nil
}

// DeleteDocument removes the document, its sessions and their messages in one transaction
func (s *DocumentStorage) DeleteDocument(ctx context.Context, id string) error {
	var sessionCount, messageCount int
	err := s.db.Update(func(txn *badger.Txn) error {
		var doc models.Document
		if err := s.db.Store().TxGet(txn, id, &doc); err != nil {
			if err == badgerhold.ErrNotFound {
				return common.NewNotFoundError("document", id)
			}
			return err
		}

		var sessions []models.ChatSession
		if err := s.db.Store().TxFind(txn, &sessions, badgerhold.Where("DocumentID").Eq(id).Index("DocumentID")); err != nil {
			return fmt.Errorf("failed to find sessions: %w", err)
		}

		sessionCount, messageCount = len(sessions), 0
		for _, session := range sessions {
			n, err := deleteSessionMessages(s.db.Store(), txn, session.ID)
			if err != nil {
				return err
			}
			messageCount += n
			if err := s.db.Store().TxDelete(txn, session.ID, &models.ChatSession{}); err != nil {
				return fmt.Errorf("failed to delete session %s: %w", session.ID, err)
			}
		}

		return s.db.Store().TxDelete(txn, id, &models.Document{})
	})
	if err != nil {
		if common.IsNotFound(err) {
			return err
		}
		return fmt.Errorf("failed to delete document: %w", err)
	}

	s.logger.Debug().
		Str("document_id", id).
		Int("sessions", sessionCount).
		Int("messages", messageCount).
		Msg("Document records deleted")
	return nil
}

func toDocumentPointers(docs []models.Document) []*models.Document {
	result := make([]*models.Document, len(docs))
	for i := range docs {
		result[i] = &docs[i]
	}
	return result
}
