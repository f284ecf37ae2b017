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

// MessageStorage implements the MessageStorage interface for Badger
type MessageStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

func NewMessageStorage(db *BadgerDB, logger arbor.ILogger) interfaces.MessageStorage {
	return &MessageStorage{db: db, logger: logger}
}

// AppendMessage stores msg after the newest message of its session. Every
// append rewrites the SessionID index entry, so concurrent appends to one
// session conflict and retry and CreatedAt stays strictly increasing.
func (s *MessageStorage) AppendMessage(ctx context.Context, msg *models.ChatMessage) error {
	if msg.SessionID == "" {
		return fmt.Errorf("message session ID is required")
	}
	if msg.ID == "" {
		msg.ID = common.NewMessageID()
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		var last []models.ChatMessage
		query := badgerhold.Where("SessionID").Eq(msg.SessionID).SortBy("CreatedAt").Reverse().Limit(1)
		if err := s.db.Store().TxFind(txn, &last, query); err != nil {
			return err
		}

		createdAt := time.Now()
		if len(last) > 0 && !createdAt.After(last[0].CreatedAt) {
			createdAt = last[0].CreatedAt.Add(time.Microsecond)
		}
		msg.CreatedAt = createdAt

		return s.db.Store().TxInsert(txn, msg.ID, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

func (s *MessageStorage) GetMessage(ctx context.Context, id string) (*models.ChatMessage, error) {
	var msg models.ChatMessage
	if err := s.db.Store().Get(id, &msg); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, common.NewNotFoundError("message", id)
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return &msg, nil
}

func (s *MessageStorage) ListMessages(ctx context.Context, sessionID string, limit, offset int) ([]*models.ChatMessage, error) {
	query := badgerhold.Where("SessionID").Eq(sessionID).SortBy("CreatedAt")
	if offset > 0 {
		query = query.Skip(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var messages []models.ChatMessage
	if err := s.db.Store().Find(&messages, query); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return toMessagePointers(messages), nil
}

func (s *MessageStorage) RecentMessages(ctx context.Context, sessionID string, n int) ([]*models.ChatMessage, error) {
	if n <= 0 {
		return []*models.ChatMessage{}, nil
	}

	var messages []models.ChatMessage
	query := badgerhold.Where("SessionID").Eq(sessionID).SortBy("CreatedAt").Reverse().Limit(n)
	if err := s.db.Store().Find(&messages, query); err != nil {
		return nil, fmt.Errorf("failed to get recent messages: %w", err)
	}

	// Newest first from the query, oldest first to callers
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return toMessagePointers(messages), nil
}

func (s *MessageStorage) CountMessages(ctx context.Context, sessionID string) (int, error) {
	count, err := s.db.Store().Count(&models.ChatMessage{}, badgerhold.Where("SessionID").Eq(sessionID).Index("SessionID"))
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return int(count), nil
}

func (s *MessageStorage) DeleteMessage(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.ChatMessage{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return common.NewNotFoundError("message", id)
		}
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

func (s *MessageStorage) ClearMessages(ctx context.Context, sessionID string) (int, error) {
	var deleted int
	err := s.db.Update(func(txn *badger.Txn) error {
		n, err := deleteSessionMessages(s.db.Store(), txn, sessionID)
		deleted = n
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to clear messages: %w", err)
	}
	return deleted, nil
}

// deleteSessionMessages deletes every message of a session inside txn and returns the count
func deleteSessionMessages(store *badgerhold.Store, txn *badger.Txn, sessionID string) (int, error) {
	query := badgerhold.Where("SessionID").Eq(sessionID).Index("SessionID")
	count, err := store.TxCount(txn, &models.ChatMessage{}, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages of session %s: %w", sessionID, err)
	}
	if count == 0 {
		return 0, nil
	}
	if err := store.TxDeleteMatching(txn, &models.ChatMessage{}, query); err != nil {
		return 0, fmt.Errorf("failed to delete messages of session %s: %w", sessionID, err)
	}
	return int(count), nil
}

func toMessagePointers(messages []models.ChatMessage) []*models.ChatMessage {
	result := make([]*models.ChatMessage, len(messages))
	for i := range messages {
		result[i] = &messages[i]
	}
	return result
}
