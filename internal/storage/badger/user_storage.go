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

// UserStorage implements the UserStorage interface for Badger
type UserStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

func NewUserStorage(db *BadgerDB, logger arbor.ILogger) interfaces.UserStorage {
	return &UserStorage{db: db, logger: logger}
}

func (s *UserStorage) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.Store().Get(id, &user); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, common.NewNotFoundError("user", id)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (s *UserStorage) EnsureUser(ctx context.Context, user *models.User) (*models.User, error) {
	if user.ID == "" {
		return nil, fmt.Errorf("user ID is required")
	}

	var stored models.User
	err := s.db.Update(func(txn *badger.Txn) error {
		err := s.db.Store().TxGet(txn, user.ID, &stored)
		if err == nil {
			if user.Email == "" || user.Email == stored.Email {
				return nil
			}
			stored.Email = user.Email
			stored.UpdatedAt = time.Now()
			return s.db.Store().TxUpsert(txn, stored.ID, &stored)
		}
		if err != badgerhold.ErrNotFound {
			return err
		}

		now := time.Now()
		stored = models.User{ID: user.ID, Email: user.Email, CreatedAt: now, UpdatedAt: now}
		if err := s.db.Store().TxInsert(txn, stored.ID, &stored); err != nil {
			return err
		}
		s.logger.Info().Str("user_id", stored.ID).Msg("User created")
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure user: %w", err)
	}
	return &stored, nil
}
