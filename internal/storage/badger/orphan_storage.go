package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/docgpt/internal/common"
	"github.com/ternarybob/docgpt/internal/interfaces"
	"github.com/ternarybob/docgpt/internal/models"
)

// OrphanStorage implements the OrphanStorage interface for Badger
type OrphanStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

func NewOrphanStorage(db *BadgerDB, logger arbor.ILogger) interfaces.OrphanStorage {
	return &OrphanStorage{db: db, logger: logger}
}

func (s *OrphanStorage) SaveOrphan(ctx context.Context, orphan *models.OrphanRecord) error {
	if orphan.ID == "" {
		orphan.ID = common.NewOrphanID()
	}
	now := time.Now()
	if orphan.CreatedAt.IsZero() {
		orphan.CreatedAt = now
	}
	orphan.UpdatedAt = now

	if err := s.db.Store().Upsert(orphan.ID, orphan); err != nil {
		return fmt.Errorf("failed to save orphan record: %w", err)
	}
	return nil
}

// ListOrphans returns pending records, oldest first
func (s *OrphanStorage) ListOrphans(ctx context.Context, limit int) ([]*models.OrphanRecord, error) {
	query := badgerhold.Where("ID").Ne("").SortBy("CreatedAt")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var orphans []models.OrphanRecord
	if err := s.db.Store().Find(&orphans, query); err != nil {
		return nil, fmt.Errorf("failed to list orphan records: %w", err)
	}

	result := make([]*models.OrphanRecord, len(orphans))
	for i := range orphans {
		result[i] = &orphans[i]
	}
	return result, nil
}

func (s *OrphanStorage) DeleteOrphan(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.OrphanRecord{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete orphan record: %w", err)
	}
	return nil
}
