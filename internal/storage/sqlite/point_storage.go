package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docgpt/internal/common"
	"github.com/ternarybob/docgpt/internal/interfaces"
	"github.com/ternarybob/docgpt/internal/models"
)

var _ interfaces.VectorIndex = (*PointStorage)(nil)

// PointStorage is a VectorIndex backed by a SQLite points table.
// Vectors are stored as little-endian float32 blobs and scored in process;
// the (collection, document_id) index keeps each scan to a single document.
type PointStorage struct {
	db         *SQLiteDB
	collection string
	logger     arbor.ILogger

	mu        sync.RWMutex
	dimension int
}

// NewPointStorage takes ownership of db; Close closes it
func NewPointStorage(db *SQLiteDB, collection string, logger arbor.ILogger) *PointStorage {
	return &PointStorage{
		db:         db,
		collection: collection,
		logger:     logger,
	}
}

// EnsureCollection registers the collection, or drops its points when the
// stored dimension differs from the requested one. DESTRUCTIVE on mismatch.
func (s *PointStorage) EnsureCollection(ctx context.Context, dimension int, metric models.DistanceMetric) (bool, error) {
	if dimension <= 0 {
		return false, fmt.Errorf("collection dimension must be positive, got %d", dimension)
	}
	if metric != models.DistanceCosine {
		return false, fmt.Errorf("unsupported distance metric: %s", metric)
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var existing int
	err = tx.QueryRowContext(ctx,
		"SELECT dimension FROM vector_collections WHERE name = ?", s.collection).Scan(&existing)
	switch {
	case err == sql.ErrNoRows:
		existing = 0
	case err != nil:
		return false, fmt.Errorf("failed to read collection %s: %w", s.collection, err)
	}

	if existing == dimension {
		s.setDimension(dimension)
		return false, nil
	}

	reset := false
	if existing != 0 {
		s.logger.Warn().
			Str("collection", s.collection).
			Int("existing_dimension", existing).
			Int("required_dimension", dimension).
			Msg("Vector collection dimension mismatch - dropping all points, every document must be re-indexed")
		if _, err := tx.ExecContext(ctx, "DELETE FROM points WHERE collection = ?", s.collection); err != nil {
			return false, fmt.Errorf("failed to drop collection %s: %w", s.collection, err)
		}
		reset = true
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO vector_collections (name, dimension, metric) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET dimension = excluded.dimension, metric = excluded.metric`,
		s.collection, dimension, string(metric))
	if err != nil {
		return false, fmt.Errorf("failed to create collection %s: %w", s.collection, err)
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}

	s.setDimension(dimension)
	s.logger.Info().Str("collection", s.collection).Int("dimension", dimension).Msg("Vector collection ready")
	return reset, nil
}

func (s *PointStorage) Upsert(ctx context.Context, points []models.Point) error {
	dim := s.Dimension()
	if dim == 0 {
		return fmt.Errorf("collection %s is not initialized", s.collection)
	}
	if len(points) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO points (collection, id, chunk_id, document_id, page_number, chunk_index, text, vector)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			chunk_id = excluded.chunk_id,
			document_id = excluded.document_id,
			page_number = excluded.page_number,
			chunk_index = excluded.chunk_index,
			text = excluded.text,
			vector = excluded.vector`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if len(p.Vector) != dim {
			return &common.DimensionMismatchError{Expected: dim, Actual: len(p.Vector)}
		}
		if p.Payload.DocumentID == "" {
			return fmt.Errorf("point %d has no document_id", p.ID)
		}
		_, err := stmt.ExecContext(ctx,
			s.collection, int64(p.ID), p.Payload.ChunkID, p.Payload.DocumentID,
			p.Payload.PageNumber, p.Payload.ChunkIndex, p.Payload.Text, common.EncodeVector(p.Vector))
		if err != nil {
			return fmt.Errorf("failed to write point %d: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

func (s *PointStorage) Search(ctx context.Context, vector []float32, filter models.PointFilter, limit int) ([]models.ScoredPoint, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if dim := s.Dimension(); dim != 0 && len(vector) != dim {
		return nil, &common.DimensionMismatchError{Expected: dim, Actual: len(vector)}
	}
	if limit <= 0 {
		return []models.ScoredPoint{}, nil
	}

	rows, err := s.db.DB().QueryContext(ctx, `
		SELECT id, chunk_id, document_id, page_number, chunk_index, text, vector
		FROM points WHERE collection = ? AND document_id = ?`,
		s.collection, filter.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("failed to search collection %s: %w", s.collection, err)
	}
	defer rows.Close()

	hits := []models.ScoredPoint{}
	for rows.Next() {
		var (
			id   int64
			blob []byte
			p    models.ChunkPayload
		)
		if err := rows.Scan(&id, &p.ChunkID, &p.DocumentID, &p.PageNumber, &p.ChunkIndex, &p.Text, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan point: %w", err)
		}
		vec, err := common.DecodeVector(blob)
		if err != nil {
			return nil, err
		}
		hits = append(hits, models.ScoredPoint{
			ID:      uint64(id),
			Score:   common.CosineSimilarity(vector, vec),
			Payload: p,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (s *PointStorage) Delete(ctx context.Context, filter models.PointFilter) error {
	if err := filter.Validate(); err != nil {
		return err
	}
	result, err := s.db.DB().ExecContext(ctx,
		"DELETE FROM points WHERE collection = ? AND document_id = ?", s.collection, filter.DocumentID)
	if err != nil {
		return fmt.Errorf("failed to delete points of document %s: %w", filter.DocumentID, err)
	}
	n, _ := result.RowsAffected()
	s.logger.Debug().Str("document_id", filter.DocumentID).Int64("points", n).Msg("Points deleted")
	return nil
}

func (s *PointStorage) Count(ctx context.Context, filter models.PointFilter) (int, error) {
	if err := filter.Validate(); err != nil {
		return 0, err
	}
	var count int
	err := s.db.DB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM points WHERE collection = ? AND document_id = ?",
		s.collection, filter.DocumentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return count, nil
}

func (s *PointStorage) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

func (s *PointStorage) setDimension(dim int) {
	s.mu.Lock()
	s.dimension = dim
	s.mu.Unlock()
}

func (s *PointStorage) Close() error {
	return s.db.Close()
}
