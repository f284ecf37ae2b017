package badger

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docgpt/internal/common"
	"github.com/ternarybob/docgpt/internal/interfaces"
	"github.com/ternarybob/docgpt/internal/models"
)

// PointStorage is a VectorIndex kept in the Badger database.
//
// Key layout:
//
//	vec:{collection}:meta                        -> collectionMeta JSON
//	vec:{collection}:doc:{hex(document_id)}:{id} -> storedPoint JSON
//
// Points are grouped under their document id, so the key prefix acts as the
// document_id payload index and filtered scans only touch one document. The id
// is hex encoded so no document id can be a key prefix of another.
type PointStorage struct {
	db         *badger.DB
	collection string
	logger     arbor.ILogger

	mu        sync.RWMutex
	dimension int
}

type collectionMeta struct {
	Dimension int                   `json:"dimension"`
	Metric    models.DistanceMetric `json:"metric"`
}

type storedPoint struct {
	ID      uint64              `json:"id"`
	Payload models.ChunkPayload `json:"payload"`
	Vector  []byte              `json:"vector"` // common.EncodeVector
}

// NewPointStorage creates a vector index over an open Badger connection.
// The connection is owned by the storage manager and is not closed here.
func NewPointStorage(db *BadgerDB, collection string, logger arbor.ILogger) *PointStorage {
	return &PointStorage{
		db:         db.Store().Badger(),
		collection: collection,
		logger:     logger,
	}
}

func (s *PointStorage) metaKey() []byte {
	return []byte(fmt.Sprintf("vec:%s:meta", s.collection))
}

func (s *PointStorage) collectionPrefix() []byte {
	return []byte(fmt.Sprintf("vec:%s:", s.collection))
}

func (s *PointStorage) documentPrefix(documentID string) []byte {
	return []byte(fmt.Sprintf("vec:%s:doc:%s:", s.collection, hex.EncodeToString([]byte(documentID))))
}

func (s *PointStorage) pointKey(documentID string, id uint64) []byte {
	return append(s.documentPrefix(documentID), fmt.Sprintf("%016x", id)...)
}

// EnsureCollection creates the collection metadata, or drops every point and
// recreates it when the stored dimension differs. DESTRUCTIVE on mismatch.
func (s *PointStorage) EnsureCollection(ctx context.Context, dimension int, metric models.DistanceMetric) (bool, error) {
	if dimension <= 0 {
		return false, fmt.Errorf("collection dimension must be positive, got %d", dimension)
	}
	if metric != models.DistanceCosine {
		return false, fmt.Errorf("unsupported distance metric: %s", metric)
	}

	var existing *collectionMeta
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.metaKey())
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			existing = &collectionMeta{}
			return json.Unmarshal(val, existing)
		})
	})
	if err != nil {
		return false, fmt.Errorf("failed to read collection %s: %w", s.collection, err)
	}

	if existing != nil && existing.Dimension == dimension {
		s.setDimension(dimension)
		return false, nil
	}

	reset := false
	if existing != nil {
		s.logger.Warn().
			Str("collection", s.collection).
			Int("existing_dimension", existing.Dimension).
			Int("required_dimension", dimension).
			Msg("Vector collection dimension mismatch - dropping all points, every document must be re-indexed")
		if _, err := s.deletePrefix(s.collectionPrefix()); err != nil {
			return false, fmt.Errorf("failed to drop collection %s: %w", s.collection, err)
		}
		reset = true
	}

	data, err := json.Marshal(collectionMeta{Dimension: dimension, Metric: metric})
	if err != nil {
		return false, err
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.metaKey(), data)
	}); err != nil {
		return false, fmt.Errorf("failed to create collection %s: %w", s.collection, err)
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

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, p := range points {
		if len(p.Vector) != dim {
			return &common.DimensionMismatchError{Expected: dim, Actual: len(p.Vector)}
		}
		if p.Payload.DocumentID == "" {
			return fmt.Errorf("point %d has no document_id", p.ID)
		}
		data, err := json.Marshal(storedPoint{ID: p.ID, Payload: p.Payload, Vector: common.EncodeVector(p.Vector)})
		if err != nil {
			return fmt.Errorf("failed to encode point %d: %w", p.ID, err)
		}
		if err := wb.Set(s.pointKey(p.Payload.DocumentID, p.ID), data); err != nil {
			return fmt.Errorf("failed to write point %d: %w", p.ID, err)
		}
	}

	if err := wb.Flush(); err != nil {
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

	var hits []models.ScoredPoint
	prefix := s.documentPrefix(filter.DocumentID)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var sp storedPoint
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &sp)
			}); err != nil {
				return err
			}
			vec, err := common.DecodeVector(sp.Vector)
			if err != nil {
				return err
			}
			hits = append(hits, models.ScoredPoint{
				ID:      sp.ID,
				Score:   common.CosineSimilarity(vector, vec),
				Payload: sp.Payload,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search collection %s: %w", s.collection, err)
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
	n, err := s.deletePrefix(s.documentPrefix(filter.DocumentID))
	if err != nil {
		return fmt.Errorf("failed to delete points of document %s: %w", filter.DocumentID, err)
	}
	s.logger.Debug().Str("document_id", filter.DocumentID).Int("points", n).Msg("Points deleted")
	return nil
}

func (s *PointStorage) Count(ctx context.Context, filter models.PointFilter) (int, error) {
	if err := filter.Validate(); err != nil {
		return 0, err
	}
	count := 0
	prefix := s.documentPrefix(filter.DocumentID)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
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

// Close is a no-op; the Badger connection belongs to the storage manager
func (s *PointStorage) Close() error {
	return nil
}

// deletePrefix removes every key under prefix and returns how many were removed
func (s *PointStorage) deletePrefix(prefix []byte) (int, error) {
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, err
	}
	return len(keys), nil
}

var _ interfaces.VectorIndex = (*PointStorage)(nil)
