package qdrant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docgpt/internal/common"
	"github.com/ternarybob/docgpt/internal/interfaces"
	"github.com/ternarybob/docgpt/internal/models"
)

const upsertBatchSize = 256

var _ interfaces.VectorIndex = (*PointStorage)(nil)

// PointStorage is a VectorIndex stored in a Qdrant collection.
// A keyword payload index on document_id backs every filtered request.
type PointStorage struct {
	client     *Client
	collection string
	logger     arbor.ILogger

	mu        sync.RWMutex
	dimension int
}

func NewPointStorage(client *Client, collection string, logger arbor.ILogger) *PointStorage {
	return &PointStorage{
		client:     client,
		collection: collection,
		logger:     logger,
	}
}

type vectorParams struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

type collectionInfo struct {
	Config struct {
		Params struct {
			Vectors vectorParams `json:"vectors"`
		} `json:"params"`
	} `json:"config"`
}

type fieldMatch struct {
	Key   string `json:"key"`
	Match struct {
		Value string `json:"value"`
	} `json:"match"`
}

type filterBody struct {
	Must []fieldMatch `json:"must"`
}

func documentFilter(filter models.PointFilter) filterBody {
	m := fieldMatch{Key: "document_id"}
	m.Match.Value = filter.DocumentID
	return filterBody{Must: []fieldMatch{m}}
}

func (s *PointStorage) path(suffix string) string {
	return "/collections/" + s.collection + suffix
}

func upstream(err error) error {
	return &common.UpstreamError{Service: "qdrant", Err: err}
}

// EnsureCollection creates the collection and its payload index, or drops and
// recreates it when the vector size differs. DESTRUCTIVE on mismatch.
func (s *PointStorage) EnsureCollection(ctx context.Context, dimension int, metric models.DistanceMetric) (bool, error) {
	if dimension <= 0 {
		return false, fmt.Errorf("collection dimension must be positive, got %d", dimension)
	}
	if metric != models.DistanceCosine {
		return false, fmt.Errorf("unsupported distance metric: %s", metric)
	}

	var info collectionInfo
	err := s.client.do(ctx, http.MethodGet, s.path(""), nil, &info)
	var apiErr *APIError
	exists := true
	switch {
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound:
		exists = false
	case err != nil:
		return false, upstream(err)
	}

	if exists && info.Config.Params.Vectors.Size == dimension {
		s.setDimension(dimension)
		return false, nil
	}

	reset := false
	if exists {
		s.logger.Warn().
			Str("collection", s.collection).
			Int("existing_dimension", info.Config.Params.Vectors.Size).
			Int("required_dimension", dimension).
			Msg("Vector collection dimension mismatch - dropping collection, every document must be re-indexed")
		if err := s.client.do(ctx, http.MethodDelete, s.path(""), nil, nil); err != nil {
			return false, upstream(err)
		}
		reset = true
	}

	create := map[string]interface{}{
		"vectors": vectorParams{Size: dimension, Distance: "Cosine"},
	}
	if err := s.client.do(ctx, http.MethodPut, s.path(""), create, nil); err != nil {
		return false, upstream(err)
	}

	index := map[string]interface{}{
		"field_name":   "document_id",
		"field_schema": "keyword",
	}
	if err := s.client.do(ctx, http.MethodPut, s.path("/index?wait=true"), index, nil); err != nil {
		return false, upstream(err)
	}

	s.setDimension(dimension)
	s.logger.Info().Str("collection", s.collection).Int("dimension", dimension).Msg("Vector collection ready")
	return reset, nil
}

type qdrantPoint struct {
	ID      uint64              `json:"id"`
	Vector  []float32           `json:"vector"`
	Payload models.ChunkPayload `json:"payload"`
}

func (s *PointStorage) Upsert(ctx context.Context, points []models.Point) error {
	dim := s.Dimension()
	if dim == 0 {
		return fmt.Errorf("collection %s is not initialized", s.collection)
	}

	batch := make([]qdrantPoint, 0, upsertBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		body := map[string]interface{}{"points": batch}
		if err := s.client.do(ctx, http.MethodPut, s.path("/points?wait=true"), body, nil); err != nil {
			return upstream(err)
		}
		batch = batch[:0]
		return nil
	}

	for _, p := range points {
		if len(p.Vector) != dim {
			return &common.DimensionMismatchError{Expected: dim, Actual: len(p.Vector)}
		}
		if p.Payload.DocumentID == "" {
			return fmt.Errorf("point %d has no document_id", p.ID)
		}
		batch = append(batch, qdrantPoint{ID: p.ID, Vector: p.Vector, Payload: p.Payload})
		if len(batch) == upsertBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
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

	body := map[string]interface{}{
		"vector":       vector,
		"filter":       documentFilter(filter),
		"limit":        limit,
		"with_payload": true,
	}
	var result []models.ScoredPoint
	if err := s.client.do(ctx, http.MethodPost, s.path("/points/search"), body, &result); err != nil {
		return nil, upstream(err)
	}
	if result == nil {
		result = []models.ScoredPoint{}
	}
	return result, nil
}

func (s *PointStorage) Delete(ctx context.Context, filter models.PointFilter) error {
	if err := filter.Validate(); err != nil {
		return err
	}
	body := map[string]interface{}{"filter": documentFilter(filter)}
	if err := s.client.do(ctx, http.MethodPost, s.path("/points/delete?wait=true"), body, nil); err != nil {
		return upstream(err)
	}
	s.logger.Debug().Str("document_id", filter.DocumentID).Msg("Points deleted")
	return nil
}

func (s *PointStorage) Count(ctx context.Context, filter models.PointFilter) (int, error) {
	if err := filter.Validate(); err != nil {
		return 0, err
	}
	body := map[string]interface{}{
		"filter": documentFilter(filter),
		"exact":  true,
	}
	var result struct {
		Count int `json:"count"`
	}
	if err := s.client.do(ctx, http.MethodPost, s.path("/points/count"), body, &result); err != nil {
		return 0, upstream(err)
	}
	return result.Count, nil
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

// Close releases idle HTTP connections
func (s *PointStorage) Close() error {
	s.client.httpClient.CloseIdleConnections()
	return nil
}

