package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docgpt/internal/common"
	"github.com/ternarybob/docgpt/internal/models"
	"github.com/ternarybob/docgpt/internal/services/embeddings"
)

// memoryIndex is a brute-force VectorIndex for tests
type memoryIndex struct {
	dim       int
	points    map[uint64]models.Point
	searchErr error
	foreign   *models.ScoredPoint
}

func newMemoryIndex(dim int) *memoryIndex {
	return &memoryIndex{dim: dim, points: map[uint64]models.Point{}}
}

func (m *memoryIndex) EnsureCollection(ctx context.Context, dim int, metric models.DistanceMetric) (bool, error) {
	m.dim = dim
	return false, nil
}

func (m *memoryIndex) Upsert(ctx context.Context, points []models.Point) error {
	for _, p := range points {
		m.points[p.ID] = p
	}
	return nil
}

func (m *memoryIndex) Search(ctx context.Context, vector []float32, filter models.PointFilter, limit int) ([]models.ScoredPoint, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	var hits []models.ScoredPoint
	for _, p := range m.points {
		if p.Payload.DocumentID == filter.DocumentID {
			hits = append(hits, models.ScoredPoint{ID: p.ID, Score: common.CosineSimilarity(vector, p.Vector), Payload: p.Payload})
		}
	}
	if m.foreign != nil {
		hits = append(hits, *m.foreign)
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (m *memoryIndex) Delete(ctx context.Context, filter models.PointFilter) error { return nil }

func (m *memoryIndex) Count(ctx context.Context, filter models.PointFilter) (int, error) {
	return len(m.points), nil
}

func (m *memoryIndex) Dimension() int { return m.dim }
func (m *memoryIndex) Close() error   { return nil }

func index(t *testing.T, embedder *embeddings.HashEmbedder, idx *memoryIndex, documentID string, texts ...string) {
	t.Helper()
	for i, text := range texts {
		vec, err := embedder.Embed(context.Background(), text)
		require.NoError(t, err)
		chunk := models.Chunk{DocumentID: documentID, PageNumber: 1, Index: i, Text: text}
		require.NoError(t, idx.Upsert(context.Background(), []models.Point{{ID: chunk.PointID(), Vector: vec, Payload: chunk.Payload()}}))
	}
}

func TestRetrieve_IsolatedAndOrdered(t *testing.T) {
	embedder := embeddings.NewHashEmbedder(64)
	idx := newMemoryIndex(64)
	index(t, embedder, idx, "doc_a", "solar panels convert sunlight", "the quarterly budget report", "sunlight and solar energy")
	index(t, embedder, idx, "doc_b", "solar panels convert sunlight")

	retriever := NewRetriever(embedder, idx, arbor.NewLogger())
	passages, err := retriever.Retrieve(context.Background(), "doc_a", "solar sunlight", 8)
	require.NoError(t, err)
	require.Len(t, passages, 3)

	for i, p := range passages {
		assert.Equal(t, "doc_a", p.DocumentID)
		if i > 0 {
			assert.LessOrEqual(t, passages[i-1].Distance, p.Distance)
		}
	}
	assert.NotEqual(t, "the quarterly budget report", passages[0].Text)
}

func TestRetrieve_EmptyDocument(t *testing.T) {
	embedder := embeddings.NewHashEmbedder(32)
	retriever := NewRetriever(embedder, newMemoryIndex(32), arbor.NewLogger())

	passages, err := retriever.Retrieve(context.Background(), "doc_empty", "anything", 8)
	require.NoError(t, err)
	assert.NotNil(t, passages)
	assert.Empty(t, passages)
}

func TestRetrieve_DropsForeignPoints(t *testing.T) {
	embedder := embeddings.NewHashEmbedder(32)
	idx := newMemoryIndex(32)
	index(t, embedder, idx, "doc_a", "alpha beta")
	idx.foreign = &models.ScoredPoint{ID: 1, Score: 0.99, Payload: models.ChunkPayload{DocumentID: "doc_b", Text: "secret"}}

	passages, err := NewRetriever(embedder, idx, arbor.NewLogger()).Retrieve(context.Background(), "doc_a", "alpha", 8)
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, "alpha beta", passages[0].Text)
}

func TestRetrieve_DimensionMismatchFailsFast(t *testing.T) {
	retriever := NewRetriever(embeddings.NewHashEmbedder(32), newMemoryIndex(64), arbor.NewLogger())

	_, err := retriever.Retrieve(context.Background(), "doc_a", "query", 8)
	var dimErr *common.DimensionMismatchError
	require.True(t, errors.As(err, &dimErr))
	assert.Equal(t, 64, dimErr.Expected)
	assert.Equal(t, 32, dimErr.Actual)
}

func TestRetrieve_SearchFailure(t *testing.T) {
	idx := newMemoryIndex(32)
	idx.searchErr = &common.UpstreamError{Service: "qdrant", Err: errors.New("unavailable")}

	_, err := NewRetriever(embeddings.NewHashEmbedder(32), idx, arbor.NewLogger()).Retrieve(context.Background(), "doc_a", "query", 8)
	require.Error(t, err)
	assert.True(t, common.IsUpstream(err))
}

func TestRetrieve_RequiresDocument(t *testing.T) {
	_, err := NewRetriever(embeddings.NewHashEmbedder(32), newMemoryIndex(32), arbor.NewLogger()).Retrieve(context.Background(), "", "query", 8)
	assert.True(t, common.IsValidation(err))
}
