package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docgpt/internal/common"
	"github.com/ternarybob/docgpt/internal/models"
)

func openTestDB(t *testing.T, path string) *SQLiteDB {
	t.Helper()
	db, err := NewSQLiteDB(arbor.NewLogger(), &common.SQLiteConfig{
		Path:          path,
		BusyTimeoutMS: 5000,
		WALMode:       true,
	})
	require.NoError(t, err)
	return db
}

func newTestIndex(t *testing.T, dim int) *PointStorage {
	t.Helper()
	index := NewPointStorage(openTestDB(t, filepath.Join(t.TempDir(), "vectors.db")), "document_chunks", arbor.NewLogger())
	t.Cleanup(func() { _ = index.Close() })

	reset, err := index.EnsureCollection(context.Background(), dim, models.DistanceCosine)
	require.NoError(t, err)
	require.False(t, reset)
	return index
}

func point(documentID string, page, index int, vector []float32) models.Point {
	chunk := models.Chunk{DocumentID: documentID, PageNumber: page, Index: index, Text: "chunk text"}
	return models.Point{ID: chunk.PointID(), Vector: vector, Payload: chunk.Payload()}
}

func TestPointStorage_SearchScopedToDocument(t *testing.T) {
	index := newTestIndex(t, 3)
	ctx := context.Background()

	require.NoError(t, index.Upsert(ctx, []models.Point{
		point("doc_a", 1, 0, []float32{0, 1, 0}),
		point("doc_a", 3, 2, []float32{1, 0, 0}),
		point("doc_b", 1, 0, []float32{1, 0, 0}),
	}))

	hits, err := index.Search(ctx, []float32{1, 0, 0}, models.PointFilter{DocumentID: "doc_a"}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, 3, hits[0].Payload.PageNumber)
	assert.Equal(t, 2, hits[0].Payload.ChunkIndex)
	assert.Equal(t, "chunk text", hits[0].Payload.Text)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	for _, h := range hits {
		assert.Equal(t, "doc_a", h.Payload.DocumentID)
	}

	_, err = index.Search(ctx, []float32{1, 0, 0}, models.PointFilter{}, 5)
	assert.Error(t, err)
}

func TestPointStorage_UpsertReplacesExisting(t *testing.T) {
	index := newTestIndex(t, 2)
	ctx := context.Background()
	filter := models.PointFilter{DocumentID: "doc_a"}

	p := point("doc_a", 1, 0, []float32{1, 0})
	require.NoError(t, index.Upsert(ctx, []models.Point{p}))
	p.Vector = []float32{0, 1}
	require.NoError(t, index.Upsert(ctx, []models.Point{p}))

	count, err := index.Count(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	hits, err := index.Search(ctx, []float32{0, 1}, filter, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Equal(t, p.ID, hits[0].ID)
}

func TestPointStorage_Delete(t *testing.T) {
	index := newTestIndex(t, 2)
	ctx := context.Background()

	require.NoError(t, index.Upsert(ctx, []models.Point{
		point("doc_a", 1, 0, []float32{1, 0}),
		point("doc_b", 1, 0, []float32{1, 0}),
	}))
	require.NoError(t, index.Delete(ctx, models.PointFilter{DocumentID: "doc_a"}))
	require.NoError(t, index.Delete(ctx, models.PointFilter{DocumentID: "doc_a"}))

	count, err := index.Count(ctx, models.PointFilter{DocumentID: "doc_a"})
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = index.Count(ctx, models.PointFilter{DocumentID: "doc_b"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPointStorage_DimensionChangeAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.db")
	ctx := context.Background()

	first := NewPointStorage(openTestDB(t, path), "document_chunks", arbor.NewLogger())
	_, err := first.EnsureCollection(ctx, 2, models.DistanceCosine)
	require.NoError(t, err)
	require.NoError(t, first.Upsert(ctx, []models.Point{point("doc_a", 1, 0, []float32{1, 0})}))
	require.NoError(t, first.Close())

	second := NewPointStorage(openTestDB(t, path), "document_chunks", arbor.NewLogger())
	t.Cleanup(func() { _ = second.Close() })

	reset, err := second.EnsureCollection(ctx, 4, models.DistanceCosine)
	require.NoError(t, err)
	assert.True(t, reset)

	count, err := second.Count(ctx, models.PointFilter{DocumentID: "doc_a"})
	require.NoError(t, err)
	assert.Zero(t, count)

	err = second.Upsert(ctx, []models.Point{point("doc_a", 1, 0, []float32{1, 0})})
	var dimErr *common.DimensionMismatchError
	require.True(t, errors.As(err, &dimErr))
	assert.Equal(t, 4, dimErr.Expected)
}
