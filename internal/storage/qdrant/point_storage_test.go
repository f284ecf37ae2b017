package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docgpt/internal/common"
	"github.com/ternarybob/docgpt/internal/models"
)

// fakeQdrant records requests and serves a single collection in memory
type fakeQdrant struct {
	mu        sync.Mutex
	size      int
	points    map[uint64]qdrantPoint
	requests  []string
	apiKeys   []string
	failPaths map[string]int
}

func newFakeQdrant() *fakeQdrant {
	return &fakeQdrant{points: map[uint64]qdrantPoint{}, failPaths: map[string]int{}}
}

func (f *fakeQdrant) reply(w http.ResponseWriter, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"result": result, "status": "ok", "time": 0.001})
}

func (f *fakeQdrant) documentOf(body map[string]json.RawMessage) string {
	var filter filterBody
	_ = json.Unmarshal(body["filter"], &filter)
	if len(filter.Must) == 0 {
		return ""
	}
	return filter.Must[0].Match.Value
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.apiKeys = append(f.apiKeys, r.Header.Get("api-key"))
	if status, ok := f.failPaths[r.URL.Path]; ok {
		http.Error(w, `{"status":{"error":"boom"}}`, status)
		return
	}

	var body map[string]json.RawMessage
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	switch {
	case r.URL.Path == "/collections/chunks" && r.Method == http.MethodGet:
		if f.size == 0 {
			http.Error(w, `{"status":{"error":"Not found"}}`, http.StatusNotFound)
			return
		}
		f.reply(w, map[string]interface{}{
			"config": map[string]interface{}{
				"params": map[string]interface{}{
					"vectors": vectorParams{Size: f.size, Distance: "Cosine"},
				},
			},
		})
	case r.URL.Path == "/collections/chunks" && r.Method == http.MethodPut:
		var params vectorParams
		_ = json.Unmarshal(body["vectors"], &params)
		f.size = params.Size
		f.reply(w, true)
	case r.URL.Path == "/collections/chunks" && r.Method == http.MethodDelete:
		f.size = 0
		f.points = map[uint64]qdrantPoint{}
		f.reply(w, true)
	case r.URL.Path == "/collections/chunks/index":
		f.reply(w, map[string]interface{}{"status": "completed"})
	case r.URL.Path == "/collections/chunks/points" && r.Method == http.MethodPut:
		var points []qdrantPoint
		_ = json.Unmarshal(body["points"], &points)
		for _, p := range points {
			f.points[p.ID] = p
		}
		f.reply(w, map[string]interface{}{"status": "completed"})
	case r.URL.Path == "/collections/chunks/points/search":
		var vector []float32
		var limit int
		_ = json.Unmarshal(body["vector"], &vector)
		_ = json.Unmarshal(body["limit"], &limit)
		docID := f.documentOf(body)
		hits := []models.ScoredPoint{}
		for _, p := range f.points {
			if p.Payload.DocumentID != docID {
				continue
			}
			hits = append(hits, models.ScoredPoint{ID: p.ID, Score: common.CosineSimilarity(vector, p.Vector), Payload: p.Payload})
		}
		if len(hits) > limit {
			hits = hits[:limit]
		}
		f.reply(w, hits)
	case r.URL.Path == "/collections/chunks/points/delete":
		docID := f.documentOf(body)
		for id, p := range f.points {
			if p.Payload.DocumentID == docID {
				delete(f.points, id)
			}
		}
		f.reply(w, map[string]interface{}{"status": "completed"})
	case r.URL.Path == "/collections/chunks/points/count":
		docID := f.documentOf(body)
		count := 0
		for _, p := range f.points {
			if p.Payload.DocumentID == docID {
				count++
			}
		}
		f.reply(w, map[string]int{"count": count})
	default:
		http.NotFound(w, r)
	}
}

func newTestStorage(t *testing.T, fake *fakeQdrant) *PointStorage {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	client := NewClient(server.URL, WithAPIKey("secret"), WithLogger(arbor.NewLogger()))
	return NewPointStorage(client, "chunks", arbor.NewLogger())
}

func testPoint(documentID string, page, index int, vector []float32) models.Point {
	chunk := models.Chunk{DocumentID: documentID, PageNumber: page, Index: index, Text: "body"}
	return models.Point{ID: chunk.PointID(), Vector: vector, Payload: chunk.Payload()}
}

func TestPointStorage_CreatesCollectionAndIndex(t *testing.T) {
	fake := newFakeQdrant()
	storage := newTestStorage(t, fake)

	reset, err := storage.EnsureCollection(context.Background(), 3, models.DistanceCosine)
	require.NoError(t, err)
	assert.False(t, reset)
	assert.Equal(t, 3, storage.Dimension())
	assert.Equal(t, []string{
		"GET /collections/chunks",
		"PUT /collections/chunks",
		"PUT /collections/chunks/index",
	}, fake.requests)
	for _, key := range fake.apiKeys {
		assert.Equal(t, "secret", key)
	}

	fake.requests = nil
	reset, err = storage.EnsureCollection(context.Background(), 3, models.DistanceCosine)
	require.NoError(t, err)
	assert.False(t, reset)
	assert.Equal(t, []string{"GET /collections/chunks"}, fake.requests)
}

func TestPointStorage_ResetsOnDimensionMismatch(t *testing.T) {
	fake := newFakeQdrant()
	fake.size = 768
	storage := newTestStorage(t, fake)

	reset, err := storage.EnsureCollection(context.Background(), 384, models.DistanceCosine)
	require.NoError(t, err)
	assert.True(t, reset)
	assert.Equal(t, 384, fake.size)
	assert.Contains(t, fake.requests, "DELETE /collections/chunks")
}

func TestPointStorage_UpsertSearchCountDelete(t *testing.T) {
	fake := newFakeQdrant()
	storage := newTestStorage(t, fake)
	ctx := context.Background()

	_, err := storage.EnsureCollection(ctx, 2, models.DistanceCosine)
	require.NoError(t, err)

	require.NoError(t, storage.Upsert(ctx, []models.Point{
		testPoint("doc_a", 1, 0, []float32{1, 0}),
		testPoint("doc_a", 1, 1, []float32{0, 1}),
		testPoint("doc_b", 1, 0, []float32{1, 0}),
	}))

	hits, err := storage.Search(ctx, []float32{1, 0}, models.PointFilter{DocumentID: "doc_a"}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.Equal(t, "doc_a", h.Payload.DocumentID)
		assert.Equal(t, "body", h.Payload.Text)
	}

	count, err := storage.Count(ctx, models.PointFilter{DocumentID: "doc_a"})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, storage.Delete(ctx, models.PointFilter{DocumentID: "doc_a"}))
	count, err = storage.Count(ctx, models.PointFilter{DocumentID: "doc_a"})
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = storage.Count(ctx, models.PointFilter{DocumentID: "doc_b"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPointStorage_UpstreamFailure(t *testing.T) {
	fake := newFakeQdrant()
	storage := newTestStorage(t, fake)
	ctx := context.Background()

	_, err := storage.EnsureCollection(ctx, 2, models.DistanceCosine)
	require.NoError(t, err)

	fake.failPaths["/collections/chunks/points/search"] = http.StatusServiceUnavailable
	_, err = storage.Search(ctx, []float32{1, 0}, models.PointFilter{DocumentID: "doc_a"}, 5)
	require.Error(t, err)
	assert.True(t, common.IsUpstream(err))
	assert.True(t, strings.Contains(err.Error(), "503"))
}

func TestPointStorage_RejectsUnfilteredRequests(t *testing.T) {
	fake := newFakeQdrant()
	storage := newTestStorage(t, fake)

	_, err := storage.Search(context.Background(), []float32{1, 0}, models.PointFilter{}, 5)
	assert.Error(t, err)
	assert.Error(t, storage.Delete(context.Background(), models.PointFilter{}))
	assert.Empty(t, fake.requests)
}
