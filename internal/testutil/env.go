// Package testutil wires real embedded stores with small fakes for service tests.
package testutil

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docgpt/internal/common"
	"github.com/ternarybob/docgpt/internal/interfaces"
	"github.com/ternarybob/docgpt/internal/models"
	"github.com/ternarybob/docgpt/internal/services/embeddings"
	"github.com/ternarybob/docgpt/internal/services/retrieval"
	"github.com/ternarybob/docgpt/internal/storage/badger"
	"github.com/ternarybob/docgpt/internal/storage/filesystem"
)

// Dimension of the hash embedder used in tests
const Dimension = 64

// Env holds the stores shared by service tests
type Env struct {
	Config    *common.Config
	Storage   *badger.Manager
	Index     *FlakyIndex
	Blobs     *filesystem.BlobStore
	Embedder  *embeddings.HashEmbedder
	Extractor *PageExtractor
	Retriever *retrieval.Retriever
	Logger    arbor.ILogger
}

// NewEnv opens Badger and the blob store under t.TempDir and closes them on cleanup
func NewEnv(t testing.TB) *Env {
	t.Helper()
	dir := t.TempDir()
	logger := arbor.NewLogger()

	config := common.NewDefaultConfig()
	config.Storage.Badger.Path = filepath.Join(dir, "badger")
	config.Storage.Blob.Dir = filepath.Join(dir, "files")
	config.Embedding.Dimension = Dimension
	config.RAG.ChunkSize = 200
	config.RAG.ChunkOverlap = 40

	storage, err := badger.NewManager(logger, &config.Storage.Badger)
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })

	blobs, err := filesystem.NewBlobStore(logger, &config.Storage.Blob)
	require.NoError(t, err)

	embedder := embeddings.NewHashEmbedder(Dimension)
	index := &FlakyIndex{VectorIndex: badger.NewPointStorage(storage.BadgerDB(), config.Vector.Collection, logger)}

	return &Env{
		Config:    config,
		Storage:   storage,
		Index:     index,
		Blobs:     blobs,
		Embedder:  embedder,
		Extractor: &PageExtractor{},
		Retriever: retrieval.NewRetriever(embedder, index, logger),
		Logger:    logger,
	}
}

// PDF builds fake PDF bytes understood by PageExtractor, one page per argument
func PDF(pages ...string) []byte {
	return []byte("%PDF-fake\n" + strings.Join(pages, "\f"))
}

// PageExtractor reads the fake format written by PDF
type PageExtractor struct{}

var _ interfaces.PDFExtractor = (*PageExtractor)(nil)

func (e *PageExtractor) split(data []byte) ([]string, error) {
	body, ok := bytes.CutPrefix(data, []byte("%PDF-fake\n"))
	if !ok {
		return nil, common.NewValidationError("file", "not a readable PDF")
	}
	return strings.Split(string(body), "\f"), nil
}

func (e *PageExtractor) PageCount(ctx context.Context, data []byte) (int, error) {
	pages, err := e.split(data)
	return len(pages), err
}

func (e *PageExtractor) ExtractPages(ctx context.Context, data []byte) ([]models.Page, error) {
	texts, err := e.split(data)
	if err != nil {
		return nil, err
	}
	pages := make([]models.Page, len(texts))
	for i, text := range texts {
		pages[i] = models.Page{Number: i + 1, Text: text}
	}
	return pages, nil
}

// FlakyIndex wraps a vector index and fails selected operations on demand
type FlakyIndex struct {
	interfaces.VectorIndex

	mu        sync.Mutex
	upsertErr error
	deleteErr error
	searchErr error
}

func (f *FlakyIndex) FailUpsert(err error) { f.mu.Lock(); f.upsertErr = err; f.mu.Unlock() }
func (f *FlakyIndex) FailDelete(err error) { f.mu.Lock(); f.deleteErr = err; f.mu.Unlock() }
func (f *FlakyIndex) FailSearch(err error) { f.mu.Lock(); f.searchErr = err; f.mu.Unlock() }

func (f *FlakyIndex) failure(which *error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *which
}

func (f *FlakyIndex) Upsert(ctx context.Context, points []models.Point) error {
	if err := f.failure(&f.upsertErr); err != nil {
		return err
	}
	return f.VectorIndex.Upsert(ctx, points)
}

func (f *FlakyIndex) Delete(ctx context.Context, filter models.PointFilter) error {
	if err := f.failure(&f.deleteErr); err != nil {
		return err
	}
	return f.VectorIndex.Delete(ctx, filter)
}

func (f *FlakyIndex) Search(ctx context.Context, vector []float32, filter models.PointFilter, limit int) ([]models.ScoredPoint, error) {
	if err := f.failure(&f.searchErr); err != nil {
		return nil, err
	}
	return f.VectorIndex.Search(ctx, vector, filter, limit)
}

// MustCount returns the number of vectors stored for documentID
func (f *FlakyIndex) MustCount(t testing.TB, documentID string) int {
	t.Helper()
	n, err := f.Count(context.Background(), models.PointFilter{DocumentID: documentID})
	require.NoError(t, err)
	return n
}
