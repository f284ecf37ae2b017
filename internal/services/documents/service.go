package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docgpt/internal/common"
	"github.com/ternarybob/docgpt/internal/interfaces"
	"github.com/ternarybob/docgpt/internal/models"
	"github.com/ternarybob/docgpt/internal/services/chunker"
)

// Service implements DocumentService: upload, indexing and deletion across
// the relational store, the blob store and the vector index
type Service struct {
	documents interfaces.DocumentStorage
	sessions  interfaces.SessionStorage
	orphans   interfaces.OrphanStorage
	blobs     interfaces.BlobStore
	extractor interfaces.PDFExtractor
	embedder  interfaces.Embedder
	index     interfaces.VectorIndex
	retriever interfaces.Retriever
	rag       common.RAGConfig
	upload    common.UploadConfig
	logger    arbor.ILogger
}

// NewService creates a new document service
func NewService(
	storage interfaces.StorageManager,
	blobs interfaces.BlobStore,
	extractor interfaces.PDFExtractor,
	embedder interfaces.Embedder,
	index interfaces.VectorIndex,
	retriever interfaces.Retriever,
	config *common.Config,
	logger arbor.ILogger,
) interfaces.DocumentService {
	return &Service{
		documents: storage.DocumentStorage(),
		sessions:  storage.SessionStorage(),
		orphans:   storage.OrphanStorage(),
		blobs:     blobs,
		extractor: extractor,
		embedder:  embedder,
		index:     index,
		retriever: retriever,
		rag:       config.RAG,
		upload:    config.Upload,
		logger:    logger,
	}
}

func (s *Service) validateUpload(req interfaces.UploadRequest) error {
	if req.UserID == "" {
		return &common.PermissionError{Message: "authentication required"}
	}
	if strings.TrimSpace(req.FileName) == "" {
		return common.NewValidationError("file", "file name is required")
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(req.FileName)), ".")
	allowed := false
	for _, candidate := range s.upload.AllowedExtensions {
		if strings.EqualFold(ext, candidate) {
			allowed = true
			break
		}
	}
	if !allowed {
		return common.NewValidationError("file", "file type %q is not allowed, expected one of %s",
			ext, strings.Join(s.upload.AllowedExtensions, ", "))
	}

	if req.Size > s.upload.MaxSizeBytes() {
		return common.NewValidationError("file", "file exceeds the %d MB limit", s.upload.MaxSizeMB)
	}
	return nil
}

// readUpload reads at most the size limit plus one byte so oversized bodies
// with a wrong declared size are still rejected
func (s *Service) readUpload(r io.Reader) ([]byte, error) {
	limit := s.upload.MaxSizeBytes()
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, common.NewValidationError("file", "file exceeds the %d MB limit", s.upload.MaxSizeMB)
	}
	if len(data) == 0 {
		return nil, common.NewValidationError("file", "file is empty")
	}
	return data, nil
}

// Upload stores the PDF and indexes it. When indexing fails the document
// record and its blob are removed before the error is returned.
func (s *Service) Upload(ctx context.Context, req interfaces.UploadRequest) (*models.Document, error) {
	if err := s.validateUpload(req); err != nil {
		return nil, err
	}
	data, err := s.readUpload(req.Content)
	if err != nil {
		return nil, err
	}

	if _, err := s.extractor.PageCount(ctx, data); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	doc := &models.Document{
		ID:        common.NewDocumentID(),
		UserID:    req.UserID,
		Name:      filepath.Base(req.FileName),
		FileSize:  int64(len(data)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	doc.BlobPath = fmt.Sprintf("documents/%s.pdf", doc.ID)

	url, err := s.blobs.Put(ctx, doc.BlobPath, bytes.NewReader(data))
	if err != nil {
		return nil, &common.UpstreamError{Service: "blob_store", Err: err}
	}
	doc.FileURL = url

	if err := s.documents.SaveDocument(ctx, doc); err != nil {
		s.discardBlob(doc)
		return nil, fmt.Errorf("failed to save document: %w", err)
	}

	result, err := s.indexDocument(ctx, doc, data)
	if err != nil {
		s.logger.Error().Err(err).Str("document_id", doc.ID).Msg("Indexing failed, discarding upload")
		s.discardUpload(doc)
		return nil, err
	}

	s.logger.Info().
		Str("document_id", doc.ID).
		Str("user_id", doc.UserID).
		Str("name", doc.Name).
		Int64("size", doc.FileSize).
		Int("pages", result.PageCount).
		Int("chunks", result.ChunkCount).
		Msg("Document uploaded and indexed")
	return doc, nil
}

func (s *Service) discardBlob(doc *models.Document) {
	if err := s.blobs.Delete(context.Background(), doc.BlobPath); err != nil {
		s.logger.Warn().Err(err).Str("document_id", doc.ID).Msg("Failed to delete blob of discarded upload")
	}
}

// discardUpload undoes an upload whose indexing failed. Cleanup runs detached
// from the request so a cancelled upload still leaves nothing behind.
func (s *Service) discardUpload(doc *models.Document) {
	ctx := context.Background()
	if err := s.index.Delete(ctx, models.PointFilter{DocumentID: doc.ID}); err != nil {
		s.recordOrphan(ctx, doc.ID, err)
	}
	if err := s.documents.DeleteDocument(ctx, doc.ID); err != nil && !common.IsNotFound(err) {
		s.logger.Warn().Err(err).Str("document_id", doc.ID).Msg("Failed to delete record of discarded upload")
	}
	s.discardBlob(doc)
}

// indexDocument runs extract, chunk, embed and upsert for one document and
// stores the resulting counts on the record
func (s *Service) indexDocument(ctx context.Context, doc *models.Document, data []byte) (*models.IndexResult, error) {
	pages, err := s.extractor.ExtractPages(ctx, data)
	if err != nil {
		return nil, err
	}

	chunks := chunker.ChunkPages(doc.ID, pages, s.rag.ChunkSize, s.rag.ChunkOverlap)
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	var vectors [][]float32
	if len(texts) > 0 {
		vectors, err = s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, asEmbeddingError(err)
		}
		if len(vectors) != len(chunks) {
			return nil, &common.EmbeddingError{Err: fmt.Errorf("expected %d vectors, got %d", len(chunks), len(vectors))}
		}
	}

	reset, err := s.index.EnsureCollection(ctx, s.embedder.Dimension(), models.DistanceCosine)
	if err != nil {
		return nil, upstream("vector_index", err)
	}
	if reset {
		s.logger.Warn().
			Int("dimension", s.embedder.Dimension()).
			Msg("Vector collection recreated for a new dimension, every document must be re-indexed")
	}

	filter := models.PointFilter{DocumentID: doc.ID}
	if err := s.index.Delete(ctx, filter); err != nil {
		return nil, upstream("vector_index", err)
	}

	if len(chunks) > 0 {
		points := make([]models.Point, len(chunks))
		for i, c := range chunks {
			points[i] = models.Point{ID: c.PointID(), Vector: vectors[i], Payload: c.Payload()}
		}
		if err := s.index.Upsert(ctx, points); err != nil {
			return nil, upstream("vector_index", err)
		}
	}

	doc.PageCount = len(pages)
	doc.ChunkCount = len(chunks)
	doc.UpdatedAt = time.Now().UTC()
	if err := s.documents.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to update document counts: %w", err)
	}

	return &models.IndexResult{
		DocumentID:      doc.ID,
		PageCount:       doc.PageCount,
		ChunkCount:      doc.ChunkCount,
		CollectionReset: reset,
	}, nil
}

// owned loads a document and checks it belongs to userID
func (s *Service) owned(ctx context.Context, userID, documentID string) (*models.Document, error) {
	if userID == "" {
		return nil, &common.PermissionError{Message: "authentication required"}
	}
	doc, err := s.documents.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.UserID != userID {
		return nil, &common.PermissionError{Message: "document belongs to another user"}
	}
	return doc, nil
}

// List returns the user's documents with session counts and the total count
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]*models.DocumentSummary, int, error) {
	if userID == "" {
		return nil, 0, &common.PermissionError{Message: "authentication required"}
	}

	docs, err := s.documents.ListDocuments(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list documents: %w", err)
	}
	total, err := s.documents.CountDocuments(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count documents: %w", err)
	}

	summaries := make([]*models.DocumentSummary, 0, len(docs))
	for _, doc := range docs {
		count, err := s.sessions.CountSessions(ctx, doc.ID)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to count sessions of %s: %w", doc.ID, err)
		}
		summaries = append(summaries, &models.DocumentSummary{Document: *doc, SessionCount: count})
	}
	return summaries, total, nil
}

func (s *Service) Get(ctx context.Context, userID, documentID string) (*models.Document, error) {
	return s.owned(ctx, userID, documentID)
}

// Delete removes the document's vectors, blob and records. Every store is
// attempted; failures are returned together as a DeleteError. Vectors that
// could not be deleted are recorded for the orphan collector.
func (s *Service) Delete(ctx context.Context, userID, documentID string) error {
	doc, err := s.owned(ctx, userID, documentID)
	if err != nil {
		return err
	}

	derr := &common.DeleteError{ID: doc.ID}

	if err := s.index.Delete(ctx, models.PointFilter{DocumentID: doc.ID}); err != nil {
		derr.Add("vector_index", err)
		s.recordOrphan(context.WithoutCancel(ctx), doc.ID, err)
	}
	if doc.BlobPath != "" {
		derr.Add("blob_store", s.blobs.Delete(ctx, doc.BlobPath))
	}
	derr.Add("database", s.documents.DeleteDocument(ctx, doc.ID))

	if err := derr.ErrOrNil(); err != nil {
		s.logger.Warn().Err(err).Str("document_id", doc.ID).Msg("Document delete partially failed")
		return err
	}

	s.logger.Info().Str("document_id", doc.ID).Str("user_id", userID).Msg("Document deleted")
	return nil
}

func (s *Service) recordOrphan(ctx context.Context, documentID string, cause error) {
	now := time.Now().UTC()
	orphan := &models.OrphanRecord{
		ID:         common.NewOrphanID(),
		DocumentID: documentID,
		LastError:  cause.Error(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.orphans.SaveOrphan(ctx, orphan); err != nil {
		s.logger.Error().Err(err).Str("document_id", documentID).Msg("Failed to record orphaned vectors")
		return
	}
	s.logger.Warn().Str("document_id", documentID).Str("orphan_id", orphan.ID).Msg("Recorded orphaned vectors for cleanup")
}

// Reindex rebuilds the document's vectors from its stored file
func (s *Service) Reindex(ctx context.Context, userID, documentID string) (*models.IndexResult, error) {
	doc, err := s.owned(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}
	return s.reindex(ctx, doc)
}

func (s *Service) reindex(ctx context.Context, doc *models.Document) (*models.IndexResult, error) {
	r, err := s.blobs.Get(ctx, doc.BlobPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file of %s: %w", doc.ID, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read file of %s: %w", doc.ID, err)
	}

	result, err := s.indexDocument(ctx, doc, data)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("document_id", doc.ID).
		Int("chunks", result.ChunkCount).
		Msg("Document re-indexed")
	return result, nil
}

// ReindexAll re-indexes every document. A failing document does not stop the
// run; the failures are joined into the returned error.
func (s *Service) ReindexAll(ctx context.Context) ([]*models.IndexResult, error) {
	docs, err := s.documents.ListAllDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	results := make([]*models.IndexResult, 0, len(docs))
	var errs []error
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		result, err := s.reindex(ctx, doc)
		if err != nil {
			s.logger.Error().Err(err).Str("document_id", doc.ID).Msg("Re-index failed")
			errs = append(errs, fmt.Errorf("%s: %w", doc.ID, err))
			continue
		}
		results = append(results, result)
	}
	return results, errors.Join(errs...)
}

// Search returns the passages of one owned document closest to query
func (s *Service) Search(ctx context.Context, userID, documentID, query string, topK int) ([]models.Passage, error) {
	if _, err := s.owned(ctx, userID, documentID); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = s.rag.TopK
	}
	return s.retriever.Retrieve(ctx, documentID, query, topK)
}

func upstream(service string, err error) error {
	if common.IsUpstream(err) {
		return err
	}
	return &common.UpstreamError{Service: service, Err: err}
}

func asEmbeddingError(err error) error {
	var embErr *common.EmbeddingError
	if errors.As(err, &embErr) {
		return err
	}
	return &common.EmbeddingError{Err: err}
}
