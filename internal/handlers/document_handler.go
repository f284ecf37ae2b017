package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docgpt/internal/common"
	"github.com/ternarybob/docgpt/internal/interfaces"
)

// multipartOverhead is allowed on top of the file limit for form boundaries and fields
const multipartOverhead = 1 << 20

type DocumentHandler struct {
	documentService interfaces.DocumentService
	upload          common.UploadConfig
	logger          arbor.ILogger
}

func NewDocumentHandler(documentService interfaces.DocumentService, upload common.UploadConfig, logger arbor.ILogger) *DocumentHandler {
	return &DocumentHandler{
		documentService: documentService,
		upload:          upload,
		logger:          logger,
	}
}

// ListHandler returns the caller's documents with session counts
func (h *DocumentHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	limit, offset := GetLimitOffset(r, 50, 100)
	docs, total, err := h.documentService.List(r.Context(), userID(r), limit, offset)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
		"total":     total,
		"limit":     limit,
		"offset":    offset,
	})
}

// UploadHandler accepts a multipart form with the PDF in the "file" field
func (h *DocumentHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.upload.MaxSizeBytes()+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		WriteServiceError(w, h.logger, common.NewValidationError("file", "invalid upload: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteServiceError(w, h.logger, common.NewValidationError("file", "a file is required"))
		return
	}
	defer file.Close()

	doc, err := h.documentService.Upload(r.Context(), interfaces.UploadRequest{
		UserID:   userID(r),
		FileName: header.Filename,
		Size:     header.Size,
		Content:  file,
	})
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, doc)
}

func (h *DocumentHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	doc, err := h.documentService.Get(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, doc)
}

// DeleteHandler removes the document with its sessions, file and vectors
func (h *DocumentHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.documentService.Delete(r.Context(), userID(r), r.PathValue("id")); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteSuccess(w, "Document deleted")
}

func (h *DocumentHandler) ReindexHandler(w http.ResponseWriter, r *http.Request) {
	result, err := h.documentService.Reindex(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}
