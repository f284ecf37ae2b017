package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docgpt/internal/interfaces"
)

type SessionHandler struct {
	sessionService interfaces.SessionService
	chatService    interfaces.ChatService
	logger         arbor.ILogger
}

func NewSessionHandler(sessionService interfaces.SessionService, chatService interfaces.ChatService, logger arbor.ILogger) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		chatService:    chatService,
		logger:         logger,
	}
}

// ListHandler returns the sessions of a document, most recent first
func (h *SessionHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	limit, offset := GetLimitOffset(r, 50, 100)
	sessions, err := h.sessionService.List(r.Context(), userID(r), r.PathValue("id"), limit, offset)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"limit":    limit,
		"offset":   offset,
	})
}

func (h *SessionHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := DecodeRequest(r, &req); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	session, err := h.sessionService.Create(r.Context(), userID(r), r.PathValue("id"), req.Title)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, session)
}

func (h *SessionHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	session, doc, err := h.sessionService.Get(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"session":  session,
		"document": doc,
	})
}

func (h *SessionHandler) RenameHandler(w http.ResponseWriter, r *http.Request) {
	var req RenameSessionRequest
	if err := DecodeRequest(r, &req); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	session, err := h.sessionService.Rename(r.Context(), userID(r), r.PathValue("id"), req.Title)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, session)
}

func (h *SessionHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.sessionService.Delete(r.Context(), userID(r), r.PathValue("id")); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteSuccess(w, "Session deleted")
}

// ClearHandler deletes every message of the session
func (h *SessionHandler) ClearHandler(w http.ResponseWriter, r *http.Request) {
	n, err := h.chatService.ClearHistory(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"deleted": n,
	})
}

// ExportHandler downloads the session transcript as a PDF
func (h *SessionHandler) ExportHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	data, err := h.sessionService.Export(r.Context(), userID(r), sessionID)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sessionID+".pdf"))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
