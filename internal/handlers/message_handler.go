package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docgpt/internal/interfaces"
	"github.com/ternarybob/docgpt/internal/models"
)

type MessageHandler struct {
	chatService interfaces.ChatService
	logger      arbor.ILogger
}

func NewMessageHandler(chatService interfaces.ChatService, logger arbor.ILogger) *MessageHandler {
	return &MessageHandler{
		chatService: chatService,
		logger:      logger,
	}
}

// ListHandler returns the messages of a session, oldest first
func (h *MessageHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	limit, offset := GetLimitOffset(r, 100, 1000)
	messages, err := h.chatService.ListMessages(r.Context(), userID(r), r.PathValue("id"), limit, offset)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"messages": messages,
		"limit":    limit,
		"offset":   offset,
	})
}

// SendHandler runs a chat turn. The answer is streamed as server-sent events
// unless the query carries stream=false.
func (h *MessageHandler) SendHandler(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := DecodeRequest(r, &req); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	sessionID := r.PathValue("id")

	if r.URL.Query().Get("stream") == "false" {
		answer, err := h.chatService.Answer(r.Context(), userID(r), sessionID, req.Message)
		if err != nil {
			WriteServiceError(w, h.logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, answer)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	sse := &sseWriter{w: w, flusher: flusher}
	err := h.chatService.Stream(r.Context(), userID(r), sessionID, req.Message, sse.send)
	if err == nil {
		return
	}
	if !sse.started {
		// Nothing was streamed; the failure still has its proper status
		WriteServiceError(w, h.logger, err)
		return
	}
	h.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Chat stream ended with error")
	if !sse.finished && r.Context().Err() == nil {
		sse.send(models.ChatEvent{Error: "The response could not be completed"})
	}
}

func (h *MessageHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.chatService.DeleteMessage(r.Context(), userID(r), r.PathValue("id")); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteSuccess(w, "Message deleted")
}

// sseWriter frames chat events as "data: {json}\n\n" and writes headers lazily
// so errors raised before the first event keep their status code
type sseWriter struct {
	w        http.ResponseWriter
	flusher  http.Flusher
	started  bool
	finished bool
}

func (s *sseWriter) send(event models.ChatEvent) error {
	if !s.started {
		s.w.Header().Set("Content-Type", "text/event-stream")
		s.w.Header().Set("Cache-Control", "no-cache")
		s.w.Header().Set("Connection", "keep-alive")
		s.w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()

	if event.Done || event.Error != "" {
		s.finished = true
	}
	return nil
}
