package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docgpt/internal/common"
	"github.com/ternarybob/docgpt/internal/interfaces"
	"github.com/ternarybob/docgpt/internal/models"
)

// fakeChat streams fixed fragments for session "ses_1" owned by "user_1"
type fakeChat struct {
	fragments []string
	lastQuery string
	delay     time.Duration // Held before the first fragment
	cancelled chan struct{} // Closed when a held turn sees its context end
}

func (f *fakeChat) check(userID, sessionID string) error {
	if sessionID != "ses_1" {
		return common.NewNotFoundError("session", sessionID)
	}
	if userID != "user_1" {
		return &common.PermissionError{Message: "session belongs to another user"}
	}
	return nil
}

func (f *fakeChat) Stream(ctx context.Context, userID, sessionID, content string, emit func(models.ChatEvent) error) error {
	if err := f.check(userID, sessionID); err != nil {
		return err
	}
	f.lastQuery = content
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			if f.cancelled != nil {
				close(f.cancelled)
			}
			return ctx.Err()
		}
	}
	var answer strings.Builder
	for _, frag := range f.fragments {
		answer.WriteString(frag)
		if err := emit(models.ChatEvent{Chunk: frag}); err != nil {
			return err
		}
	}
	return emit(models.ChatEvent{Done: true, Message: &models.ChatMessage{ID: "msg_2", Role: models.RoleAssistant, Content: answer.String()}})
}

func (f *fakeChat) Answer(ctx context.Context, userID, sessionID, content string) (*models.ChatAnswer, error) {
	if err := f.check(userID, sessionID); err != nil {
		return nil, err
	}
	return &models.ChatAnswer{
		UserMessage:      &models.ChatMessage{ID: "msg_1", Role: models.RoleUser, Content: content},
		AssistantMessage: &models.ChatMessage{ID: "msg_2", Role: models.RoleAssistant, Content: strings.Join(f.fragments, "")},
	}, nil
}

func (f *fakeChat) ListMessages(ctx context.Context, userID, sessionID string, limit, offset int) ([]*models.ChatMessage, error) {
	return []*models.ChatMessage{}, f.check(userID, sessionID)
}

func (f *fakeChat) DeleteMessage(ctx context.Context, userID, messageID string) error {
	return nil
}

func (f *fakeChat) ClearHistory(ctx context.Context, userID, sessionID string) (int, error) {
	return 4, f.check(userID, sessionID)
}

// fakeDocuments records uploads
type fakeDocuments struct {
	interfaces.DocumentService
	uploadedName string
	uploadedData []byte
	deleteErr    error
}

func (f *fakeDocuments) Upload(ctx context.Context, req interfaces.UploadRequest) (*models.Document, error) {
	data, err := io.ReadAll(req.Content)
	if err != nil {
		return nil, err
	}
	f.uploadedName, f.uploadedData = req.FileName, data
	return &models.Document{ID: "doc_1", UserID: req.UserID, Name: req.FileName, FileSize: int64(len(data))}, nil
}

func (f *fakeDocuments) Delete(ctx context.Context, userID, documentID string) error {
	return f.deleteErr
}

// asUser injects the authenticated user the way the auth middleware does
func asUser(id string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), &models.User{ID: id})))
	})
}

func newChatMux(chat *fakeChat, opts ...ChatWebSocketOption) *http.ServeMux {
	logger := arbor.NewLogger()
	messages := NewMessageHandler(chat, logger)
	ws := NewChatWebSocketHandler(chat, logger, opts...)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sessions/{id}/messages", messages.SendHandler)
	mux.HandleFunc("GET /ws/sessions/{id}", ws.HandleWebSocket)
	return mux
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{common.NewValidationError("f", "bad"), http.StatusBadRequest},
		{common.NewNotFoundError("document", "x"), http.StatusNotFound},
		{&common.PermissionError{Message: "no"}, http.StatusForbidden},
		{&common.UpstreamError{Service: "qdrant", Err: errors.New("down")}, http.StatusBadGateway},
		{&common.EmbeddingError{Err: errors.New("down")}, http.StatusBadGateway},
		{&common.DimensionMismatchError{Expected: 3, Actual: 4}, http.StatusConflict},
		{&common.DeleteError{ID: "doc_1"}, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusForError(tt.err), tt.err.Error())
	}
}

func readEvents(t *testing.T, body io.Reader) []models.ChatEvent {
	t.Helper()
	var events []models.ChatEvent
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev models.ChatEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	return events
}

func TestSendHandler_StreamsEvents(t *testing.T) {
	chat := &fakeChat{fragments: []string{"Hel", "lo"}}
	handler := asUser("user_1", newChatMux(chat))

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/ses_1/messages", strings.NewReader(`{"message":"  hi  "}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "hi", chat.lastQuery)

	events := readEvents(t, rec.Body)
	require.Len(t, events, 3)
	assert.Equal(t, "Hel", events[0].Chunk)
	assert.Equal(t, "lo", events[1].Chunk)
	assert.True(t, events[2].Done)
	assert.Equal(t, "Hello", events[2].Message.Content)
}

func TestSendHandler_ErrorsBeforeStreamKeepStatus(t *testing.T) {
	handler := asUser("user_2", newChatMux(&fakeChat{}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions/ses_1/messages", strings.NewReader(`{"message":"hi"}`)))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "error", body["status"])
}

func TestSendHandler_EmptyMessage(t *testing.T) {
	handler := asUser("user_1", newChatMux(&fakeChat{}))

	for _, body := range []string{`{"message":"   "}`, `{}`, `not json`} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions/ses_1/messages", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestSendHandler_NonStreaming(t *testing.T) {
	handler := asUser("user_1", newChatMux(&fakeChat{fragments: []string{"Hello"}}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions/ses_1/messages?stream=false", strings.NewReader(`{"message":"hi"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var answer models.ChatAnswer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &answer))
	assert.Equal(t, "hi", answer.UserMessage.Content)
	assert.Equal(t, "Hello", answer.AssistantMessage.Content)
}

func TestUploadHandler(t *testing.T) {
	docs := &fakeDocuments{}
	h := NewDocumentHandler(docs, common.UploadConfig{MaxSizeMB: 1, AllowedExtensions: []string{"pdf"}}, arbor.NewLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/documents", h.UploadHandler)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "report.pdf")
	require.NoError(t, err)
	part.Write([]byte("%PDF-1.4 content"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	asUser("user_1", mux).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "report.pdf", docs.uploadedName)
	assert.Equal(t, []byte("%PDF-1.4 content"), docs.uploadedData)
}

func TestUploadHandler_MissingFile(t *testing.T) {
	h := NewDocumentHandler(&fakeDocuments{}, common.UploadConfig{MaxSizeMB: 1}, arbor.NewLogger())

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("name", "x")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.UploadHandler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteHandler_PartialFailure(t *testing.T) {
	derr := &common.DeleteError{ID: "doc_1"}
	derr.Add("vector_index", errors.New("unavailable"))
	h := NewDocumentHandler(&fakeDocuments{deleteErr: derr}, common.UploadConfig{}, arbor.NewLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /api/documents/{id}", h.DeleteHandler)

	rec := httptest.NewRecorder()
	asUser("user_1", mux).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/documents/doc_1", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body struct {
		Status   string              `json:"status"`
		Failures []map[string]string `json:"failures"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "error", body.Status)
	require.Len(t, body.Failures, 1)
	assert.Equal(t, "vector_index", body.Failures[0]["store"])
}

func TestGetLimitOffset(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/x?limit=5000&offset=20", nil)
	limit, offset := GetLimitOffset(r, 100, 1000)
	assert.Equal(t, 1000, limit)
	assert.Equal(t, 20, offset)

	r = httptest.NewRequest(http.MethodGet, "/x?limit=-1&offset=abc", nil)
	limit, offset = GetLimitOffset(r, 100, 1000)
	assert.Equal(t, 100, limit)
	assert.Equal(t, 0, offset)
}

func TestChatWebSocket(t *testing.T) {
	srv := httptest.NewServer(asUser("user_1", newChatMux(&fakeChat{fragments: []string{"Hel", "lo"}})))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/sessions/ses_1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(SendMessageRequest{Message: "hi"}))

	var events []models.ChatEvent
	for len(events) < 3 {
		var ev models.ChatEvent
		require.NoError(t, conn.ReadJSON(&ev))
		events = append(events, ev)
	}
	assert.Equal(t, "Hel", events[0].Chunk)
	assert.Equal(t, "lo", events[1].Chunk)
	assert.True(t, events[2].Done)

	// Invalid frames get an error event and keep the connection open
	require.NoError(t, conn.WriteJSON(SendMessageRequest{Message: " "}))
	var ev models.ChatEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.NotEmpty(t, ev.Error)
}

func TestChatWebSocket_RejectsForeignSession(t *testing.T) {
	srv := httptest.NewServer(asUser("user_2", newChatMux(&fakeChat{})))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/sessions/ses_1"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func dialChat(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/sessions/ses_1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestChatWebSocket_TurnsLongerThanPongWait(t *testing.T) {
	chat := &fakeChat{fragments: []string{"ok"}, delay: time.Second}
	srv := httptest.NewServer(asUser("user_1", newChatMux(chat, WithPongWait(400*time.Millisecond))))
	defer srv.Close()

	conn := dialChat(t, srv)

	// The client answers pings while it waits in ReadJSON
	for turn := 1; turn <= 2; turn++ {
		require.NoError(t, conn.WriteJSON(SendMessageRequest{Message: "question"}), "turn %d", turn)

		var chunk, done models.ChatEvent
		require.NoError(t, conn.ReadJSON(&chunk), "turn %d", turn)
		require.NoError(t, conn.ReadJSON(&done), "turn %d", turn)
		assert.Equal(t, "ok", chunk.Chunk)
		assert.True(t, done.Done)
	}
}

func TestChatWebSocket_DisconnectCancelsTurn(t *testing.T) {
	chat := &fakeChat{fragments: []string{"late"}, delay: time.Minute, cancelled: make(chan struct{})}
	srv := httptest.NewServer(asUser("user_1", newChatMux(chat)))
	defer srv.Close()

	conn := dialChat(t, srv)
	require.NoError(t, conn.WriteJSON(SendMessageRequest{Message: "question"}))

	// Give the handler time to start the turn before going away
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, conn.Close())

	select {
	case <-chat.cancelled:
	case <-time.After(5 * time.Second):
		t.Fatal("turn kept running after the client disconnected")
	}
}

func TestAuthMeHandler(t *testing.T) {
	h := NewAuthHandler()

	rec := httptest.NewRecorder()
	asUser("user_1", http.HandlerFunc(h.MeHandler)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var user models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, "user_1", user.ID)

	rec = httptest.NewRecorder()
	h.MeHandler(rec, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthStatusHandler(t *testing.T) {
	h := NewAuthHandler()

	rec := httptest.NewRecorder()
	asUser("user_1", http.HandlerFunc(h.StatusHandler)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Authenticated bool         `json:"authenticated"`
		User          *models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Authenticated)
	require.NotNil(t, body.User)
	assert.Equal(t, "user_1", body.User.ID)

	rec = httptest.NewRecorder()
	h.StatusHandler(rec, httptest.NewRequest(http.MethodPost, "/api/auth/status", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
