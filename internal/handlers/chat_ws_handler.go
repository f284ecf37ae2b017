package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docgpt/internal/interfaces"
	"github.com/ternarybob/docgpt/internal/models"
)

const (
	wsWriteWait    = 10 * time.Second
	wsPongWait     = 60 * time.Second
	wsMaxMessage   = 64 << 10
	wsPendingTurns = 8
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// ChatWebSocketHandler carries chat turns over a WebSocket. Each client frame
// {"message": "..."} runs one turn whose events are sent back as JSON frames,
// identical to the server-sent event payloads.
type ChatWebSocketHandler struct {
	chatService interfaces.ChatService
	logger      arbor.ILogger
	pongWait    time.Duration
}

// ChatWebSocketOption configures a ChatWebSocketHandler
type ChatWebSocketOption func(*ChatWebSocketHandler)

// WithPongWait sets how long the connection may stay silent before it is dropped.
// Pings are sent at 90% of this interval.
func WithPongWait(d time.Duration) ChatWebSocketOption {
	return func(h *ChatWebSocketHandler) {
		if d > 0 {
			h.pongWait = d
		}
	}
}

func NewChatWebSocketHandler(chatService interfaces.ChatService, logger arbor.ILogger, opts ...ChatWebSocketOption) *ChatWebSocketHandler {
	h := &ChatWebSocketHandler{
		chatService: chatService,
		logger:      logger,
		pongWait:    wsPongWait,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// wsConn serializes writes; gorilla connections allow one concurrent writer
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteJSON(v)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

func (h *ChatWebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	sessionID := r.PathValue("id")

	// Reject foreign or missing sessions before upgrading
	if _, err := h.chatService.ListMessages(r.Context(), user, sessionID, 1, 0); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	ws := &wsConn{conn: conn}
	conn.SetReadLimit(wsMaxMessage)
	conn.SetReadDeadline(time.Now().Add(h.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})

	// Cancelled by the reader when the client goes away, ending the running turn
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	frames := make(chan []byte, wsPendingTurns)
	go h.readFrames(ctx, cancel, ws, sessionID, frames)
	go h.keepAlive(ctx, ws)

	h.logger.Debug().Str("session_id", sessionID).Msg("Chat WebSocket connected")

	for data := range frames {
		var req SendMessageRequest
		if err := json.Unmarshal(data, &req); err != nil {
			ws.writeJSON(models.ChatEvent{Error: "invalid JSON frame"})
			continue
		}
		if err := ValidateRequest(&req); err != nil {
			ws.writeJSON(models.ChatEvent{Error: err.Error()})
			continue
		}

		finished := false
		err = h.chatService.Stream(ctx, user, sessionID, req.Message, func(ev models.ChatEvent) error {
			if ev.Done || ev.Error != "" {
				finished = true
			}
			return ws.writeJSON(ev)
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			h.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Chat turn over WebSocket failed")
			if !finished {
				if werr := ws.writeJSON(models.ChatEvent{Error: err.Error()}); werr != nil {
					return
				}
			}
		}
	}
}

// readFrames keeps reading while turns run so pongs refresh the deadline and a
// closed connection cancels ctx. Frames are queued in submission order.
func (h *ChatWebSocketHandler) readFrames(ctx context.Context, cancel context.CancelFunc, ws *wsConn, sessionID string, frames chan<- []byte) {
	defer close(frames)
	defer cancel()
	for {
		_, data, err := ws.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Chat WebSocket closed unexpectedly")
			}
			return
		}
		select {
		case frames <- data:
		case <-ctx.Done():
			return
		default:
			ws.writeJSON(models.ChatEvent{Error: "too many messages pending; wait for the current answer"})
		}
	}
}

func (h *ChatWebSocketHandler) keepAlive(ctx context.Context, ws *wsConn) {
	ticker := time.NewTicker(h.pongWait * 9 / 10)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ws.ping(); err != nil {
				return
			}
		}
	}
}
