package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	a := s.app

	mux.HandleFunc("/api/health", a.HealthHandler.HealthHandler)

	// Auth
	mux.HandleFunc("/api/auth/me", a.AuthHandler.MeHandler)
	mux.HandleFunc("/api/auth/status", a.AuthHandler.StatusHandler)

	// Documents
	mux.HandleFunc("/api/documents", func(w http.ResponseWriter, r *http.Request) {
		RouteResourceCollection(w, r, a.DocumentHandler.ListHandler, a.DocumentHandler.UploadHandler)
	})
	mux.HandleFunc("/api/documents/{id}", func(w http.ResponseWriter, r *http.Request) {
		RouteResourceItem(w, r, a.DocumentHandler.GetHandler, nil, a.DocumentHandler.DeleteHandler)
	})
	mux.HandleFunc("POST /api/documents/{id}/reindex", a.DocumentHandler.ReindexHandler)
	mux.HandleFunc("/api/documents/{id}/sessions", func(w http.ResponseWriter, r *http.Request) {
		RouteResourceCollection(w, r, a.SessionHandler.ListHandler, a.SessionHandler.CreateHandler)
	})

	// Sessions
	mux.HandleFunc("/api/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		RouteByMethod(w, r, MethodRouter{
			http.MethodGet:    a.SessionHandler.GetHandler,
			http.MethodPut:    a.SessionHandler.RenameHandler,
			http.MethodPatch:  a.SessionHandler.RenameHandler,
			http.MethodDelete: a.SessionHandler.DeleteHandler,
		})
	})
	mux.HandleFunc("/api/sessions/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		RouteResourceCollection(w, r, a.MessageHandler.ListHandler, a.MessageHandler.SendHandler)
	})
	mux.HandleFunc("DELETE /api/sessions/{id}/clear", a.SessionHandler.ClearHandler)
	mux.HandleFunc("GET /api/sessions/{id}/export", a.SessionHandler.ExportHandler)

	// Messages
	mux.HandleFunc("DELETE /api/messages/{id}", a.MessageHandler.DeleteHandler)

	// WebSocket chat
	mux.HandleFunc("GET /ws/sessions/{id}", a.ChatWSHandler.HandleWebSocket)

	return mux
}
