package handlers

import (
	"net/http"
)

// AuthHandler exposes the identity resolved by the auth middleware
type AuthHandler struct{}

func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

// MeHandler returns the current user
// GET /api/auth/me
func (h *AuthHandler) MeHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	user := UserFromContext(r.Context())
	if user == nil {
		WriteError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	WriteJSON(w, http.StatusOK, user)
}

// StatusHandler reports whether the request carries a valid identity
// GET /api/auth/status
func (h *AuthHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	user := UserFromContext(r.Context())
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"authenticated": user != nil,
		"user":          user,
	})
}
