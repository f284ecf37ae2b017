package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docgpt/internal/common"
	"github.com/ternarybob/docgpt/internal/models"
)

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a standard success JSON response.
func WriteSuccess(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": message,
	})
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// StatusForError maps the service error taxonomy to an HTTP status
func StatusForError(err error) int {
	var dimErr *common.DimensionMismatchError
	var delErr *common.DeleteError
	switch {
	case common.IsValidation(err):
		return http.StatusBadRequest
	case common.IsNotFound(err):
		return http.StatusNotFound
	case common.IsPermission(err):
		return http.StatusForbidden
	case errors.As(err, &dimErr):
		return http.StatusConflict
	case errors.As(err, &delErr):
		return http.StatusInternalServerError
	case common.IsUpstream(err):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WriteServiceError logs err and writes it with the status of its kind.
// Internal errors are not echoed to the client.
func WriteServiceError(w http.ResponseWriter, logger arbor.ILogger, err error) {
	status := StatusForError(err)
	message := err.Error()

	var delErr *common.DeleteError
	switch {
	case errors.As(err, &delErr):
		logger.Warn().Err(err).Msg("Partial delete")
		failures := make([]map[string]string, 0, len(delErr.Failures))
		for _, f := range delErr.Failures {
			failures = append(failures, map[string]string{"store": f.Store, "error": f.Err.Error()})
		}
		WriteJSON(w, status, map[string]interface{}{
			"status":   "error",
			"error":    message,
			"failures": failures,
		})
		return
	case status == http.StatusInternalServerError:
		logger.Error().Err(err).Msg("Request failed")
		message = "Internal server error"
	case status >= http.StatusBadGateway:
		logger.Error().Err(err).Msg("Upstream failure")
	default:
		logger.Debug().Err(err).Int("status", status).Msg("Request rejected")
	}
	WriteError(w, status, message)
}

// GetLimitOffset reads limit and offset query parameters.
// Invalid values fall back to the defaults; limit is capped at maxLimit.
func GetLimitOffset(r *http.Request, defaultLimit, maxLimit int) (limit, offset int) {
	limit = defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil && l > 0 {
			limit = l
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if o, err := strconv.Atoi(v); err == nil && o >= 0 {
			offset = o
		}
	}
	return limit, offset
}

type userContextKey struct{}

// WithUser stores the authenticated user in ctx
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext returns the authenticated user, or nil
func UserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(userContextKey{}).(*models.User)
	return user
}

// userID returns the caller's id; the auth middleware guarantees one on /api routes
func userID(r *http.Request) string {
	if user := UserFromContext(r.Context()); user != nil {
		return user.ID
	}
	return ""
}
