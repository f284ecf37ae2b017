package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ternarybob/docgpt/internal/common"
)

// maxJSONBody bounds JSON request bodies
const maxJSONBody = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// CreateSessionRequest is the body of POST /api/documents/{id}/sessions
type CreateSessionRequest struct {
	Title string `json:"title" validate:"max=200"`
}

// RenameSessionRequest is the body of PUT /api/sessions/{id}
type RenameSessionRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

// SendMessageRequest is the body of POST /api/sessions/{id}/messages and of
// every WebSocket frame sent by the client
type SendMessageRequest struct {
	Message string `json:"message" validate:"required"`
}

type trimmer interface {
	trim()
}

func (r *CreateSessionRequest) trim() { r.Title = strings.TrimSpace(r.Title) }
func (r *RenameSessionRequest) trim() { r.Title = strings.TrimSpace(r.Title) }
func (r *SendMessageRequest) trim()   { r.Message = strings.TrimSpace(r.Message) }

// DecodeRequest reads a JSON body into dst, trims it and validates it.
// An empty body is allowed when dst has no required fields.
func DecodeRequest(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return common.NewValidationError("body", "invalid JSON: %v", err)
	}
	return ValidateRequest(dst)
}

// ValidateRequest trims and validates a decoded request
func ValidateRequest(dst interface{}) error {
	if t, ok := dst.(trimmer); ok {
		t.trim()
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return common.NewValidationError(strings.ToLower(fe.Field()), "%s", describe(fe))
		}
		return common.NewValidationError("body", "%v", err)
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
