package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		validation bool
		notFound   bool
		permission bool
		upstream   bool
	}{
		{"validation", NewValidationError("file", "only PDF files are allowed"), true, false, false, false},
		{"not found", NewNotFoundError("document", "doc_1"), false, true, false, false},
		{"wrapped not found", fmt.Errorf("load: %w", NewNotFoundError("session", "ses_1")), false, true, false, false},
		{"permission", &PermissionError{Message: "missing bearer token"}, false, false, true, false},
		{"upstream", &UpstreamError{Service: "qdrant", Err: errors.New("timeout")}, false, false, false, true},
		{"embedding", &EmbeddingError{Err: errors.New("boom")}, false, false, false, true},
		{"plain", errors.New("plain"), false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.validation, IsValidation(tt.err))
			assert.Equal(t, tt.notFound, IsNotFound(tt.err))
			assert.Equal(t, tt.permission, IsPermission(tt.err))
			assert.Equal(t, tt.upstream, IsUpstream(tt.err))
		})
	}
}

func TestDeleteError(t *testing.T) {
	de := &DeleteError{ID: "doc_1"}
	de.Add("vectors", nil)
	assert.NoError(t, de.ErrOrNil())

	vecErr := errors.New("qdrant down")
	de.Add("vectors", vecErr)
	de.Add("blob", errors.New("permission denied"))

	err := de.ErrOrNil()
	assert.Error(t, err)
	assert.ErrorIs(t, err, vecErr)
	assert.Contains(t, err.Error(), "vectors: qdrant down")
	assert.Contains(t, err.Error(), "blob: permission denied")
	assert.Len(t, de.Failures, 2)
}
