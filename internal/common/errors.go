package common

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is matched by errors.Is for every NotFoundError
var ErrNotFound = errors.New("not found")

// ValidationError reports a bad request argument
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for a field
func NewValidationError(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a missing entity
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a NotFoundError
func NewNotFoundError(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// PermissionError reports a missing identity or an ownership mismatch
type PermissionError struct {
	Message string
}

func (e *PermissionError) Error() string {
	return e.Message
}

// UpstreamError wraps a failure from an external dependency (vector index, LLM, blob store)
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// EmbeddingError reports that the embedding backend failed. It is fatal to indexing.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failed: %v", e.Err)
}

func (e *EmbeddingError) Unwrap() error {
	return e.Err
}

// DimensionMismatchError reports a vector whose length differs from the collection
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("vector dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// DeleteFailure records one store that failed during a best-effort delete
type DeleteFailure struct {
	Store string
	Err   error
}

// DeleteError aggregates the failures of a best-effort multi-store delete.
// The delete continued past each failure.
type DeleteError struct {
	ID       string
	Failures []DeleteFailure
}

func (e *DeleteError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Store, f.Err))
	}
	return fmt.Sprintf("delete %s partially failed: %s", e.ID, strings.Join(parts, "; "))
}

func (e *DeleteError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// Add records a failure. Nil errors are ignored.
func (e *DeleteError) Add(store string, err error) {
	if err != nil {
		e.Failures = append(e.Failures, DeleteFailure{Store: store, Err: err})
	}
}

// ErrOrNil returns the DeleteError when it holds failures, otherwise nil
func (e *DeleteError) ErrOrNil() error {
	if len(e.Failures) == 0 {
		return nil
	}
	return e
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsPermission(err error) bool {
	var p *PermissionError
	return errors.As(err, &p)
}

func IsUpstream(err error) bool {
	var u *UpstreamError
	var e *EmbeddingError
	return errors.As(err, &u) || errors.As(err, &e)
}
