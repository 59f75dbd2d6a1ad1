package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
type HTTPError interface {
	error
	StatusCode() int
}

// Domain error types implementing HTTPError interface
type (
	// NotFoundError indicates a resource was not found
	NotFoundError struct {
		Message string
	}

	// ValidationError indicates invalid input
	ValidationError struct {
		Message string
	}

	// UnauthorizedError indicates authentication failure
	UnauthorizedError struct {
		Message string
	}

	// ForbiddenError indicates authorization failure
	ForbiddenError struct {
		Message string
	}
)

// Error implementations
func (e *NotFoundError) Error() string     { return e.Message }
func (e *ValidationError) Error() string   { return e.Message }
func (e *UnauthorizedError) Error() string { return e.Message }
func (e *ForbiddenError) Error() string    { return e.Message }

// StatusCode implementations (HTTPError interface)
func (e *NotFoundError) StatusCode() int     { return http.StatusNotFound }
func (e *ValidationError) StatusCode() int   { return http.StatusBadRequest }
func (e *UnauthorizedError) StatusCode() int { return http.StatusUnauthorized }
func (e *ForbiddenError) StatusCode() int    { return http.StatusForbidden }

// Is lets errors.Is match typed errors against their sentinels.
func (e *NotFoundError) Is(target error) bool   { return target == ErrNotFound }
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// ErrTooManyFiles is returned when a scan discovers more files than allowed.
	ErrTooManyFiles = errors.New("too many files")

	// ErrCorruptForest is returned when parent links are dangling or cyclic.
	ErrCorruptForest = errors.New("corrupt forest")

	// ErrBatchBusy is returned when a batch is already being submitted.
	ErrBatchBusy = errors.New("batch is busy")
)

// ConflictError represents a resource conflict with details about the existing resource
type ConflictError struct {
	Message      string // Human-readable error message
	ResourceType string // Type of resource (batch, node, record)
	ResourceID   string // ID of the existing/conflicting resource
}

// Error implements the error interface
func (e *ConflictError) Error() string {
	return e.Message
}

// StatusCode implements the HTTPError interface
func (e *ConflictError) StatusCode() int {
	return http.StatusConflict
}

// Is allows errors.Is() to match against ErrConflict
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// ScanLimitError is the single aggregate error of a scan that hit the file ceiling.
// The scan yields no nodes when this is returned.
type ScanLimitError struct {
	Limit int
	Found int // files discovered before the walk stopped
}

func (e *ScanLimitError) Error() string {
	return fmt.Sprintf("selection contains more than %d files", e.Limit)
}

func (e *ScanLimitError) StatusCode() int {
	return http.StatusUnprocessableEntity
}

func (e *ScanLimitError) Is(target error) bool {
	return target == ErrTooManyFiles
}

// StoreError wraps a rejected upsert from the project store.
// The batch is left untouched so the caller can retry.
type StoreError struct {
	ProjectID string
	Err       error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("project store rejected records for project %s: %v", e.ProjectID, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) StatusCode() int {
	return http.StatusBadGateway
}
