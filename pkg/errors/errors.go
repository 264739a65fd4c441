// Package errors defines the engine's failure vocabulary. Callers classify
// failures with errors.Is against the sentinels; the gateway translates them
// to HTTP statuses via HTTPStatusCode.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Core indexing and query failures.
var (
	// ErrCounterUnavailable means the durable document-id counter could not
	// be reached or the atomic increment could not be applied.
	ErrCounterUnavailable = errors.New("id counter unavailable")
	// ErrStorage means a read or write against the document store or term
	// index failed after the call began.
	ErrStorage = errors.New("storage operation failed")
	// ErrIndexingIncomplete means a document id was allocated but one of the
	// subsequent writes failed; the id is burned and never reused.
	ErrIndexingIncomplete = errors.New("indexing incomplete")
	// ErrDocumentNotFound means a point lookup found no document record.
	ErrDocumentNotFound = errors.New("document not found")
)

// Request-surface failures.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnregisteredClient = errors.New("unregistered client")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrTimeout            = errors.New("operation timed out")
	ErrInternal           = errors.New("internal error")
)

// AppError carries a sentinel plus a caller-facing message and explicit
// status code, for paths where the sentinel's default mapping is wrong.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// New wraps a sentinel with an explicit status code and message.
func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{Err: sentinel, Message: message, StatusCode: statusCode}
}

// Newf is New with a formatted message.
func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return New(sentinel, statusCode, fmt.Sprintf(format, args...))
}

// statusBySentinel maps each sentinel to its default HTTP status.
var statusBySentinel = []struct {
	err    error
	status int
}{
	{ErrDocumentNotFound, http.StatusNotFound},
	{ErrInvalidInput, http.StatusBadRequest},
	{ErrUnregisteredClient, http.StatusUnauthorized},
	{ErrRateLimited, http.StatusTooManyRequests},
	{ErrCounterUnavailable, http.StatusServiceUnavailable},
	{ErrTimeout, http.StatusServiceUnavailable},
}

// HTTPStatusCode resolves err to an HTTP status. An explicit AppError wins;
// otherwise the sentinel chain decides, defaulting to 500.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	for _, m := range statusBySentinel {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}
