// Package errors defines the sentinel errors shared across the navigator and
// an AppError type that carries an HTTP status alongside a wrapped sentinel.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidConfig marks a configuration error, for example BM25
	// parameters outside their valid range. It is raised at construction
	// time only, never while serving a query.
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrInvalidDocument   = errors.New("invalid document")
	ErrDuplicateDocument = errors.New("duplicate document id")
	ErrSnapshotCorrupt   = errors.New("index snapshot corrupt")
	ErrSnapshotMismatch  = errors.New("index snapshot incompatible")
	ErrRebuildInProgress = errors.New("index rebuild in progress")
	ErrInvalidInput      = errors.New("invalid input")
	ErrRateLimited       = errors.New("rate limit exceeded")
	ErrInternal          = errors.New("internal error")
	ErrTimeout           = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Is reports whether any error in err's chain matches target. It saves
// callers from importing both this package and the standard one.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is errors.As re-exported for the same reason as Is.
func As(err error, target any) bool {
	return errors.As(err, target)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrInvalidDocument),
		errors.Is(err, ErrDuplicateDocument):
		return http.StatusBadRequest
	case errors.Is(err, ErrRebuildInProgress):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
