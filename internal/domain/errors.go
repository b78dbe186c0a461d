package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
// Implementing this interface enables extensible error handling in the
// handler layer without switching on concrete types everywhere.
type HTTPError interface {
	error
	StatusCode() int
}

// Domain error types implementing HTTPError interface
type (
	// NotFoundError indicates a record was not found in the current snapshot
	NotFoundError struct {
		Message string
	}

	// ValidationError indicates invalid input (empty name, circular move,
	// move into a non-folder). Detected before any persistence call.
	ValidationError struct {
		Message string
	}
)

func (e *NotFoundError) Error() string   { return e.Message }
func (e *ValidationError) Error() string { return e.Message }

func (e *NotFoundError) StatusCode() int   { return http.StatusNotFound }
func (e *ValidationError) StatusCode() int { return http.StatusBadRequest }

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("already exists")
	ErrValidation = errors.New("validation failed")

	// ErrPersistence wraps store failures (network, driver, batch commit).
	// The store's next snapshot stays authoritative; callers surface the
	// failure and do not retry automatically.
	ErrPersistence = errors.New("persistence failed")

	// ErrStructuralIntegrity signals a parent-link cycle observed during a
	// tree walk. The walk is aborted with a safe partial result instead of
	// looping; the condition is logged as a defect.
	ErrStructuralIntegrity = errors.New("structural integrity violation")
)

func (e *NotFoundError) Is(target error) bool   { return target == ErrNotFound }
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// BatchDeleteError reports a cascade soft delete that failed after zero or
// more batches had already committed. Marked holds the ids tombstoned by the
// committed batches; those batches are not rolled back, since deleted flags
// are idempotent and the tree stays valid between batches.
type BatchDeleteError struct {
	Marked []string
	Err    error
}

func (e *BatchDeleteError) Error() string {
	if len(e.Marked) == 0 {
		return fmt.Sprintf("cascade delete failed, nothing was deleted: %v", e.Err)
	}
	return fmt.Sprintf("cascade delete partially completed (%d records marked): %v", len(e.Marked), e.Err)
}

func (e *BatchDeleteError) Unwrap() error { return e.Err }

func (e *BatchDeleteError) Is(target error) bool { return target == ErrPersistence }
