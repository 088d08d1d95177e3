// Package apperr defines the error taxonomy shared by the verification
// services and translated to HTTP statuses at the handler boundary.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError reports client-correctable input problems (bad size,
// shape, or type). Always maps to a 4xx response.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// PreconditionError reports valid input rejected because the current
// state forbids the operation (reviewing a terminal tenant, duplicate
// open appeal).
type PreconditionError struct {
	Msg string
}

func (e *PreconditionError) Error() string { return e.Msg }

// Preconditionf builds a PreconditionError from a format string.
func Preconditionf(format string, args ...interface{}) error {
	return &PreconditionError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports an unknown tenant, document, or appeal id.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

// NotFound builds a NotFoundError for the named resource.
func NotFound(resource string) error {
	return &NotFoundError{Resource: resource}
}

// ErrConcurrencyConflict is returned when the optimistic-lock retry
// budget is exhausted. The whole operation is safe to retry.
var ErrConcurrencyConflict = errors.New("concurrent update conflict, please retry")

// StorageError wraps a document-storage collaborator failure. The
// enclosing operation aborts without leaving a partial record behind.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string { return "document storage failed: " + e.Err.Error() }
func (e *StorageError) Unwrap() error { return e.Err }

// Storage wraps err as a StorageError, tagged with the failed step.
func Storage(op string, err error) error {
	return &StorageError{Err: fmt.Errorf("%s: %w", op, err)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsPrecondition reports whether err is a PreconditionError.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsStorage reports whether err wraps a StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// HTTPStatus maps a service error to the response status code.
func HTTPStatus(err error) int {
	switch {
	case IsValidation(err):
		return http.StatusBadRequest
	case IsPrecondition(err), errors.Is(err, ErrConcurrencyConflict):
		return http.StatusConflict
	case IsNotFound(err):
		return http.StatusNotFound
	case IsStorage(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing message for err. Validation and
// precondition errors surface verbatim; storage errors get a generic
// "try again" message; everything else is masked.
func Message(err error) string {
	switch {
	case IsValidation(err), IsPrecondition(err), IsNotFound(err), errors.Is(err, ErrConcurrencyConflict):
		return err.Error()
	case IsStorage(err):
		return "document upload failed, please try again"
	default:
		return "internal error"
	}
}
