// Package apperr provides the application error type shared by the stores,
// the portal service and the HTTP handlers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"workflow-portal-go/internal/models"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrorTypeValidation        ErrorType = "validation_error"
	ErrorTypeNotFound          ErrorType = "not_found"
	ErrorTypeConflict          ErrorType = "conflict"
	ErrorTypeForbidden         ErrorType = "forbidden"
	ErrorTypeInvalidTransition ErrorType = "invalid_transition"
	ErrorTypeSchemaMismatch    ErrorType = "schema_mismatch"
	ErrorTypePersistence       ErrorType = "persistence_error"
	ErrorTypeSchemaVersion     ErrorType = "schema_version"
	ErrorTypeInternal          ErrorType = "internal_error"
)

// AppError represents an application error with additional context
type AppError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    int       `json:"-"`
	Details string    `json:"details,omitempty"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

func newError(t ErrorType, code int, message string, details []string) *AppError {
	detail := ""
	if len(details) > 0 {
		detail = details[0]
	}
	return &AppError{Type: t, Message: message, Code: code, Details: detail}
}

func NewValidationError(message string, details ...string) *AppError {
	return newError(ErrorTypeValidation, http.StatusBadRequest, message, details)
}

func NewNotFoundError(message string, details ...string) *AppError {
	return newError(ErrorTypeNotFound, http.StatusNotFound, message, details)
}

func NewConflictError(message string, details ...string) *AppError {
	return newError(ErrorTypeConflict, http.StatusConflict, message, details)
}

func NewForbiddenError(message string, details ...string) *AppError {
	return newError(ErrorTypeForbidden, http.StatusForbidden, message, details)
}

func NewSchemaMismatchError(message string, details ...string) *AppError {
	return newError(ErrorTypeSchemaMismatch, http.StatusUnprocessableEntity, message, details)
}

func NewInternalError(message string, details ...string) *AppError {
	return newError(ErrorTypeInternal, http.StatusInternalServerError, message, details)
}

// NewPersistenceError wraps a failed snapshot write. The in-memory change
// that preceded it is not rolled back.
func NewPersistenceError(snapshot string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypePersistence,
		Message: "failed to persist " + snapshot,
		Code:    http.StatusServiceUnavailable,
		Err:     err,
	}
}

// NewSchemaVersionError reports a snapshot written by a newer schema.
func NewSchemaVersionError(snapshot string, got, want int) *AppError {
	return &AppError{
		Type:    ErrorTypeSchemaVersion,
		Message: "unsupported snapshot version",
		Code:    http.StatusInternalServerError,
		Details: fmt.Sprintf("%s: version %d, supported %d", snapshot, got, want),
	}
}

// FromTransition converts a state machine rejection into an AppError.
func FromTransition(err *models.InvalidTransitionError) *AppError {
	return &AppError{
		Type:    ErrorTypeInvalidTransition,
		Message: err.Error(),
		Code:    http.StatusConflict,
		Err:     err,
	}
}

// Wrap converts err to an AppError, passing AppErrors and transition
// errors through with their own type.
func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr := GetAppError(err); appErr != nil {
		return appErr
	}
	var te *models.InvalidTransitionError
	if errors.As(err, &te) {
		return FromTransition(te)
	}
	return &AppError{Type: ErrorTypeInternal, Message: "internal error", Code: http.StatusInternalServerError, Err: err}
}

// GetAppError extracts AppError from error
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

func is(err error, t ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == t
}

func IsValidation(err error) bool     { return is(err, ErrorTypeValidation) }
func IsNotFound(err error) bool       { return is(err, ErrorTypeNotFound) }
func IsConflict(err error) bool       { return is(err, ErrorTypeConflict) }
func IsForbidden(err error) bool      { return is(err, ErrorTypeForbidden) }
func IsSchemaMismatch(err error) bool { return is(err, ErrorTypeSchemaMismatch) }
func IsPersistence(err error) bool    { return is(err, ErrorTypePersistence) }
func IsSchemaVersion(err error) bool  { return is(err, ErrorTypeSchemaVersion) }

// IsInvalidTransition matches both the raw state machine error and its
// AppError form.
func IsInvalidTransition(err error) bool {
	if is(err, ErrorTypeInvalidTransition) {
		return true
	}
	var te *models.InvalidTransitionError
	return errors.As(err, &te)
}
