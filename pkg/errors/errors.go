package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors
var (
	ErrApplicationNotFound  = errors.New("application not found")
	ErrValidation           = errors.New("validation failed")
	ErrUnauthorized         = errors.New("not authorized")
	ErrNotificationFailed   = errors.New("notification failed")
	ErrStoreFailure         = errors.New("store operation failed")
	ErrTransitionNotAllowed = errors.New("status transition not allowed")
	ErrConfirmationRequired = errors.New("transition requires confirmation")
	ErrUpdateInFlight       = errors.New("an update for this application is already in progress")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeApplicationNotFound  = "APPLICATION_NOT_FOUND"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeTransitionNotAllowed = "TRANSITION_NOT_ALLOWED"
	ErrCodeConfirmationRequired = "CONFIRMATION_REQUIRED"
	ErrCodeUpdateInFlight       = "UPDATE_IN_FLIGHT"
	ErrCodeNotificationFailed   = "NOTIFICATION_FAILED"
	ErrCodeDatabaseError        = "DATABASE_ERROR"
	ErrCodeCacheError           = "CACHE_ERROR"
	ErrCodeRateLimited          = "RATE_LIMITED"
)

// ValidationError lists every offending field of a submission.
type ValidationError struct {
	MissingFields []string `json:"missingFields,omitempty"`
	InvalidFields []string `json:"invalidFields,omitempty"`
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.MissingFields) > 0 {
		parts = append(parts, "missing required fields: "+strings.Join(e.MissingFields, ", "))
	}
	if len(e.InvalidFields) > 0 {
		parts = append(parts, "invalid fields: "+strings.Join(e.InvalidFields, ", "))
	}
	if len(parts) == 0 {
		return ErrValidation.Error()
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Empty reports whether no field failed.
func (e *ValidationError) Empty() bool {
	return len(e.MissingFields) == 0 && len(e.InvalidFields) == 0
}

// Wrap common errors with business context
func WrapApplicationNotFound(id string) *BusinessError {
	return NewBusinessError(
		ErrCodeApplicationNotFound,
		fmt.Sprintf("Application with ID %s not found", id),
		ErrApplicationNotFound,
	)
}

func WrapTransitionNotAllowed(from, to string) *BusinessError {
	return NewBusinessError(
		ErrCodeTransitionNotAllowed,
		fmt.Sprintf("Cannot move application from %s to %s", from, to),
		ErrTransitionNotAllowed,
	)
}

func WrapConfirmationRequired(from, to string) *BusinessError {
	return NewBusinessError(
		ErrCodeConfirmationRequired,
		fmt.Sprintf("Moving application from %s to %s must be confirmed", from, to),
		ErrConfirmationRequired,
	)
}

func WrapUpdateInFlight(id string) *BusinessError {
	return NewBusinessError(
		ErrCodeUpdateInFlight,
		fmt.Sprintf("Application %s is already being updated", id),
		ErrUpdateInFlight,
	)
}

func WrapNotificationFailed(applicationID string, err error) *BusinessError {
	return NewBusinessError(
		ErrCodeNotificationFailed,
		fmt.Sprintf("status email for application %s was not sent", applicationID),
		errors.Join(ErrNotificationFailed, err),
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		errors.Join(ErrStoreFailure, err),
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"Cache operation failed",
		err,
	)
}

// CodeOf returns the business code carried by err, or "" when there is none.
func CodeOf(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}
