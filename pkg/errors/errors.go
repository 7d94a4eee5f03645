package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard error types
var (
	ErrNotFound          = errors.New("resource not found")
	ErrBadRequest        = errors.New("bad request")
	ErrConflict          = errors.New("resource conflict")
	ErrInternal          = errors.New("internal server error")
	ErrValidation        = errors.New("validation error")
	ErrInvalidGeometry   = errors.New("invalid geometry")
	ErrDuplicateLot      = errors.New("duplicate lot number")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidState      = errors.New("invalid state")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       "CONFLICT",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// InvalidGeometry reports a non-positive dimension, length or density passed
// to the conversion engine. The offending field is recorded in Details.
func InvalidGeometry(field string, message string) *AppError {
	return &AppError{
		Err:        ErrInvalidGeometry,
		Code:       "INVALID_GEOMETRY",
		Message:    "invalid geometry: " + message,
		StatusCode: http.StatusBadRequest,
		Details:    map[string]string{field: message},
	}
}

// DuplicateLot reports an explicit lot number collision.
func DuplicateLot(lotNumber string) *AppError {
	return &AppError{
		Err:        ErrDuplicateLot,
		Code:       "DUPLICATE_LOT",
		Message:    fmt.Sprintf("lot number %s already exists", lotNumber),
		StatusCode: http.StatusConflict,
		Details:    map[string]string{"lot_number": lotNumber},
	}
}

// InsufficientStock reports an issue or downward edit/delete that would drive
// an item's stock negative.
func InsufficientStock(itemID string, message string) *AppError {
	return &AppError{
		Err:        ErrInsufficientStock,
		Code:       "INSUFFICIENT_STOCK",
		Message:    message,
		StatusCode: http.StatusConflict,
		Details:    map[string]string{"item_id": itemID},
	}
}

// InvalidState reports a structurally impossible operation, such as deleting a
// receipt movement that later issues already consumed.
func InvalidState(message string) *AppError {
	return &AppError{
		Err:        ErrInvalidState,
		Code:       "INVALID_STATE",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
