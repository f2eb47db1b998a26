// Package errors provides the typed error taxonomy shared by services and handlers
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// AppError is the base interface for all typed application errors
type AppError interface {
	error
	HTTPStatus() int
	Code() string
}

// BaseError is the base implementation of AppError
type BaseError struct {
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	ErrorCode  string `json:"code"`
}

func (e *BaseError) Error() string {
	return e.Message
}

func (e *BaseError) HTTPStatus() int {
	return e.StatusCode
}

func (e *BaseError) Code() string {
	return e.ErrorCode
}

// NotFoundError represents a missing or inactive entity
type NotFoundError struct {
	BaseError
	Resource string
}

func NewNotFoundError(resource string) *NotFoundError {
	return &NotFoundError{
		BaseError: BaseError{
			Message:    fmt.Sprintf("%s not found", resource),
			StatusCode: http.StatusNotFound,
			ErrorCode:  "NOT_FOUND",
		},
		Resource: resource,
	}
}

// ValidationError represents a missing or malformed field.
// Fields carries per-field messages when more than one field failed.
type ValidationError struct {
	BaseError
	Field  string
	Fields map[string]string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		BaseError: BaseError{
			Message:    message,
			StatusCode: http.StatusBadRequest,
			ErrorCode:  "VALIDATION_ERROR",
		},
		Field: field,
	}
}

// NewValidationErrors builds a ValidationError from a field → message map
func NewValidationErrors(fields map[string]string) *ValidationError {
	e := NewValidationError("", "invalid request")
	e.Fields = fields
	return e
}

// PermissionDeniedError represents an authenticated caller lacking the role
type PermissionDeniedError struct {
	BaseError
	Action   string
	Resource string
}

func NewPermissionDeniedError(action, resource string) *PermissionDeniedError {
	return &PermissionDeniedError{
		BaseError: BaseError{
			Message:    "permission denied",
			StatusCode: http.StatusForbidden,
			ErrorCode:  "PERMISSION_DENIED",
		},
		Action:   action,
		Resource: resource,
	}
}

// UnauthorizedError represents an authentication error
type UnauthorizedError struct {
	BaseError
}

func NewUnauthorizedError(message string) *UnauthorizedError {
	if message == "" {
		message = "authentication required"
	}
	return &UnauthorizedError{
		BaseError: BaseError{
			Message:    message,
			StatusCode: http.StatusUnauthorized,
			ErrorCode:  "UNAUTHORIZED",
		},
	}
}

// InternalError wraps an unexpected failure. Only the generic message
// reaches the client; the original error stays server-side.
type InternalError struct {
	BaseError
	OriginalError error
}

func NewInternalError(original error) *InternalError {
	return &InternalError{
		BaseError: BaseError{
			Message:    "internal server error",
			StatusCode: http.StatusInternalServerError,
			ErrorCode:  "INTERNAL_ERROR",
		},
		OriginalError: original,
	}
}

func (e *InternalError) Unwrap() error {
	return e.OriginalError
}

// ConflictError represents a unique constraint violation (cpf, email).
// It is reported as 400 with a descriptive message.
type ConflictError struct {
	BaseError
	Resource string
	Field    string
}

func NewConflictError(resource, field string) *ConflictError {
	return &ConflictError{
		BaseError: BaseError{
			Message:    fmt.Sprintf("%s with this %s already exists", resource, field),
			StatusCode: http.StatusBadRequest,
			ErrorCode:  "CONFLICT",
		},
		Resource: resource,
		Field:    field,
	}
}

// RateLimitError represents too many attempts from one client
type RateLimitError struct {
	BaseError
	RetryAfterSeconds int
}

func NewRateLimitError(retryAfterSeconds int) *RateLimitError {
	return &RateLimitError{
		BaseError: BaseError{
			Message:    "too many attempts, try again later",
			StatusCode: http.StatusTooManyRequests,
			ErrorCode:  "RATE_LIMITED",
		},
		RetryAfterSeconds: retryAfterSeconds,
	}
}

// ToHTTPError converts any error to an appropriate HTTP response
func ToHTTPError(err error) (int, map[string]interface{}) {
	if err == nil {
		return http.StatusOK, nil
	}

	var ve *ValidationError
	if stderrors.As(err, &ve) {
		body := map[string]interface{}{
			"error":   ve.Code(),
			"message": ve.Error(),
		}
		if len(ve.Fields) > 0 {
			body["details"] = ve.Fields
		} else if ve.Field != "" {
			body["details"] = map[string]string{ve.Field: ve.Error()}
		}
		return ve.HTTPStatus(), body
	}

	var ae AppError
	if stderrors.As(err, &ae) {
		return ae.HTTPStatus(), map[string]interface{}{
			"error":   ae.Code(),
			"message": ae.Error(),
		}
	}

	// Default to internal server error for unknown errors
	return http.StatusInternalServerError, map[string]interface{}{
		"error":   "INTERNAL_ERROR",
		"message": "internal server error",
	}
}

// IsNotFound reports whether err is a NotFoundError
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return stderrors.As(err, &nf)
}

// IsConflict reports whether err is a ConflictError
func IsConflict(err error) bool {
	var ce *ConflictError
	return stderrors.As(err, &ce)
}
