package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Scoping errors. Every context resolution and scoped write failure maps to
// exactly one of these; nothing else leaves the engine.
var (
	ErrNoOrganizationSelected   = New("NO_ORGANIZATION_SELECTED", http.StatusBadRequest, "no organization selected")
	ErrOrganizationMismatch     = New("ORGANIZATION_MISMATCH", http.StatusForbidden, "selected organization does not match membership")
	ErrNoCurrentTerm            = New("NO_CURRENT_TERM", http.StatusConflict, "organization has no current term")
	ErrTermOrganizationMismatch = New("TERM_ORGANIZATION_MISMATCH", http.StatusForbidden, "term does not belong to the selected organization")
	ErrInsufficientRole         = New("INSUFFICIENT_ROLE", http.StatusForbidden, "insufficient role")
	ErrCrossTenantReference     = New("CROSS_TENANT_REFERENCE", http.StatusConflict, "entity references data outside the active organization")
	ErrTermPromotionConflict    = New("TERM_PROMOTION_CONFLICT", http.StatusConflict, "concurrent term promotion detected, retry")
)

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
)

// ErrCacheMiss signals an absent cached value. It never reaches the response
// boundary; callers fall through to the primary store.
var ErrCacheMiss = errors.New("cache miss")

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
