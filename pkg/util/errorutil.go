package util

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared by the service and the HTTP error translator.
const (
	CodeValidationFailed      = "VALIDATION_FAILED"
	CodeNotFound              = "NOT_FOUND"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeForbidden             = "FORBIDDEN"
	CodeConflict              = "CONFLICT"
	CodeInternal              = "INTERNAL_ERROR"
	CodeDuplicateUser         = "DUPLICATE_USER"
	CodeUserNotFound          = "USER_NOT_FOUND"
	CodeStoreError            = "STORE_ERROR"
	CodeGateError             = "GATE_ERROR"
	CodeAuthContextError      = "AUTH_CONTEXT_ERROR"
	CodePasswordResetRequired = "PASSWORD_RESET_REQUIRED"
)

// Sentinels for errors.Is checks; matching is by Code only.
var (
	ErrDuplicateUser    = &DomainError{Code: CodeDuplicateUser}
	ErrUserNotFound     = &DomainError{Code: CodeUserNotFound}
	ErrStore            = &DomainError{Code: CodeStoreError}
	ErrGate             = &DomainError{Code: CodeGateError}
	ErrAuthContext      = &DomainError{Code: CodeAuthContextError}
	ErrValidationFailed = &DomainError{Code: CodeValidationFailed}
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError of the same kind.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewDuplicateUser reports a create on an existing fully-qualified name.
func NewDuplicateUser(fqn string) error {
	return &DomainError{
		Code:       CodeDuplicateUser,
		Message:    fmt.Sprintf("user %s already exists", fqn),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"user": fqn},
	}
}

// NewUserNotFound reports an update or lookup on a missing user.
func NewUserNotFound(fqn string) error {
	return &DomainError{
		Code:       CodeUserNotFound,
		Message:    fmt.Sprintf("user %s not found", fqn),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"user": fqn},
	}
}

// NewCurrentUserMissing reports an authenticated identity with no backing record.
func NewCurrentUserMissing(fqn string) error {
	return &DomainError{
		Code:       CodeUserNotFound,
		Message:    fmt.Sprintf("authenticated user %s has no record", fqn),
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"user": fqn, "integrity": true},
	}
}

// NewStoreError wraps a persistence failure. key may be empty for collection reads.
func NewStoreError(op, key string, err error) error {
	details := map[string]any{"operation": op}
	if key != "" {
		details["user"] = key
	}
	return &DomainError{
		Code:       CodeStoreError,
		Message:    fmt.Sprintf("user store %s failed", op),
		HTTPStatus: http.StatusServiceUnavailable,
		Details:    details,
		Err:        err,
	}
}

// NewGateError wraps a failure reading or persisting the reset flag.
func NewGateError(op string, err error) error {
	return &DomainError{
		Code:       CodeGateError,
		Message:    fmt.Sprintf("reset gate %s failed", op),
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"operation": op},
		Err:        err,
	}
}

func NewAuthContextError(message string) error {
	return NewDomainError(CodeAuthContextError, message, http.StatusUnauthorized, nil)
}

func NewPasswordResetRequired() error {
	return NewDomainError(CodePasswordResetRequired, "administrator password must be reset before continuing", http.StatusForbidden, nil)
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		if de, ok := NewStoreError("request", "", err).(*DomainError); ok {
			return de
		}
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}
