// Package common defines shared constants and the error taxonomy used across
// the accounts service. Callers should use errors.Is to match error kinds.
package common

import "errors"

var (
	// Repository-level errors.
	ErrRecordNotFound = errors.New("record not found")

	// Error kinds surfaced to API callers.
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUpload       = errors.New("upload error")
	ErrInternal     = errors.New("internal error")

	// Token errors (malformed, expired, wrong signature or wrong kind).
	ErrInvalidToken = errors.New("invalid token")
)

// Error is a classified error carrying a message safe to show to API callers.
// errors.Is matches both the kind and the wrapped cause.
type Error struct {
	Kind    error
	Message string
	Details []string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

// NewError builds an Error of the given kind.
func NewError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError builds an Error of the given kind that keeps cause in the chain.
func WrapError(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func Validation(message string) *Error   { return NewError(ErrValidation, message) }
func Conflict(message string) *Error     { return NewError(ErrConflict, message) }
func NotFound(message string) *Error     { return NewError(ErrNotFound, message) }
func Unauthorized(message string) *Error { return NewError(ErrUnauthorized, message) }
func Upload(message string) *Error       { return NewError(ErrUpload, message) }
func Internal(message string) *Error     { return NewError(ErrInternal, message) }

// AsError extracts the classified error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
