// Package errors defines the error taxonomy shared by the domain aggregates
// and the orchestration layer.
package errors

import (
	"errors"
	"fmt"
)

// Standard error codes for the application.
const (
	CodeUnknown             = "UNKNOWN"
	CodeValidation          = "VALIDATION"
	CodeInvalidState        = "INVALID_STATE_TRANSITION"
	CodeIncompatibleContent = "INCOMPATIBLE_CONTENT"
	CodeMaxRetries          = "MAX_RETRIES_EXCEEDED"
	CodeAuthExchange        = "AUTH_EXCHANGE"
	CodePersistence         = "PERSISTENCE"
)

// ApplicationError is the interface that all our custom errors implement.
type ApplicationError interface {
	error
	Code() string
	Unwrap() error
}

// Error represents a basic application error.
type Error struct {
	code    string
	message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}

	return e.message
}

func (e *Error) Code() string {
	return e.code
}

func (e *Error) Unwrap() error {
	return e.err
}

// Code returns the application error code carried by err,
// or CodeUnknown if it doesn't carry one.
func Code(err error) string {
	var appErr ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Code()
	}

	return CodeUnknown
}

// ValidationError reports malformed constructor or method arguments.
// It is synchronous and never retried.
type ValidationError struct {
	base Error
}

func (e *ValidationError) Error() string {
	return e.base.Error()
}

func (e *ValidationError) Code() string {
	return e.base.Code()
}

func (e *ValidationError) Unwrap() error {
	return e.base.Unwrap()
}

func NewValidationError(message string, cause error) error {
	return &ValidationError{
		base: Error{
			code:    CodeValidation,
			message: message,
			err:     cause,
		},
	}
}

func Validationf(format string, args ...any) error {
	return NewValidationError(fmt.Sprintf(format, args...), nil)
}

// InvalidStateTransitionError reports an operation attempted from the wrong
// aggregate status. This is a programmer error and must never be swallowed.
type InvalidStateTransitionError struct {
	base Error
}

func (e *InvalidStateTransitionError) Error() string {
	return e.base.Error()
}

func (e *InvalidStateTransitionError) Code() string {
	return e.base.Code()
}

func (e *InvalidStateTransitionError) Unwrap() error {
	return e.base.Unwrap()
}

func NewInvalidStateTransitionError(operation, from string) error {
	return &InvalidStateTransitionError{
		base: Error{
			code:    CodeInvalidState,
			message: fmt.Sprintf("cannot %s from status %q", operation, from),
		},
	}
}

// IncompatibleContentError reports a content/model capability mismatch
// detected at request creation time.
type IncompatibleContentError struct {
	base Error
}

func (e *IncompatibleContentError) Error() string {
	return e.base.Error()
}

func (e *IncompatibleContentError) Code() string {
	return e.base.Code()
}

func (e *IncompatibleContentError) Unwrap() error {
	return e.base.Unwrap()
}

func NewIncompatibleContentError(message string) error {
	return &IncompatibleContentError{
		base: Error{
			code:    CodeIncompatibleContent,
			message: message,
		},
	}
}

// MaxRetriesExceededError is terminal. The caller must escalate instead of
// retrying further.
type MaxRetriesExceededError struct {
	base Error
}

func (e *MaxRetriesExceededError) Error() string {
	return e.base.Error()
}

func (e *MaxRetriesExceededError) Code() string {
	return e.base.Code()
}

func (e *MaxRetriesExceededError) Unwrap() error {
	return e.base.Unwrap()
}

func NewMaxRetriesExceededError(attempts int) error {
	return &MaxRetriesExceededError{
		base: Error{
			code:    CodeMaxRetries,
			message: fmt.Sprintf("maximum retry attempts (%d) exceeded", attempts),
		},
	}
}

// AuthExchangeError reports an OAuth collaborator failure. It is caught at
// the AuthManager boundary, logged, and converted to a sentinel return.
type AuthExchangeError struct {
	base Error
}

func (e *AuthExchangeError) Error() string {
	return e.base.Error()
}

func (e *AuthExchangeError) Code() string {
	return e.base.Code()
}

func (e *AuthExchangeError) Unwrap() error {
	return e.base.Unwrap()
}

func NewAuthExchangeError(message string, cause error) error {
	return &AuthExchangeError{
		base: Error{
			code:    CodeAuthExchange,
			message: message,
			err:     cause,
		},
	}
}

// PersistenceError reports a storage read/write failure. It propagates from
// the calling AuthManager method as a false return, not a panic.
type PersistenceError struct {
	base Error
}

func (e *PersistenceError) Error() string {
	return e.base.Error()
}

func (e *PersistenceError) Code() string {
	return e.base.Code()
}

func (e *PersistenceError) Unwrap() error {
	return e.base.Unwrap()
}

func NewPersistenceError(message string, cause error) error {
	return &PersistenceError{
		base: Error{
			code:    CodePersistence,
			message: message,
			err:     cause,
		},
	}
}
