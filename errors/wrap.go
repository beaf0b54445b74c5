package errors

import (
	"context"
	"errors"
	"fmt"
)

// Wrap wraps an error with additional context while preserving the error chain.
// If err is nil, Wrap returns nil.
// If err is already an *Error its code, category and request context are kept;
// otherwise the result is an internal error (or timeout/canceled for context errors).
func Wrap(err error, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}

	var ae *Error
	if errors.As(err, &ae) {
		wrapped := &Error{
			code:          ae.code,
			category:      ae.category,
			message:       message,
			cause:         err,
			metadata:      ae.Metadata(),
			retryable:     ae.retryable,
			timestamp:     ae.timestamp,
			correlationID: ae.correlationID,
			teamID:        ae.teamID,
		}
		for _, opt := range opts {
			opt(wrapped)
		}
		return wrapped
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return New(ErrCodeTimeout, message, append(opts, WithCause(err))...)
	}
	if errors.Is(err, context.Canceled) {
		return New(ErrCodeCanceled, message, append(opts, WithCause(err))...)
	}

	return New(ErrCodeInternal, message, append(opts, WithCause(err))...)
}

// WrapWithCode wraps an error with a specific error code.
func WrapWithCode(err error, code ErrorCode, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}
	opts = append(opts, WithCause(err))
	return New(code, message, opts...)
}

// AsAutomationError extracts an AutomationError from an error chain.
// Returns nil if none is found.
func AsAutomationError(err error) AutomationError {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}

// Is checks if any error in the chain has the given error code.
func Is(err error, code ErrorCode) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.code == code
	}
	return false
}

// IsCategory checks if any error in the chain has the given category.
func IsCategory(err error, category ErrorCategory) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.category == category
	}
	return false
}

// IsRetryable checks if the error is retryable.
// Errors outside the taxonomy are not retryable.
func IsRetryable(err error) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Retryable()
	}
	return false
}

// IsTransient checks if the error is transient.
func IsTransient(err error) bool {
	return IsCategory(err, CategoryTransient)
}

// IsPermanent checks if the error is permanent.
func IsPermanent(err error) bool {
	return IsCategory(err, CategoryPermanent)
}

// Code extracts the error code from an error, if available.
func Code(err error) ErrorCode {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.code
	}
	return ""
}

// RecoverPanic converts a recovered panic value into an Error.
func RecoverPanic(recovered interface{}) *Error {
	if recovered == nil {
		return nil
	}
	var message string
	switch v := recovered.(type) {
	case error:
		message = v.Error()
	case string:
		message = v
	default:
		message = fmt.Sprintf("%v", v)
	}
	return New(ErrCodePanic, message, WithMetadata("panic_value", fmt.Sprintf("%T", recovered)))
}
