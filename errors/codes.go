package errors

// ErrorCategory classifies errors by their nature and retry semantics.
type ErrorCategory string

// Error categories define how errors should be handled.
const (
	// CategoryTransient indicates temporary failures where retry may succeed.
	CategoryTransient ErrorCategory = "transient"

	// CategoryPermanent indicates failures where retry will not help.
	CategoryPermanent ErrorCategory = "permanent"

	// CategoryResource indicates resource exhaustion or quota issues.
	CategoryResource ErrorCategory = "resource"

	// CategoryInternal indicates unexpected errors, bugs, or system failures.
	CategoryInternal ErrorCategory = "internal"
)

// String returns the string representation of the category.
func (c ErrorCategory) String() string {
	return string(c)
}

// IsRetryable returns true if errors in this category may succeed on retry.
func (c ErrorCategory) IsRetryable() bool {
	switch c {
	case CategoryTransient, CategoryResource:
		return true
	default:
		return false
	}
}

// ErrorCode identifies specific error types within categories.
type ErrorCode string

// Error codes for common failure scenarios.
const (
	// Transient errors
	ErrCodeTimeout     ErrorCode = "TIMEOUT"     // Operation timed out
	ErrCodeUnavailable ErrorCode = "UNAVAILABLE" // Platform temporarily unavailable
	ErrCodeNetworkErr  ErrorCode = "NETWORK_ERR" // Network connectivity issue

	// Permanent errors
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"      // Resource does not exist
	ErrCodeConflict      ErrorCode = "CONFLICT"       // Conflicting operation or state
	ErrCodeInvalidInput  ErrorCode = "INVALID_INPUT"  // Malformed or invalid input
	ErrCodeUnauthorized  ErrorCode = "UNAUTHORIZED"   // Authentication failed
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS" // Resource already exists
	ErrCodeUnsupported   ErrorCode = "UNSUPPORTED"    // Operation not supported
	ErrCodeCanceled      ErrorCode = "CANCELED"       // Operation was canceled

	// Messaging errors
	ErrCodeUnsupportedDestination ErrorCode = "UNSUPPORTED_DESTINATION" // No resolvable destination
	ErrCodeMixedDestinations      ErrorCode = "MIXED_DESTINATIONS"      // Chat and event destinations mixed
	ErrCodeUnsupportedMessage     ErrorCode = "UNSUPPORTED_MESSAGE"     // Message variant not serializable
	ErrCodeSerialization          ErrorCode = "SERIALIZATION"           // Encoding failed
	ErrCodeTransportClosed        ErrorCode = "TRANSPORT_CLOSED"        // Connection to platform closed
	ErrCodeNotRegistered          ErrorCode = "NOT_REGISTERED"          // No handler for command/event

	// Resource errors
	ErrCodeRateLimit    ErrorCode = "RATE_LIMITED"  // Rate limit exceeded
	ErrCodeResourceBusy ErrorCode = "RESOURCE_BUSY" // Send queue full

	// Internal errors
	ErrCodeInternal  ErrorCode = "INTERNAL"  // Unexpected internal error
	ErrCodeAssertion ErrorCode = "ASSERTION" // Assertion/invariant violation
	ErrCodePanic     ErrorCode = "PANIC"     // Recovered from panic
)

// String returns the string representation of the error code.
func (c ErrorCode) String() string {
	return string(c)
}

// DefaultCategory returns the default category for an error code.
func (c ErrorCode) DefaultCategory() ErrorCategory {
	switch c {
	case ErrCodeTimeout, ErrCodeUnavailable, ErrCodeNetworkErr, ErrCodeTransportClosed:
		return CategoryTransient

	case ErrCodeNotFound, ErrCodeConflict, ErrCodeInvalidInput, ErrCodeUnauthorized,
		ErrCodeAlreadyExists, ErrCodeUnsupported, ErrCodeCanceled,
		ErrCodeUnsupportedDestination, ErrCodeMixedDestinations, ErrCodeUnsupportedMessage,
		ErrCodeSerialization, ErrCodeNotRegistered:
		return CategoryPermanent

	case ErrCodeRateLimit, ErrCodeResourceBusy:
		return CategoryResource

	case ErrCodeInternal, ErrCodeAssertion, ErrCodePanic:
		return CategoryInternal

	default:
		return CategoryInternal
	}
}

// DefaultRetryable returns whether this error code is typically retryable.
func (c ErrorCode) DefaultRetryable() bool {
	return c.DefaultCategory().IsRetryable()
}

var codeDescriptions = map[ErrorCode]string{
	ErrCodeTimeout:                "operation timed out",
	ErrCodeUnavailable:            "platform temporarily unavailable",
	ErrCodeNetworkErr:             "network connectivity error",
	ErrCodeNotFound:               "resource not found",
	ErrCodeConflict:               "conflicting operation",
	ErrCodeInvalidInput:           "invalid input provided",
	ErrCodeUnauthorized:           "authentication required",
	ErrCodeAlreadyExists:          "resource already exists",
	ErrCodeUnsupported:            "operation not supported",
	ErrCodeCanceled:               "operation canceled",
	ErrCodeUnsupportedDestination: "unsupported destination",
	ErrCodeMixedDestinations:      "chat and custom event destinations cannot be mixed",
	ErrCodeUnsupportedMessage:     "unsupported message type",
	ErrCodeSerialization:          "message serialization failed",
	ErrCodeTransportClosed:        "transport closed",
	ErrCodeNotRegistered:          "no handler registered",
	ErrCodeRateLimit:              "rate limit exceeded",
	ErrCodeResourceBusy:           "resource is busy",
	ErrCodeInternal:               "internal error",
	ErrCodeAssertion:              "assertion failed",
	ErrCodePanic:                  "recovered from panic",
}

// Description returns a human-readable description for the error code.
func (c ErrorCode) Description() string {
	if desc, ok := codeDescriptions[c]; ok {
		return desc
	}
	return "unknown error"
}
