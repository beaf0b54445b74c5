package errors

import (
	"encoding/json"
	"fmt"
	"time"
)

// AutomationError is the interface for all structured errors in automationkit.
type AutomationError interface {
	error

	// Code returns the specific error code identifying the failure type.
	Code() ErrorCode

	// Category returns the error category for retry/handling decisions.
	Category() ErrorCategory

	// Retryable returns true if the operation may succeed on retry.
	Retryable() bool

	// Metadata returns additional context as key-value pairs.
	Metadata() map[string]string

	// Unwrap returns the underlying error, if any.
	Unwrap() error
}

// Error is the concrete implementation of AutomationError.
type Error struct {
	code          ErrorCode
	category      ErrorCategory
	message       string
	cause         error
	metadata      map[string]string
	retryable     *bool // nil means use default based on category
	timestamp     time.Time
	correlationID string
	teamID        string
}

var (
	_ AutomationError  = (*Error)(nil)
	_ json.Marshaler   = (*Error)(nil)
	_ json.Unmarshaler = (*Error)(nil)
)

// Error returns the error message.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Code returns the error code.
func (e *Error) Code() ErrorCode {
	return e.code
}

// Category returns the error category.
func (e *Error) Category() ErrorCategory {
	return e.category
}

// Retryable returns whether this error is retryable.
func (e *Error) Retryable() bool {
	if e.retryable != nil {
		return *e.retryable
	}
	return e.category.IsRetryable()
}

// Metadata returns a copy of the error metadata.
func (e *Error) Metadata() map[string]string {
	result := make(map[string]string, len(e.metadata))
	for k, v := range e.metadata {
		result[k] = v
	}
	return result
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// Timestamp returns when the error occurred.
func (e *Error) Timestamp() time.Time {
	return e.timestamp
}

// CorrelationID returns the correlation id of the request that failed, if set.
func (e *Error) CorrelationID() string {
	return e.correlationID
}

// TeamID returns the team the failing request belonged to, if set.
func (e *Error) TeamID() string {
	return e.teamID
}

type errorJSON struct {
	Code          ErrorCode         `json:"code"`
	Category      ErrorCategory     `json:"category"`
	Message       string            `json:"message"`
	Cause         string            `json:"cause,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Retryable     bool              `json:"retryable"`
	Timestamp     string            `json:"timestamp,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	TeamID        string            `json:"team_id,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (e *Error) MarshalJSON() ([]byte, error) {
	j := errorJSON{
		Code:          e.code,
		Category:      e.category,
		Message:       e.message,
		Metadata:      e.metadata,
		Retryable:     e.Retryable(),
		CorrelationID: e.correlationID,
		TeamID:        e.teamID,
	}
	if e.cause != nil {
		j.Cause = e.cause.Error()
	}
	if !e.timestamp.IsZero() {
		j.Timestamp = e.timestamp.Format(time.RFC3339Nano)
	}
	return json.Marshal(j)
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Error) UnmarshalJSON(data []byte) error {
	var j errorJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	e.code = j.Code
	e.category = j.Category
	e.message = j.Message
	e.metadata = j.Metadata
	e.correlationID = j.CorrelationID
	e.teamID = j.TeamID
	r := j.Retryable
	e.retryable = &r
	if j.Cause != "" {
		e.cause = fmt.Errorf("%s", j.Cause)
	}
	if j.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339Nano, j.Timestamp); err == nil {
			e.timestamp = t
		}
	}
	return nil
}

// Option is a functional option for configuring an Error.
type Option func(*Error)

// WithRetryable explicitly sets whether the error is retryable.
func WithRetryable(retryable bool) Option {
	return func(e *Error) {
		e.retryable = &retryable
	}
}

// WithMetadata adds a metadata key-value pair.
func WithMetadata(key, value string) Option {
	return func(e *Error) {
		if e.metadata == nil {
			e.metadata = make(map[string]string)
		}
		e.metadata[key] = value
	}
}

// WithCorrelationID records the correlation id of the originating request.
func WithCorrelationID(id string) Option {
	return func(e *Error) {
		e.correlationID = id
	}
}

// WithTeamID records the team of the originating request.
func WithTeamID(id string) Option {
	return func(e *Error) {
		e.teamID = id
	}
}

// WithTimestamp sets a custom timestamp.
func WithTimestamp(t time.Time) Option {
	return func(e *Error) {
		e.timestamp = t
	}
}

// WithCause sets the underlying cause.
func WithCause(cause error) Option {
	return func(e *Error) {
		e.cause = cause
	}
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string, opts ...Option) *Error {
	e := &Error{
		code:      code,
		category:  code.DefaultCategory(),
		message:   message,
		timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FromCode creates an error with the default description for the code.
func FromCode(code ErrorCode, opts ...Option) *Error {
	return New(code, code.Description(), opts...)
}

// UnsupportedDestination creates an unsupported destination error.
func UnsupportedDestination(message string, opts ...Option) *Error {
	return New(ErrCodeUnsupportedDestination, message, opts...)
}

// InvalidInput creates an invalid input error.
func InvalidInput(message string, opts ...Option) *Error {
	return New(ErrCodeInvalidInput, message, opts...)
}

// NotRegistered creates an error for a command or event without a handler.
func NotRegistered(name string, opts ...Option) *Error {
	opts = append([]Option{WithMetadata("handler", name)}, opts...)
	return New(ErrCodeNotRegistered, fmt.Sprintf("no handler registered for %s", name), opts...)
}

// Internal creates an internal error.
func Internal(message string, opts ...Option) *Error {
	return New(ErrCodeInternal, message, opts...)
}
