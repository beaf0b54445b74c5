// Package errors provides the structured error taxonomy used across
// automationkit. Every failure that crosses a package boundary (envelope
// construction, transport delivery, handler dispatch) is reported as an
// *Error carrying a code, a category and optional request context.
//
// # Error Categories
//
// Errors are classified into four categories:
//
//   - Transient: Temporary failures where retry may succeed (connection drops, timeouts)
//   - Permanent: Failures where retry will not help (unsupported destination, bad input)
//   - Resource: Resource exhaustion issues (rate limits, full send queues)
//   - Internal: Unexpected errors indicating bugs
//
// # Error Codes
//
// Codes specific to outbound messaging:
//
//   - UNSUPPORTED_DESTINATION: a response had nowhere to go
//   - MIXED_DESTINATIONS: chat and custom event destinations in one send
//   - UNSUPPORTED_MESSAGE: the message could not be serialized
//   - TRANSPORT_CLOSED: the connection to the platform is gone
//
// # Usage
//
//	err := errors.New(errors.ErrCodeUnsupportedDestination,
//	    "response messages are not supported for event handlers",
//	    errors.WithCorrelationID(req.CorrelationID))
//
//	if errors.Is(err, errors.ErrCodeUnsupportedDestination) {
//	    // ...
//	}
//
// Errors marshal to JSON so they can be attached to handler results sent
// back to the platform.
package errors
