// Package registry holds the command and event handlers of an automation
// client and builds the registration payload announcing them to the platform.
package registry

import (
	"context"
	"errors"
	"regexp"

	"github.com/vinayprograms/automationkit/envelope"
	"github.com/vinayprograms/automationkit/message"
)

// Common errors.
var (
	ErrInvalidName    = errors.New("invalid handler name")
	ErrNoHandler      = errors.New("handler function is required")
	ErrDuplicateName  = errors.New("duplicate handler name")
	ErrNoSubscription = errors.New("event handler requires a subscription")
	ErrOperationName  = errors.New("event name must match the subscription operation name")
)

var subscriptionOperation = regexp.MustCompile(`^\s*subscription\s+([_A-Za-z][_0-9A-Za-z]*)`)

// Messenger sends messages on behalf of a handler.
type Messenger interface {
	// Send delivers msg to dests. Without destinations a command response
	// goes back to where the command came from.
	Send(ctx context.Context, msg message.Message, opts message.Options, dests ...message.Destination) error

	// Respond answers the request in the place it came from.
	Respond(ctx context.Context, msg message.Message, opts message.Options) error
}

// CommandFunc handles a command invocation.
type CommandFunc func(ctx context.Context, req *envelope.CommandRequest, msgs Messenger) error

// EventFunc handles an event.
type EventFunc func(ctx context.Context, req *envelope.EventRequest, msgs Messenger) error

// Parameter declares an argument a user supplies to a command.
type Parameter struct {
	Name        string
	Description string
	DisplayName string

	// Pattern the value must match. Sent to the platform as its source text.
	Pattern *regexp.Regexp

	// ValidInput describes acceptable values to users.
	ValidInput string

	Required     bool
	DefaultValue string

	// MinLength and MaxLength bound the value length; zero means unbounded.
	MinLength int
	MaxLength int
}

// MappedParameter is an argument the platform fills in from context, such
// as the repository linked to the invoking channel.
type MappedParameter struct {
	Name     string `json:"name"`
	URI      string `json:"uri"`
	Required bool   `json:"required"`
}

// Secret is a credential the platform resolves and delivers with a request.
type Secret struct {
	Name string
	Path string
}

// Tag labels a command.
type Tag struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CommandHandler describes a command the client can run.
type CommandHandler struct {
	Name             string
	Description      string
	Intent           []string
	Tags             []Tag
	Parameters       []Parameter
	MappedParameters []MappedParameter
	Secrets          []Secret
	Handle           CommandFunc
}

// EventHandler describes a subscription the client handles.
type EventHandler struct {
	// Name is the operation name of the subscription. Inbound events are
	// routed by it.
	Name         string
	Description  string
	Subscription string
	Secrets      []Secret
	Handle       EventFunc
}

// Validate checks the handler declaration.
func (h *CommandHandler) Validate() error {
	if h.Name == "" {
		return ErrInvalidName
	}
	if h.Handle == nil {
		return ErrNoHandler
	}
	seen := make(map[string]bool, len(h.Parameters)+len(h.MappedParameters))
	for _, p := range h.Parameters {
		if p.Name == "" {
			return ErrInvalidName
		}
		if seen[p.Name] {
			return ErrDuplicateName
		}
		seen[p.Name] = true
	}
	for _, p := range h.MappedParameters {
		if p.Name == "" {
			return ErrInvalidName
		}
		if seen[p.Name] {
			return ErrDuplicateName
		}
		seen[p.Name] = true
	}
	return nil
}

// Validate checks the handler declaration.
func (h *EventHandler) Validate() error {
	if h.Name == "" {
		return ErrInvalidName
	}
	if h.Subscription == "" {
		return ErrNoSubscription
	}
	m := subscriptionOperation.FindStringSubmatch(h.Subscription)
	if m == nil || m[1] != h.Name {
		return ErrOperationName
	}
	if h.Handle == nil {
		return ErrNoHandler
	}
	return nil
}
