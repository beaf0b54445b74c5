// Package bus carries outbound envelopes between an automation client and
// the platform over a publish/subscribe message bus.
package bus

import (
	"errors"
	"strings"
)

// Common errors.
var (
	ErrClosed         = errors.New("bus closed")
	ErrInvalidSubject = errors.New("invalid subject")
)

// DefaultSubjectPrefix is the first token of every automation subject.
const DefaultSubjectPrefix = "automation"

// Message represents a message received from the bus.
type Message struct {
	// Subject the message was published to.
	Subject string

	// Data is the message payload.
	Data []byte
}

// MessageBus provides fan-out publish/subscribe messaging.
type MessageBus interface {
	// Publish sends a message to all subscribers of a subject.
	Publish(subject string, data []byte) error

	// Subscribe creates a subscription to a subject.
	Subscribe(subject string) (Subscription, error)

	// Close shuts down the bus connection.
	Close() error
}

// Subscription represents an active subscription.
type Subscription interface {
	// Messages returns the channel for incoming messages.
	// Channel is closed when subscription ends.
	Messages() <-chan *Message

	// Unsubscribe cancels the subscription.
	Unsubscribe() error
}

// Config holds common bus configuration.
type Config struct {
	// BufferSize for subscription channels.
	// Default: 256
	BufferSize int
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BufferSize: 256,
	}
}

// ValidateSubject checks if a subject can be published to. Subjects are
// dot-separated, non-empty tokens without whitespace or wildcards.
func ValidateSubject(subject string) error {
	if subject == "" {
		return ErrInvalidSubject
	}
	for _, tok := range strings.Split(subject, ".") {
		if tok == "" || tok == "*" || tok == ">" || strings.ContainsAny(tok, " \t\r\n") {
			return ErrInvalidSubject
		}
	}
	return nil
}

// RequestSubject returns the subject inbound commands and events are
// published on: "<prefix>.requests".
func RequestSubject(prefix string) string {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return prefix + ".requests"
}

// ResponseSubject returns the subject responses for a team are published on:
// "<prefix>.<team>.responses". An empty prefix means DefaultSubjectPrefix.
func ResponseSubject(prefix, team string) string {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if team == "" {
		team = "_"
	}
	return prefix + "." + team + ".responses"
}
