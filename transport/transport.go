// Package transport moves envelopes between an automation client and the
// platform.
package transport

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/vinayprograms/automationkit/envelope"
)

// Common errors.
var (
	ErrClosed         = errors.New("transport closed")
	ErrUnknownPayload = errors.New("unknown inbound payload")
)

// Sender delivers outbound envelopes.
type Sender interface {
	// Send delivers (or queues for delivery) one envelope.
	// Returns ErrClosed if the sender is closed.
	Send(ctx context.Context, env *envelope.Envelope) error
}

// Inbound is a request received from the platform. Exactly one of Command
// and Event is set.
type Inbound struct {
	Command *envelope.CommandRequest
	Event   *envelope.EventRequest

	// Raw contains the original bytes.
	Raw json.RawMessage
}

// Request returns the parsed request.
func (in *Inbound) Request() envelope.Request {
	if in.Command != nil {
		return in.Command
	}
	return in.Event
}

// ParseInbound parses a platform payload. Payloads with a command name are
// commands, payloads with an operation name in their extensions are events;
// anything else is ErrUnknownPayload.
func ParseInbound(data []byte) (*Inbound, error) {
	var probe struct {
		Command    string `json:"command"`
		Extensions *struct {
			OperationName string `json:"operationName"`
		} `json:"extensions"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}

	in := &Inbound{Raw: append(json.RawMessage(nil), data...)}
	switch {
	case probe.Command != "":
		var cmd envelope.CommandRequest
		if err := json.Unmarshal(data, &cmd); err != nil {
			return nil, err
		}
		in.Command = &cmd
	case probe.Extensions != nil && probe.Extensions.OperationName != "":
		var ev envelope.EventRequest
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		in.Event = &ev
	default:
		return nil, ErrUnknownPayload
	}
	return in, nil
}

// Config holds common transport configuration.
type Config struct {
	// RecvBufferSize is the size of the receive channel buffer.
	// Default: 100
	RecvBufferSize int

	// SendBufferSize is the size of the internal send buffer.
	// Default: 100
	SendBufferSize int
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		RecvBufferSize: 100,
		SendBufferSize: 100,
	}
}
