package client

import (
	"context"
	"errors"

	"github.com/vinayprograms/automationkit/envelope"
	kiterrors "github.com/vinayprograms/automationkit/errors"
	"github.com/vinayprograms/automationkit/logging"
	"github.com/vinayprograms/automationkit/message"
	"github.com/vinayprograms/automationkit/registry"
	"github.com/vinayprograms/automationkit/telemetry"
	"github.com/vinayprograms/automationkit/transport"
)

var _ registry.Messenger = (*MessageClient)(nil)

// MessageClient sends messages in the context of one inbound request.
type MessageClient struct {
	req     envelope.Request
	builder *envelope.Builder
	sender  transport.Sender
	log     *logging.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
}

// Send builds an envelope for msg and hands it to the transport. Events
// have no place to respond to, so an event request needs destinations.
func (m *MessageClient) Send(ctx context.Context, msg message.Message, opts message.Options, dests ...message.Destination) (err error) {
	rc := m.req.Context()
	if _, isEvent := m.req.(*envelope.EventRequest); isEvent && len(dests) == 0 {
		return kiterrors.UnsupportedDestination(
			"response messages are not supported for event handlers",
			kiterrors.WithCorrelationID(rc.CorrelationID),
			kiterrors.WithTeamID(rc.Team.ID),
			kiterrors.WithMetadata("event", rc.Event))
	}

	ctx, span := m.tracer.StartSendSpan(ctx, rc)
	var env *envelope.Envelope
	defer func() { m.tracer.EndSendSpan(span, env, err) }()

	env, err = m.builder.Build(m.req, msg, opts, dests...)
	if err != nil {
		return err
	}

	if err = m.sender.Send(ctx, env); err != nil {
		if errors.Is(err, transport.ErrClosed) {
			err = kiterrors.WrapWithCode(err, kiterrors.ErrCodeTransportClosed, "sending envelope",
				kiterrors.WithCorrelationID(rc.CorrelationID),
				kiterrors.WithTeamID(rc.Team.ID))
		}
		return err
	}

	m.log.EnvelopeSent(env.ContentType, len(env.Destinations), env.ID)
	m.metrics.RecordMessage(dests)
	return nil
}

// Respond answers the request where it came from.
func (m *MessageClient) Respond(ctx context.Context, msg message.Message, opts message.Options) error {
	return m.Send(ctx, msg, opts)
}

// AddressChannels sends msg to channels in the requesting team.
func (m *MessageClient) AddressChannels(ctx context.Context, msg message.Message, opts message.Options, channels ...string) error {
	return m.Send(ctx, msg, opts, message.AddressSlack(m.req.Context().Team.ID, channels...))
}

// AddressUsers sends msg as direct messages to users in the requesting team.
func (m *MessageClient) AddressUsers(ctx context.Context, msg message.Message, opts message.Options, users ...string) error {
	return m.Send(ctx, msg, opts, message.AddressUsers(m.req.Context().Team.ID, users...))
}

// AddressEvent ingests payload as a custom event of rootType.
func (m *MessageClient) AddressEvent(ctx context.Context, payload interface{}, rootType string, opts message.Options) error {
	msg, ok := payload.(message.Message)
	if !ok {
		msg = message.CustomEvent{Payload: payload}
	}
	return m.Send(ctx, msg, opts, message.AddressEvent(rootType))
}
