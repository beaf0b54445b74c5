package transport

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/vinayprograms/automationkit/bus"
	"github.com/vinayprograms/automationkit/envelope"
	kiterrors "github.com/vinayprograms/automationkit/errors"
	"github.com/vinayprograms/automationkit/logging"
)

// BusSender publishes envelopes as JSON on the response subject of the
// envelope's team.
type BusSender struct {
	bus    bus.MessageBus
	prefix string
}

// NewBusSender creates a sender on b. An empty prefix uses
// bus.DefaultSubjectPrefix.
func NewBusSender(b bus.MessageBus, prefix string) *BusSender {
	return &BusSender{bus: b, prefix: prefix}
}

// Send publishes env.
func (s *BusSender) Send(ctx context.Context, env *envelope.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(env)
	if err != nil {
		return kiterrors.WrapWithCode(err, kiterrors.ErrCodeSerialization, "encode envelope")
	}

	subject := bus.ResponseSubject(s.prefix, env.Team.ID)
	if err := s.bus.Publish(subject, data); err != nil {
		if errors.Is(err, bus.ErrClosed) {
			return ErrClosed
		}
		return kiterrors.WrapWithCode(err, kiterrors.ErrCodeNetworkErr, "publish envelope",
			kiterrors.WithMetadata("subject", subject))
	}
	return nil
}

// BusReceiver turns requests published on the bus into Inbound values.
type BusReceiver struct {
	sub  bus.Subscription
	recv chan *Inbound
	log  *logging.Logger
}

// NewBusReceiver subscribes to bus.RequestSubject(prefix).
func NewBusReceiver(b bus.MessageBus, prefix string, log *logging.Logger) (*BusReceiver, error) {
	sub, err := b.Subscribe(bus.RequestSubject(prefix))
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.New()
	}

	r := &BusReceiver{
		sub:  sub,
		recv: make(chan *Inbound, DefaultConfig().RecvBufferSize),
		log:  log.WithComponent("transport"),
	}
	go r.loop()
	return r, nil
}

func (r *BusReceiver) loop() {
	defer close(r.recv)
	for msg := range r.sub.Messages() {
		in, err := ParseInbound(msg.Data)
		if err != nil {
			r.log.Warn("Ignoring inbound message", map[string]interface{}{
				"subject": msg.Subject,
				"error":   err.Error(),
			})
			continue
		}
		r.recv <- in
	}
}

// Recv returns the channel of inbound requests. It is closed after Close.
func (r *BusReceiver) Recv() <-chan *Inbound {
	return r.recv
}

// Close ends the subscription.
func (r *BusReceiver) Close() error {
	return r.sub.Unsubscribe()
}
