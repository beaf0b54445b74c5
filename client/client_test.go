package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinayprograms/automationkit/config"
	"github.com/vinayprograms/automationkit/envelope"
	kiterrors "github.com/vinayprograms/automationkit/errors"
	"github.com/vinayprograms/automationkit/logging"
	"github.com/vinayprograms/automationkit/message"
	"github.com/vinayprograms/automationkit/registry"
	"github.com/vinayprograms/automationkit/shutdown"
	"github.com/vinayprograms/automationkit/transport"
)

type chanReceiver chan *transport.Inbound

func (r chanReceiver) Recv() <-chan *transport.Inbound { return r }

func slackSource() *envelope.Destination {
	return &envelope.Destination{
		UserAgent: message.SlackUserAgent,
		Slack: &envelope.SlackAddress{
			Team:    envelope.Ref{ID: "T1"},
			Channel: &envelope.Ref{ID: "C1", Name: "general"},
			User:    &envelope.Ref{ID: "U1"},
		},
	}
}

func helloRequest(name string) *transport.Inbound {
	req := &envelope.CommandRequest{
		CorrelationID: "corr-1",
		Team:          envelope.Team{ID: "T1"},
		Command:       "HelloWorld",
		Source:        slackSource(),
	}
	if name != "" {
		req.Parameters = []envelope.Arg{{Name: "name", Value: name}}
	}
	return &transport.Inbound{Command: req}
}

func pushEvent() *transport.Inbound {
	return &transport.Inbound{Event: &envelope.EventRequest{
		Data: json.RawMessage(`{"Push":[{"sha":"abc"}]}`),
		Extensions: envelope.EventExtensions{
			OperationName: "OnPush",
			TeamID:        "T1",
			CorrelationID: "corr-2",
		},
	}}
}

func newTestClient(t *testing.T, reg *registry.Registry, sender transport.Sender, receiver Receiver) *Client {
	t.Helper()
	coord := shutdown.NewCoordinator(shutdown.Config{
		Exit:   func(int) {},
		Logger: logging.Nop(),
	})
	c, err := New(config.Default(), reg,
		WithTransport(sender, receiver),
		WithLogger(logging.Nop()),
		WithShutdown(coord),
	)
	require.NoError(t, err)
	return c
}

func mustRegisterCommand(t *testing.T, reg *registry.Registry, fn registry.CommandFunc) {
	t.Helper()
	h, err := registry.NewCommand("HelloWorld").
		Description("say hello").
		PatternParameter("name", `^\w+$`).
		Handle(fn).
		Build()
	require.NoError(t, err)
	require.NoError(t, reg.RegisterCommand(h))
}

func mustRegisterEvent(t *testing.T, reg *registry.Registry, fn registry.EventFunc) {
	t.Helper()
	h, err := registry.NewEvent("OnPush", "subscription OnPush { Push { sha } }").
		Handle(fn).
		Build()
	require.NoError(t, err)
	require.NoError(t, reg.RegisterEvent(h))
}

func operations(c *Client, expected string) error {
	const header = `
# HELP automation_client_operations_total Total number of handled commands and events.
# TYPE automation_client_operations_total counter
`
	return testutil.GatherAndCompare(c.Metrics().Registry(), strings.NewReader(header+expected),
		"automation_client_operations_total")
}

func TestDispatch_CommandResponds(t *testing.T) {
	reg := registry.New()
	mustRegisterCommand(t, reg, func(ctx context.Context, req *envelope.CommandRequest, msgs registry.Messenger) error {
		name, _ := req.Parameter("name")
		return msgs.Respond(ctx, message.PlainText("Hello "+name), message.Options{})
	})
	sender := &transport.RecordingSender{}
	c := newTestClient(t, reg, sender, nil)

	require.NoError(t, c.Dispatch(context.Background(), helloRequest("ada")))

	envs := sender.Envelopes()
	require.Len(t, envs, 1)
	assert.Equal(t, "Hello ada", envs[0].Body)
	assert.Equal(t, "corr-1", envs[0].CorrelationID)
	require.Len(t, envs[0].Destinations, 1)
	assert.Nil(t, envs[0].Destinations[0].Slack.User, "responses go to the channel, not the user")

	assert.NoError(t, operations(c, `
automation_client_operations_total{operation="HelloWorld",status="success",type="command"} 1
`))
}

func TestDispatch_UnknownCommand(t *testing.T) {
	sender := &transport.RecordingSender{}
	c := newTestClient(t, registry.New(), sender, nil)

	err := c.Dispatch(context.Background(), helloRequest("ada"))
	assert.True(t, kiterrors.Is(err, kiterrors.ErrCodeNotRegistered))
	assert.Empty(t, sender.Envelopes())

	assert.NoError(t, operations(c, `
automation_client_operations_total{operation="HelloWorld",status="failure",type="command"} 1
`))
}

func TestDispatch_InvalidParametersAreReported(t *testing.T) {
	var called atomic.Bool
	reg := registry.New()
	mustRegisterCommand(t, reg, func(ctx context.Context, req *envelope.CommandRequest, msgs registry.Messenger) error {
		called.Store(true)
		return nil
	})
	sender := &transport.RecordingSender{}
	c := newTestClient(t, reg, sender, nil)

	err := c.Dispatch(context.Background(), helloRequest(""))
	assert.True(t, kiterrors.Is(err, kiterrors.ErrCodeInvalidInput))
	assert.False(t, called.Load())

	envs := sender.Envelopes()
	require.Len(t, envs, 1)
	assert.Equal(t, envelope.ContentTypePlainText, envs[0].ContentType)
	assert.Contains(t, envs[0].Body, "name")
}

func TestDispatch_PanicIsRecovered(t *testing.T) {
	reg := registry.New()
	mustRegisterCommand(t, reg, func(ctx context.Context, req *envelope.CommandRequest, msgs registry.Messenger) error {
		panic("boom")
	})
	c := newTestClient(t, reg, &transport.RecordingSender{}, nil)

	err := c.Dispatch(context.Background(), helloRequest("ada"))
	require.Error(t, err)
	assert.True(t, kiterrors.Is(err, kiterrors.ErrCodePanic))
	assert.Contains(t, err.Error(), "boom")
}

func TestDispatch_UnknownPayload(t *testing.T) {
	c := newTestClient(t, registry.New(), &transport.RecordingSender{}, nil)
	assert.ErrorIs(t, c.Dispatch(context.Background(), &transport.Inbound{}), transport.ErrUnknownPayload)
	assert.ErrorIs(t, c.Dispatch(context.Background(), nil), transport.ErrUnknownPayload)
}

func TestDispatch_EventCannotRespond(t *testing.T) {
	var respondErr error
	reg := registry.New()
	mustRegisterEvent(t, reg, func(ctx context.Context, req *envelope.EventRequest, msgs registry.Messenger) error {
		respondErr = msgs.Respond(ctx, message.PlainText("hi"), message.Options{})
		return nil
	})
	sender := &transport.RecordingSender{}
	c := newTestClient(t, reg, sender, nil)

	require.NoError(t, c.Dispatch(context.Background(), pushEvent()))
	assert.True(t, kiterrors.Is(respondErr, kiterrors.ErrCodeUnsupportedDestination))
	assert.Empty(t, sender.Envelopes())
}

func TestMessageClient_EventAddressing(t *testing.T) {
	sender := &transport.RecordingSender{}
	c := newTestClient(t, registry.New(), sender, nil)
	msgs := c.Messages(pushEvent().Event)
	ctx := context.Background()

	require.NoError(t, msgs.AddressChannels(ctx, message.PlainText("pushed"), message.Options{}, "general"))
	require.NoError(t, msgs.AddressUsers(ctx, message.PlainText("pushed"), message.Options{}, "ada"))
	require.NoError(t, msgs.AddressEvent(ctx, map[string]string{"sha": "abc"}, "PushSummary", message.Options{}))

	envs := sender.Envelopes()
	require.Len(t, envs, 3)

	assert.Equal(t, "general", envs[0].Destinations[0].Slack.Channel.Name)
	assert.Equal(t, "T1", envs[0].Destinations[0].Slack.Team.ID)
	assert.Equal(t, "ada", envs[1].Destinations[0].Slack.User.Name)

	assert.Equal(t, envelope.ContentTypeJSON, envs[2].ContentType)
	assert.JSONEq(t, `{"sha":"abc"}`, envs[2].Body)
	assert.Equal(t, "PushSummary", envs[2].Destinations[0].Ingester.RootType)
	assert.NotEmpty(t, envs[2].ID)
}

func TestMessageClient_ClosedTransport(t *testing.T) {
	sender := &transport.RecordingSender{Err: transport.ErrClosed}
	c := newTestClient(t, registry.New(), sender, nil)

	err := c.Messages(helloRequest("ada").Command).Respond(context.Background(), message.PlainText("hi"), message.Options{})
	assert.True(t, kiterrors.Is(err, kiterrors.ErrCodeTransportClosed))
	assert.ErrorIs(t, err, transport.ErrClosed)
}

func TestMessageClient_SendErrorPassesThrough(t *testing.T) {
	boom := errors.New("boom")
	c := newTestClient(t, registry.New(), &transport.RecordingSender{Err: boom}, nil)

	err := c.Messages(helloRequest("ada").Command).Respond(context.Background(), message.PlainText("hi"), message.Options{})
	assert.ErrorIs(t, err, boom)
}

func TestRun_NoReceiver(t *testing.T) {
	c := newTestClient(t, registry.New(), &transport.RecordingSender{}, nil)
	assert.ErrorIs(t, c.Run(context.Background()), ErrNoReceiver)
}

func TestRun_StopAcceptingWaitsForHandlers(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	reg := registry.New()
	mustRegisterCommand(t, reg, func(ctx context.Context, req *envelope.CommandRequest, msgs registry.Messenger) error {
		close(started)
		<-release
		return msgs.Respond(ctx, message.PlainText("done"), message.Options{})
	})

	recv := make(chanReceiver, 2)
	sender := &transport.RecordingSender{}
	c := newTestClient(t, reg, sender, recv)
	c.RegisterShutdownHooks()
	assert.Equal(t, []string{"stop accepting work", "close transport"}, c.Shutdown().Hooks())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- c.Run(ctx) }()

	recv <- helloRequest("ada")
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not start")
	}

	drained := make(chan *shutdown.ShutdownResult, 1)
	go func() {
		res, _ := c.Shutdown().Drain(context.Background())
		drained <- res
	}()

	select {
	case <-drained:
		t.Fatal("drain finished while a handler was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case res := <-drained:
		assert.Equal(t, 0, res.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("drain did not finish")
	}
	require.Len(t, sender.Envelopes(), 1)

	// Requests after the drain are not dispatched.
	recv <- helloRequest("bob")
	close(recv)
	select {
	case err := <-runDone:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Len(t, sender.Envelopes(), 1)
}

func TestNew_RequiresTransportConfig(t *testing.T) {
	_, err := New(config.Default(), registry.New(), WithLogger(logging.Nop()))
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestNew_WebSocketFromConfig(t *testing.T) {
	reg := registry.New()
	mustRegisterCommand(t, reg, func(ctx context.Context, req *envelope.CommandRequest, msgs registry.Messenger) error {
		return nil
	})
	cfg := config.Default()
	cfg.Transport.URL = "ws://127.0.0.1:1/ws"
	cfg.Transport.Token = "secret"
	cfg.Workspaces = []string{"T1"}

	c, err := New(cfg, reg, WithLogger(logging.Nop()))
	require.NoError(t, err)
	_, ok := c.receiver.(*transport.WebSocketTransport)
	assert.True(t, ok)

	payload, err := c.Registration()
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"team_ids":["T1"]`)
	assert.Contains(t, string(payload), `"HelloWorld"`)

	status, err := c.closeTransports(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, status)
}

func TestLogDispatchError_WarnsOnTransient(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New()
	log.SetOutput(&buf)
	log.SetJSON(true)
	log.SetLevel(logging.LevelWarn)

	c, err := New(config.Default(), registry.New(),
		WithTransport(&transport.RecordingSender{}, nil),
		WithLogger(log),
	)
	require.NoError(t, err)

	c.logDispatchError(kiterrors.NotRegistered("Missing"))
	assert.Empty(t, buf.String())

	c.logDispatchError(kiterrors.New(kiterrors.ErrCodeTransportClosed, "closed"))
	assert.Contains(t, buf.String(), "transient")
	assert.Contains(t, buf.String(), "TRANSPORT_CLOSED")
}
