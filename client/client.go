package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/vinayprograms/automationkit/bus"
	"github.com/vinayprograms/automationkit/config"
	"github.com/vinayprograms/automationkit/envelope"
	kiterrors "github.com/vinayprograms/automationkit/errors"
	"github.com/vinayprograms/automationkit/logging"
	"github.com/vinayprograms/automationkit/message"
	"github.com/vinayprograms/automationkit/registry"
	"github.com/vinayprograms/automationkit/shutdown"
	"github.com/vinayprograms/automationkit/telemetry"
	"github.com/vinayprograms/automationkit/transport"
)

// ErrNoReceiver is returned by Run when the client has no inbound transport.
var ErrNoReceiver = errors.New("client has no inbound transport")

// Receiver delivers inbound requests.
type Receiver interface {
	Recv() <-chan *transport.Inbound
}

type runner interface {
	Run(ctx context.Context) error
}

type closer struct {
	name  string
	close func() error
}

// Client connects handlers in a registry to the platform.
type Client struct {
	cfg      *config.Config
	registry *registry.Registry
	log      *logging.Logger
	builder  *envelope.Builder
	sender   transport.Sender
	receiver Receiver
	metrics  *telemetry.Metrics
	tracer   *telemetry.Tracer
	provider *telemetry.Provider
	shutdown *shutdown.Coordinator

	// Closed by the "close transport" shutdown hook, in order.
	closers []closer

	metricsServer *http.Server
	metricsAddr   chan string

	mu        sync.Mutex
	accepting bool
	inflight  sync.WaitGroup
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. Default: built from the logging config.
func WithLogger(log *logging.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithTransport replaces the transports built from config.
func WithTransport(sender transport.Sender, receiver Receiver) Option {
	return func(c *Client) {
		c.sender = sender
		c.receiver = receiver
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithTracer sets the tracer used for handler and send spans.
func WithTracer(t *telemetry.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// WithBuilder sets the envelope builder.
func WithBuilder(b *envelope.Builder) Option {
	return func(c *Client) { c.builder = b }
}

// WithShutdown sets the coordinator the client registers its hooks with.
func WithShutdown(s *shutdown.Coordinator) Option {
	return func(c *Client) { c.shutdown = s }
}

// New creates a client for the handlers in reg. Unless WithTransport is
// given, the transports are built from cfg: a WebSocket to the platform
// when transport.url is set, and NATS when nats.url is set. With both,
// requests arrive over the WebSocket and responses are published on NATS.
//
// The registration payload is built here, so handlers must be registered
// in reg before New is called.
func New(cfg *config.Config, reg *registry.Registry, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if reg == nil {
		reg = registry.New()
	}

	c := &Client{
		cfg:       cfg,
		registry:  reg,
		accepting: true,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.log == nil {
		c.log = logging.New()
		c.log.SetLevel(logging.ParseLevel(cfg.Logging.Level))
		c.log.SetJSON(cfg.Logging.JSON)
	}
	if c.builder == nil {
		c.builder = envelope.NewBuilder()
	}
	if c.metrics == nil {
		c.metrics = telemetry.NewMetrics("")
	}
	if c.tracer == nil {
		if err := c.initTracing(); err != nil {
			return nil, err
		}
	}
	if c.shutdown == nil {
		c.shutdown = shutdown.NewCoordinator(shutdown.Config{
			ForceExitTimeout: cfg.ForceExitTimeout(),
			Logger:           c.log,
			OnProgress: func(hr shutdown.HookResult) {
				c.metrics.RecordShutdownHook(hr.Err != nil)
			},
		})
	}
	if c.sender == nil {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if err := c.initTransport(); err != nil {
			return nil, err
		}
	}
	if cfg.Metrics.Listen != "" {
		c.metricsServer = &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           c.metrics.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		c.metricsAddr = make(chan string, 1)
	}

	c.log = c.log.WithComponent("client")
	return c, nil
}

func (c *Client) initTracing() error {
	if c.cfg.Tracing.Endpoint == "" {
		c.tracer = telemetry.GetTracer()
		return nil
	}
	p, err := telemetry.InitProvider(context.Background(), telemetry.ProviderConfig{
		ServiceName:    c.cfg.Name,
		ServiceVersion: c.cfg.Version,
		Environment:    c.cfg.Environment,
		Endpoint:       c.cfg.Tracing.Endpoint,
		Protocol:       c.cfg.Tracing.Protocol,
		Insecure:       c.cfg.Tracing.Insecure,
		Debug:          logging.ParseLevel(c.cfg.Logging.Level) == logging.LevelDebug,
	})
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	c.provider = p
	c.tracer = p.Tracer()
	return nil
}

func (c *Client) initTransport() error {
	var ws *transport.WebSocketTransport
	if c.cfg.Transport.URL != "" {
		payload, err := c.Registration()
		if err != nil {
			return err
		}
		wsCfg := transport.DefaultWebSocketConfig()
		wsCfg.URL = c.cfg.Transport.URL
		wsCfg.Token = c.cfg.Transport.Token
		wsCfg.Registration = payload
		wsCfg.PingInterval = c.cfg.PingInterval()
		wsCfg.WriteTimeout = c.cfg.WriteTimeout()
		wsCfg.Logger = c.log
		wsCfg.OnRegistered = c.metrics.RecordRegistration
		ws = transport.NewWebSocketTransport(wsCfg)

		c.sender, c.receiver = ws, ws
		c.closers = append(c.closers, closer{"websocket", ws.Close})
	}

	if c.cfg.NATS.URL == "" {
		return nil
	}
	natsCfg := bus.DefaultNATSConfig()
	natsCfg.URL = c.cfg.NATS.URL
	natsCfg.Name = c.cfg.Name
	natsCfg.Logger = c.log
	nb, err := bus.NewNATSBus(natsCfg)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	c.sender = transport.NewBusSender(nb, c.cfg.NATS.SubjectPrefix)
	if ws == nil {
		r, err := transport.NewBusReceiver(nb, c.cfg.NATS.SubjectPrefix, c.log)
		if err != nil {
			nb.Close()
			return fmt.Errorf("subscribing to requests: %w", err)
		}
		c.receiver = r
		c.closers = append(c.closers, closer{"bus receiver", r.Close})
	}
	c.closers = append(c.closers, closer{"nats", nb.Close})
	return nil
}

// Registration returns the payload announcing the registered handlers.
func (c *Client) Registration() ([]byte, error) {
	return c.registry.Payload(c.cfg.Name, c.cfg.Version, c.cfg.Workspaces)
}

// Shutdown returns the coordinator the client registers its hooks with.
func (c *Client) Shutdown() *shutdown.Coordinator {
	return c.shutdown
}

// Metrics returns the client's metrics collector.
func (c *Client) Metrics() *telemetry.Metrics {
	return c.metrics
}

// MetricsAddr returns the address the metrics endpoint listens on once
// Run has started it. Empty when metrics are disabled.
func (c *Client) MetricsAddr(ctx context.Context) string {
	if c.metricsAddr == nil {
		return ""
	}
	select {
	case addr := <-c.metricsAddr:
		c.metricsAddr <- addr
		return addr
	case <-ctx.Done():
		return ""
	}
}

// Run starts the transports and dispatches inbound requests until ctx is
// cancelled or the receiver closes. Each request runs on its own goroutine.
func (c *Client) Run(ctx context.Context) error {
	if c.receiver == nil {
		return ErrNoReceiver
	}

	if c.metricsServer != nil {
		if err := c.serveMetrics(); err != nil {
			return err
		}
	}
	if r, ok := c.receiver.(runner); ok {
		go func() {
			if err := r.Run(ctx); err != nil {
				c.log.Error("Transport stopped", map[string]interface{}{"error": err.Error()})
			}
		}()
	}

	c.log.Info("Client started", map[string]interface{}{
		"name":     c.cfg.Name,
		"version":  c.cfg.Version,
		"commands": len(c.registry.Commands()),
		"events":   len(c.registry.Events()),
	})

	recv := c.receiver.Recv()
	for {
		select {
		case <-ctx.Done():
			return nil
		case in, ok := <-recv:
			if !ok {
				return nil
			}
			if !c.begin() {
				c.log.Warn("Rejecting request during shutdown")
				continue
			}
			go func() {
				defer c.inflight.Done()
				if err := c.Dispatch(ctx, in); err != nil {
					c.logDispatchError(err)
				}
			}()
		}
	}
}

// logDispatchError reports a failed request. Handler outcomes are already
// logged; transient failures are raised to a warning since the platform
// may deliver the request again.
func (c *Client) logDispatchError(err error) {
	fields := map[string]interface{}{
		"error": err.Error(),
		"code":  string(kiterrors.Code(err)),
	}
	if kiterrors.IsTransient(err) {
		c.log.Warn("Dispatch failed with transient error", fields)
		return
	}
	c.log.Debug("Dispatch failed", fields)
}

func (c *Client) serveMetrics() error {
	ln, err := net.Listen("tcp", c.metricsServer.Addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	c.metricsAddr <- ln.Addr().String()
	go func() {
		if err := c.metricsServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.log.Error("Metrics server failed", map[string]interface{}{"error": err.Error()})
		}
	}()
	c.log.Info("Serving metrics", map[string]interface{}{"addr": ln.Addr().String()})
	return nil
}

// begin counts a request as in flight unless the client stopped accepting.
func (c *Client) begin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.accepting {
		return false
	}
	c.inflight.Add(1)
	return true
}

// Dispatch routes an inbound request to its handler.
func (c *Client) Dispatch(ctx context.Context, in *transport.Inbound) error {
	switch {
	case in == nil:
		return transport.ErrUnknownPayload
	case in.Command != nil:
		return c.handleCommand(ctx, in.Command)
	case in.Event != nil:
		return c.handleEvent(ctx, in.Event)
	default:
		return transport.ErrUnknownPayload
	}
}

func (c *Client) handleCommand(ctx context.Context, req *envelope.CommandRequest) error {
	log := c.log.WithCorrelationID(req.CorrelationID)
	h, err := c.registry.Command(req.Command)
	if err != nil {
		log.Warn("No handler for command", map[string]interface{}{"command": req.Command})
		c.metrics.RecordOperation(telemetry.OperationCommand, req.Command, 0, err)
		return err
	}

	msgs := c.messages(req, log)
	if err := h.CheckParameters(req); err != nil {
		c.metrics.RecordOperation(telemetry.OperationCommand, req.Command, 0, err)
		if rerr := msgs.Respond(ctx, message.PlainText(err.Error()), message.Options{}); rerr != nil {
			log.Warn("Failed to report invalid parameters", map[string]interface{}{"error": rerr.Error()})
		}
		return err
	}

	return c.invoke(ctx, telemetry.OperationCommand, req.Command, req.Context(), log, func(ctx context.Context) error {
		return h.Handle(ctx, req, msgs)
	})
}

func (c *Client) handleEvent(ctx context.Context, req *envelope.EventRequest) error {
	log := c.log.WithCorrelationID(req.Extensions.CorrelationID)
	op := req.Extensions.OperationName
	h, err := c.registry.Event(op)
	if err != nil {
		log.Warn("No handler for event", map[string]interface{}{"event": op})
		c.metrics.RecordOperation(telemetry.OperationEvent, op, 0, err)
		return err
	}

	msgs := c.messages(req, log)
	return c.invoke(ctx, telemetry.OperationEvent, op, req.Context(), log, func(ctx context.Context) error {
		return h.Handle(ctx, req, msgs)
	})
}

// invoke runs a handler inside a span, recovering panics into PANIC errors.
func (c *Client) invoke(ctx context.Context, kind, name string, rc envelope.RequestContext, log *logging.Logger, fn func(context.Context) error) (err error) {
	ctx, span := c.tracer.StartHandlerSpan(ctx, kind, name, rc)
	log.HandlerStart(kind, name)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = kiterrors.RecoverPanic(r)
		}
		d := time.Since(start)
		log.HandlerComplete(kind, name, d, err)
		c.metrics.RecordOperation(kind, name, d, err)
		c.tracer.EndHandlerSpan(span, err)
	}()

	return fn(ctx)
}

func (c *Client) messages(req envelope.Request, log *logging.Logger) *MessageClient {
	return &MessageClient{
		req:     req,
		builder: c.builder,
		sender:  c.sender,
		log:     log,
		metrics: c.metrics,
		tracer:  c.tracer,
	}
}

// Messages returns a MessageClient answering req outside a handler.
func (c *Client) Messages(req envelope.Request) *MessageClient {
	return c.messages(req, c.log.WithCorrelationID(req.Context().CorrelationID))
}
