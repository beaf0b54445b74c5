package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vinayprograms/automationkit/envelope"
	"github.com/vinayprograms/automationkit/logging"
)

// WebSocketTransport is the client side of the duplex platform connection.
// It keeps one connection open, reconnecting with backoff when it drops.
type WebSocketTransport struct {
	config WebSocketConfig
	log    *logging.Logger

	recv    chan *Inbound
	send    chan []byte
	done    chan struct{}
	stopped chan struct{}

	mu      sync.Mutex
	closed  bool
	running bool
}

// WebSocketConfig holds WebSocket transport configuration.
type WebSocketConfig struct {
	Config

	// URL is the platform WebSocket endpoint (ws:// or wss://).
	URL string

	// Token is sent as a bearer token when dialing.
	Token string

	// Registration is written as the first message of every connection.
	Registration []byte

	// OnRegistered is called after the registration is written on a new
	// connection.
	OnRegistered func()

	// WriteTimeout for write operations.
	WriteTimeout time.Duration

	// MaxMessageSize limits incoming message size.
	MaxMessageSize int64

	// PingInterval for keepalive pings (0 = disabled). When enabled, a
	// connection that stays silent for two intervals is considered dead.
	PingInterval time.Duration

	// MinBackoff and MaxBackoff bound the delay between reconnect attempts.
	MinBackoff time.Duration
	MaxBackoff time.Duration

	// Dialer used to connect. Default: websocket.DefaultDialer.
	Dialer *websocket.Dialer

	// Logger for connection events. Default: logging.New().
	Logger *logging.Logger
}

// DefaultWebSocketConfig returns configuration with sensible defaults.
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		Config:         DefaultConfig(),
		WriteTimeout:   10 * time.Second,
		MaxMessageSize: 10 * 1024 * 1024,
		PingInterval:   30 * time.Second,
		MinBackoff:     500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
	}
}

// NewWebSocketTransport creates a transport. Nothing is dialed until Run.
func NewWebSocketTransport(cfg WebSocketConfig) *WebSocketTransport {
	def := DefaultWebSocketConfig()
	if cfg.RecvBufferSize <= 0 {
		cfg.RecvBufferSize = def.RecvBufferSize
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = def.SendBufferSize
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = def.MinBackoff
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = cfg.MinBackoff
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}

	return &WebSocketTransport{
		config:  cfg,
		log:     log.WithComponent("transport"),
		recv:    make(chan *Inbound, cfg.RecvBufferSize),
		send:    make(chan []byte, cfg.SendBufferSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Recv returns the channel of inbound requests. It is closed when Run returns.
func (t *WebSocketTransport) Recv() <-chan *Inbound {
	return t.recv
}

// Send queues an envelope for delivery. Envelopes queued while the
// connection is down are written after the next reconnect.
func (t *WebSocketTransport) Send(ctx context.Context, env *envelope.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return ErrClosed
	}

	select {
	case t.send <- data:
		return nil
	case <-t.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run connects and serves the connection until ctx is cancelled or Close is
// called, reconnecting with capped exponential backoff in between.
func (t *WebSocketTransport) Run(ctx context.Context) error {
	t.mu.Lock()
	if t.closed || t.running {
		t.mu.Unlock()
		return ErrClosed
	}
	t.running = true
	t.mu.Unlock()

	defer close(t.stopped)
	defer close(t.recv)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-t.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	backoff := t.config.MinBackoff
	for {
		conn, err := t.dial(ctx)
		if err == nil {
			backoff = t.config.MinBackoff
			err = t.serve(ctx, conn)
		}
		if t.stopping(ctx) {
			return nil
		}

		t.log.Warn("Connection to platform lost, reconnecting", map[string]interface{}{
			"error":   errString(err),
			"backoff": backoff.String(),
		})

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil
		case <-t.done:
			return nil
		}
		backoff *= 2
		if backoff > t.config.MaxBackoff {
			backoff = t.config.MaxBackoff
		}
	}
}

// Close stops the transport. Queued envelopes are written before the
// connection is closed when Run is active.
func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	running := t.running
	close(t.done)
	t.mu.Unlock()

	if running {
		<-t.stopped
	}
	return nil
}

func (t *WebSocketTransport) stopping(ctx context.Context) bool {
	select {
	case <-t.done:
		return true
	default:
		return ctx.Err() != nil
	}
}

func (t *WebSocketTransport) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if t.config.Token != "" {
		header.Set("Authorization", "Bearer "+t.config.Token)
	}

	conn, _, err := t.config.Dialer.DialContext(ctx, t.config.URL, header)
	if err != nil {
		return nil, err
	}
	if t.config.MaxMessageSize > 0 {
		conn.SetReadLimit(t.config.MaxMessageSize)
	}
	t.log.Info("Opened WebSocket connection", map[string]interface{}{"url": t.config.URL})
	return conn, nil
}

// serve runs one connection until it fails or the transport stops.
func (t *WebSocketTransport) serve(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()

	if len(t.config.Registration) > 0 {
		if err := t.write(conn, websocket.TextMessage, t.config.Registration); err != nil {
			return err
		}
		if t.config.OnRegistered != nil {
			t.config.OnRegistered()
		}
	}

	if t.config.PingInterval > 0 {
		wait := 2 * t.config.PingInterval
		conn.SetReadDeadline(time.Now().Add(wait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wait))
		})
	}

	readErr := make(chan error, 1)
	readerDone := make(chan struct{})
	connDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		readErr <- t.readLoop(ctx, conn, connDone)
	}()

	err := t.writeLoop(ctx, conn, readErr)
	if t.stopping(ctx) {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
	}
	close(connDone)
	conn.Close()
	<-readerDone
	return err
}

// readLoop parses inbound messages onto the recv channel.
func (t *WebSocketTransport) readLoop(ctx context.Context, conn *websocket.Conn, connDone <-chan struct{}) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if t.config.PingInterval > 0 {
			conn.SetReadDeadline(time.Now().Add(2 * t.config.PingInterval))
		}

		in, err := ParseInbound(data)
		if err != nil {
			t.log.Warn("Ignoring inbound message", map[string]interface{}{"error": err.Error()})
			continue
		}

		select {
		case t.recv <- in:
		case <-ctx.Done():
			return ctx.Err()
		case <-t.done:
			return ErrClosed
		case <-connDone:
			return nil
		}
	}
}

// writeLoop is the only writer of data frames on conn. It returns nil when
// the transport stops and the read error when the connection fails.
func (t *WebSocketTransport) writeLoop(ctx context.Context, conn *websocket.Conn, readErr <-chan error) error {
	ticker := t.pingTicker()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.drainSendQueue(conn)
			return nil
		case <-t.done:
			t.drainSendQueue(conn)
			return nil
		case err := <-readErr:
			return err
		case <-ticker.C:
			if err := t.write(conn, websocket.PingMessage, nil); err != nil {
				return err
			}
		case data := <-t.send:
			if err := t.write(conn, websocket.TextMessage, data); err != nil {
				t.requeue(data)
				return err
			}
		}
	}
}

// pingTicker creates a ticker for keepalive pings.
func (t *WebSocketTransport) pingTicker() *time.Ticker {
	if t.config.PingInterval > 0 {
		return time.NewTicker(t.config.PingInterval)
	}
	ticker := time.NewTicker(time.Hour)
	ticker.Stop()
	return ticker
}

// drainSendQueue writes remaining envelopes before shutdown.
func (t *WebSocketTransport) drainSendQueue(conn *websocket.Conn) {
	for {
		select {
		case data := <-t.send:
			if err := t.write(conn, websocket.TextMessage, data); err != nil {
				t.log.Warn("Dropping queued envelope on shutdown", map[string]interface{}{"error": err.Error()})
				return
			}
		default:
			return
		}
	}
}

// requeue puts back an envelope whose write failed so the next connection
// can deliver it.
func (t *WebSocketTransport) requeue(data []byte) {
	select {
	case t.send <- data:
	default:
		t.log.Warn("Send queue full, dropping envelope")
	}
}

func (t *WebSocketTransport) write(conn *websocket.Conn, messageType int, data []byte) error {
	if t.config.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(t.config.WriteTimeout))
	}
	return conn.WriteMessage(messageType, data)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
