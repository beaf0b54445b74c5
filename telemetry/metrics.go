// Package telemetry provides metrics and tracing for the automation client.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vinayprograms/automationkit/message"
)

// Operation types.
const (
	OperationCommand = "command"
	OperationEvent   = "event"
)

// Message types counted per outbound envelope.
const (
	MessageSlackUsers    = "slack_users"
	MessageSlackChannels = "slack_channels"
	MessageSlackResponse = "slack_response"
	MessageIngester      = "ingester"
)

// Metrics holds the client's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	messages          *prometheus.CounterVec
	registrations     prometheus.Counter
	shutdownHooks     *prometheus.CounterVec
}

// NewMetrics creates the collectors under namespace (default
// "automation_client").
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "automation_client"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of handled commands and events.",
			},
			[]string{"operation", "type", "status"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of command and event handlers.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
			},
			[]string{"type"},
		),
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_total",
				Help:      "Total number of outbound messages by destination type.",
			},
			[]string{"message_type"},
		),
		registrations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "registrations_total",
				Help:      "Total number of successful registrations with the platform.",
			},
		),
		shutdownHooks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "shutdown_hooks_total",
				Help:      "Total number of shutdown hooks run.",
			},
			[]string{"status"},
		),
	}

	m.registry.MustRegister(
		m.operations,
		m.operationDuration,
		m.messages,
		m.registrations,
		m.shutdownHooks,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler exposing the metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordOperation counts one handler invocation.
func (m *Metrics) RecordOperation(opType, name string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.operations.WithLabelValues(name, opType, status).Inc()
	m.operationDuration.WithLabelValues(opType).Observe(duration.Seconds())
}

// RecordMessage counts one outbound message, typed by where it was sent.
func (m *Metrics) RecordMessage(dests []message.Destination) {
	m.messages.WithLabelValues(MessageType(dests)).Inc()
}

// RecordRegistration counts a successful registration.
func (m *Metrics) RecordRegistration() {
	m.registrations.Inc()
}

// RecordShutdownHook counts a completed shutdown hook.
func (m *Metrics) RecordShutdownHook(failed bool) {
	status := "success"
	if failed {
		status = "failure"
	}
	m.shutdownHooks.WithLabelValues(status).Inc()
}

// MessageType classifies a send by its destinations. The last chat
// destination decides; users win over channels within one destination. A
// send without chat destinations is an ingester message when it targets
// custom events and a response otherwise.
func MessageType(dests []message.Destination) string {
	typ := MessageSlackResponse
	for _, d := range dests {
		switch d := d.(type) {
		case message.ChatDestination:
			typ = chatMessageType(d)
		case *message.ChatDestination:
			if d != nil {
				typ = chatMessageType(*d)
			}
		case message.CustomEventDestination, *message.CustomEventDestination:
			typ = MessageIngester
		}
	}
	return typ
}

func chatMessageType(d message.ChatDestination) string {
	switch {
	case len(d.Users) > 0:
		return MessageSlackUsers
	case len(d.Channels) > 0:
		return MessageSlackChannels
	default:
		return MessageSlackResponse
	}
}
