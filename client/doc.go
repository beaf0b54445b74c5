// Package client runs an automation client: it receives commands and events
// from the platform, dispatches them to the handlers in a registry and sends
// their messages back.
//
// # Overview
//
//	           ┌───────────────┐  Inbound   ┌──────────┐   handler   ┌──────────┐
//	platform ─▶│   Receiver    │──────────▶ │  Client  │ ──────────▶ │ registry │
//	           └───────────────┘            └──────────┘             └──────────┘
//	                                             │ MessageClient
//	           ┌───────────────┐  Envelope  ┌──────────┐
//	platform ◀─│    Sender     │◀───────────│ Builder  │
//	           └───────────────┘            └──────────┘
//
// # Usage
//
//	reg := registry.New()
//	reg.RegisterCommand(hello)
//
//	c, err := client.New(cfg, reg)
//	if err != nil {
//	    return err
//	}
//	c.RegisterShutdownHooks()
//	c.Shutdown().HandleSignals()
//	return c.Run(ctx)
//
// # Handlers
//
// Each request runs on its own goroutine with a span, a log line on start
// and completion, and an operation metric. Command parameters are checked
// against their declarations before the handler runs; a failure is answered
// with a plain text message and the handler is skipped. Panics are recovered
// as PANIC errors.
//
// # Shutdown
//
// RegisterShutdownHooks adds, in order: stop accepting work (waits for
// running handlers), close transport, stop the metrics server and flush
// tracing. Requests that arrive after the first hook ran are dropped.
package client
