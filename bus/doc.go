// Package bus carries outbound envelopes over a message bus.
//
// # Overview
//
// A client that runs beside other services can hand its envelopes to a bus
// instead of the platform WebSocket. The transport.BusSender publishes each
// envelope as JSON on the team's response subject:
//
//	automation.<team id>.responses
//
// # Available Implementations
//
//   - NATSBus: production messaging using NATS
//   - MemoryBus: in-memory implementation for tests and single-process use
//
// # Usage
//
//	b, _ := bus.NewNATSBus(bus.DefaultNATSConfig())
//	defer b.Close()
//
//	sub, _ := b.Subscribe(bus.ResponseSubject("", "T1"))
//	for msg := range sub.Messages() {
//	    // msg.Data is an envelope
//	}
package bus
