// Package transport moves envelopes between an automation client and the
// platform.
//
// # Overview
//
// Outbound, every implementation satisfies Sender. Inbound, the
// WebSocketTransport parses platform payloads into Inbound values holding
// either a command or an event request.
//
// # Available Senders
//
//   - WebSocketTransport: the duplex platform connection
//   - BusSender: publishes envelopes on a bus.MessageBus subject
//   - RecordingSender: keeps envelopes in memory (tests, dry runs)
//
// # Usage
//
//	t := transport.NewWebSocketTransport(transport.WebSocketConfig{
//	    URL:          "wss://automation.example.com/ws",
//	    Token:        token,
//	    Registration: payload,
//	})
//	go t.Run(ctx)
//
//	for in := range t.Recv() {
//	    // dispatch in.Command or in.Event
//	}
//
// # Connection lifecycle
//
//   - The registration payload is the first message of every connection.
//   - Dropped connections are redialed with exponential backoff capped at
//     MaxBackoff. Envelopes queued meanwhile are sent after the reconnect.
//   - Close stops reconnecting, writes the queued envelopes and closes the
//     connection with a normal closure frame.
//
// # Thread Safety
//
// All methods are safe for concurrent use. The Recv() channel is closed
// when Run returns.
package transport
