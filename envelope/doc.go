// Package envelope turns a handler's "send this message to these
// destinations" call into the response envelope the platform expects on the
// duplex connection.
//
// # Overview
//
// A Builder resolves abstract destinations (chat channels and users, custom
// event streams) into wire destinations, serializes the message for the
// resolved kind, extracts command-bound actions from chat messages and sets
// the identity fields that make a message updatable later.
//
//	b := envelope.NewBuilder()
//	env, err := b.Build(req, message.PlainText("hi"), message.Options{},
//	    message.AddressSlack("T1", "general"))
//
// # Resolution rules
//
//   - Every channel and every user of a ChatDestination becomes one wire
//     destination, in input order. Custom event destinations become one
//     ingester destination each.
//   - Chat and custom event destinations cannot be mixed in one send.
//   - With no destinations, a command response goes back to the source of
//     the command (minus the user, so a channel command is not answered by DM).
//     Events have no source, so an event response without destinations fails
//     with UNSUPPORTED_DESTINATION.
//   - Messages without an id carry no id, timestamp, ttl or post mode and can
//     never be updated. Custom event messages always get an id.
//
// The Builder holds no state besides its clock and id generator and is safe
// for concurrent use.
package envelope
