// Package registry holds the handlers of an automation client.
//
// # Overview
//
// Handlers are declared with a builder and registered explicitly, usually
// from main:
//
//	reg := registry.New()
//
//	hello, _ := registry.NewCommand("HelloWorld").
//	    Description("say hello").
//	    Intent("hello world").
//	    PatternParameter("name", `^\w+$`).
//	    Secret("github", "github://user_token?scopes=repo").
//	    Handle(func(ctx context.Context, req *envelope.CommandRequest, msgs registry.Messenger) error {
//	        name, _ := req.Parameter("name")
//	        return msgs.Respond(ctx, message.PlainText("Hello "+name), message.Options{})
//	    }).
//	    Build()
//	reg.RegisterCommand(hello)
//
// Commands are looked up by name and events by the operation name of their
// subscription. A lookup miss is a NOT_REGISTERED error.
//
// # Registration payload
//
// Payload renders the JSON the client sends when it connects:
//
//   - team_ids when workspaces are configured, otherwise groups ["all"]
//   - secrets as a list of their paths
//   - parameter patterns as their regular expression source
//
// # Thread Safety
//
// Registry is safe for concurrent use. Lookups return copies.
package registry
