package registry

import "regexp"

// CommandBuilder assembles a CommandHandler.
//
//	h, err := registry.NewCommand("HelloWorld").
//	    Description("say hello").
//	    Intent("hello").
//	    Parameter(registry.Parameter{Name: "name", Pattern: regexp.MustCompile(`^\w+$`)}).
//	    Handle(hello).
//	    Build()
type CommandBuilder struct {
	h CommandHandler
}

// NewCommand starts a command declaration.
func NewCommand(name string) *CommandBuilder {
	return &CommandBuilder{h: CommandHandler{Name: name}}
}

// Description sets the help text shown for the command.
func (b *CommandBuilder) Description(d string) *CommandBuilder {
	b.h.Description = d
	return b
}

// Intent adds phrases that trigger the command.
func (b *CommandBuilder) Intent(intents ...string) *CommandBuilder {
	b.h.Intent = append(b.h.Intent, intents...)
	return b
}

// Tags adds tags by name.
func (b *CommandBuilder) Tags(names ...string) *CommandBuilder {
	for _, n := range names {
		b.h.Tags = append(b.h.Tags, Tag{Name: n})
	}
	return b
}

// Parameter declares a parameter.
func (b *CommandBuilder) Parameter(p Parameter) *CommandBuilder {
	b.h.Parameters = append(b.h.Parameters, p)
	return b
}

// PatternParameter declares a required parameter whose value must match pattern.
func (b *CommandBuilder) PatternParameter(name, pattern string) *CommandBuilder {
	return b.Parameter(Parameter{Name: name, Pattern: regexp.MustCompile(pattern), Required: true})
}

// MappedParameter declares a parameter the platform fills in from uri.
func (b *CommandBuilder) MappedParameter(name, uri string, required bool) *CommandBuilder {
	b.h.MappedParameters = append(b.h.MappedParameters, MappedParameter{Name: name, URI: uri, Required: required})
	return b
}

// Secret requests the secret at path, exposed to the handler as name.
func (b *CommandBuilder) Secret(name, path string) *CommandBuilder {
	b.h.Secrets = append(b.h.Secrets, Secret{Name: name, Path: path})
	return b
}

// Handle sets the function invoked for the command.
func (b *CommandBuilder) Handle(fn CommandFunc) *CommandBuilder {
	b.h.Handle = fn
	return b
}

// Build validates and returns the handler.
func (b *CommandBuilder) Build() (CommandHandler, error) {
	h := b.h
	if err := h.Validate(); err != nil {
		return CommandHandler{}, err
	}
	return h, nil
}

// EventBuilder assembles an EventHandler.
type EventBuilder struct {
	h EventHandler
}

// NewEvent starts an event handler declaration. The name must be the
// subscription's operation name, since events are dispatched by it.
func NewEvent(name, subscription string) *EventBuilder {
	return &EventBuilder{h: EventHandler{Name: name, Subscription: subscription}}
}

// Description sets the help text shown for the event handler.
func (b *EventBuilder) Description(d string) *EventBuilder {
	b.h.Description = d
	return b
}

// Secret requests the secret at path, exposed to the handler as name.
func (b *EventBuilder) Secret(name, path string) *EventBuilder {
	b.h.Secrets = append(b.h.Secrets, Secret{Name: name, Path: path})
	return b
}

// Handle sets the function invoked for matching events.
func (b *EventBuilder) Handle(fn EventFunc) *EventBuilder {
	b.h.Handle = fn
	return b
}

// Build validates and returns the handler.
func (b *EventBuilder) Build() (EventHandler, error) {
	h := b.h
	if err := h.Validate(); err != nil {
		return EventHandler{}, err
	}
	return h, nil
}
