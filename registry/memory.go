package registry

import (
	"fmt"
	"sync"

	kiterrors "github.com/vinayprograms/automationkit/errors"
)

// Registry is an in-memory set of command and event handlers. Handlers are
// registered explicitly at startup; names are unique per kind.
type Registry struct {
	mu       sync.RWMutex
	commands []CommandHandler
	events   []EventHandler
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{}
}

// RegisterCommand adds a command handler.
func (r *Registry) RegisterCommand(h CommandHandler) error {
	if err := h.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.commands {
		if c.Name == h.Name {
			return fmt.Errorf("%w: command %q", ErrDuplicateName, h.Name)
		}
	}
	r.commands = append(r.commands, h)
	return nil
}

// RegisterEvent adds an event handler.
func (r *Registry) RegisterEvent(h EventHandler) error {
	if err := h.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.events {
		if e.Name == h.Name {
			return fmt.Errorf("%w: event %q", ErrDuplicateName, h.Name)
		}
	}
	r.events = append(r.events, h)
	return nil
}

// Command returns the handler for a command name.
// Returns a NOT_REGISTERED error if there is none.
func (r *Registry) Command(name string) (*CommandHandler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.commands {
		if r.commands[i].Name == name {
			h := r.commands[i]
			return &h, nil
		}
	}
	return nil, kiterrors.NotRegistered(name, kiterrors.WithMetadata("kind", "command"))
}

// Event returns the handler for a subscription operation name.
// Returns a NOT_REGISTERED error if there is none.
func (r *Registry) Event(operationName string) (*EventHandler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.events {
		if r.events[i].Name == operationName {
			h := r.events[i]
			return &h, nil
		}
	}
	return nil, kiterrors.NotRegistered(operationName, kiterrors.WithMetadata("kind", "event"))
}

// Commands returns the command handlers in registration order.
func (r *Registry) Commands() []CommandHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]CommandHandler(nil), r.commands...)
}

// Events returns the event handlers in registration order.
func (r *Registry) Events() []EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]EventHandler(nil), r.events...)
}

// Reset removes all handlers (mainly for testing).
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = nil
	r.events = nil
}
