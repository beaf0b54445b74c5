package envelope

import "encoding/json"

// Request is the inbound request a response is sent for.
//
// Implementations: *CommandRequest and *EventRequest.
type Request interface {
	// Context returns the fields of the request that shape a response.
	Context() RequestContext

	request()
}

// RequestContext is the part of an inbound request echoed in responses.
type RequestContext struct {
	CorrelationID string
	Team          Team

	// Command is set for command requests.
	Command string

	// Event is the subscription operation name for event requests.
	Event string

	// Source is where a command came from; nil for events.
	Source *Destination
}

// Arg is a name/value pair of an inbound command.
type Arg struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SecretValue is a resolved secret delivered with a request.
type SecretValue struct {
	URI   string `json:"uri"`
	Value string `json:"value"`
}

// CommandRequest is an inbound command invocation.
type CommandRequest struct {
	APIVersion       string        `json:"api_version,omitempty"`
	CorrelationID    string        `json:"correlation_id"`
	Team             Team          `json:"team"`
	Command          string        `json:"command"`
	Source           *Destination  `json:"source,omitempty"`
	Parameters       []Arg         `json:"parameters,omitempty"`
	MappedParameters []Arg         `json:"mapped_parameters,omitempty"`
	Secrets          []SecretValue `json:"secrets,omitempty"`
}

// Context implements Request.
func (r *CommandRequest) Context() RequestContext {
	return RequestContext{
		CorrelationID: r.CorrelationID,
		Team:          r.Team,
		Command:       r.Command,
		Source:        r.Source,
	}
}

func (*CommandRequest) request() {}

// Parameter returns the value of a named parameter or mapped parameter.
func (r *CommandRequest) Parameter(name string) (string, bool) {
	for _, p := range r.Parameters {
		if p.Name == name {
			return p.Value, true
		}
	}
	for _, p := range r.MappedParameters {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// EventExtensions carries the routing data of an inbound event.
type EventExtensions struct {
	OperationName string `json:"operationName"`
	TeamID        string `json:"team_id"`
	TeamName      string `json:"team_name,omitempty"`
	CorrelationID string `json:"correlation_id"`
}

// EventRequest is an inbound event matching a subscription.
type EventRequest struct {
	Data       json.RawMessage `json:"data,omitempty"`
	Extensions EventExtensions `json:"extensions"`
	Secrets    []SecretValue   `json:"secrets,omitempty"`
}

// Context implements Request.
func (r *EventRequest) Context() RequestContext {
	return RequestContext{
		CorrelationID: r.Extensions.CorrelationID,
		Team:          Team{ID: r.Extensions.TeamID, Name: r.Extensions.TeamName},
		Event:         r.Extensions.OperationName,
	}
}

func (*EventRequest) request() {}
