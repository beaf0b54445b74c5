package envelope

import "github.com/vinayprograms/automationkit/message"

// APIVersion is the protocol version of every envelope.
const APIVersion = "1"

// Content types of envelope bodies.
const (
	ContentTypeSlack     = "application/x-atomist-slack+json"
	ContentTypeSlackFile = "application/x-atomist-slack-file+json"
	ContentTypePlainText = "text/plain"
	ContentTypeJSON      = "application/json"
)

// Team identifies the workspace a request belongs to.
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Ref names a team, channel or user by id and/or name.
type Ref struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// SlackAddress is a resolved Slack location.
type SlackAddress struct {
	Team     Ref    `json:"team"`
	Channel  *Ref   `json:"channel,omitempty"`
	User     *Ref   `json:"user,omitempty"`
	ThreadTS string `json:"thread_ts,omitempty"`
}

// IngesterAddress is a resolved custom event stream.
type IngesterAddress struct {
	RootType string `json:"root_type"`
}

// Destination is a wire-level destination. Command sources share this shape.
type Destination struct {
	UserAgent string           `json:"user_agent"`
	Slack     *SlackAddress    `json:"slack,omitempty"`
	Ingester  *IngesterAddress `json:"ingester,omitempty"`
}

// withoutUser returns a copy of d with the Slack user removed.
func (d Destination) withoutUser() Destination {
	if d.Slack == nil {
		return d
	}
	s := *d.Slack
	s.User = nil
	if s.Channel != nil {
		ch := *s.Channel
		s.Channel = &ch
	}
	d.Slack = &s
	return d
}

// Parameter is a bound command argument of an action.
type Parameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Action declares a command-bound interactive element of a chat message.
type Action struct {
	ID            string      `json:"id"`
	ParameterName string      `json:"parameter_name,omitempty"`
	Command       string      `json:"command"`
	Parameters    []Parameter `json:"parameters"`
}

// Envelope is the complete wire-level description of one outbound message.
type Envelope struct {
	APIVersion    string        `json:"api_version"`
	CorrelationID string        `json:"correlation_id"`
	Team          Team          `json:"team"`
	Command       string        `json:"command,omitempty"`
	Event         string        `json:"event,omitempty"`
	Source        *Destination  `json:"source,omitempty"`
	Destinations  []Destination `json:"destinations"`
	ContentType   string        `json:"content_type"`
	Body          string        `json:"body"`

	// Update identity. All unset for messages sent without an id.
	ID        string           `json:"id,omitempty"`
	Timestamp int64            `json:"timestamp,omitempty"`
	TTL       int64            `json:"ttl,omitempty"`
	PostMode  message.PostMode `json:"post_mode,omitempty"`

	Actions []Action `json:"actions,omitempty"`
}
