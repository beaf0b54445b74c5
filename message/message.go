// Package message defines what handlers send: the closed set of message
// variants, the closed set of destinations, and per-send options.
package message

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/slack-go/slack"
)

// Message is an outbound message payload.
//
// Implementations: ChatMessage, FileMessage, PlainText and CustomEvent.
type Message interface {
	message()
}

// ChatMessage is a Slack formatted message with optional attachments.
type ChatMessage struct {
	Text        string       `json:"text,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

func (ChatMessage) message() {}

// Attachment is a Slack attachment whose actions may be bound to commands.
// The Actions field of the embedded slack.Attachment is ignored.
type Attachment struct {
	slack.Attachment
	Actions []Action `json:"actions,omitempty"`
}

// Action is a Slack attachment action (button or menu), optionally bound to
// a followup command that the platform invokes when the action is used.
type Action struct {
	slack.AttachmentAction
	Command *CommandReference `json:"command,omitempty"`
}

// CommandReference binds an action to a command and its arguments.
type CommandReference struct {
	// ID is the base identifier of the action; the command name when empty.
	ID string `json:"id,omitempty"`

	// Name of the command to invoke.
	Name string `json:"name"`

	// ParameterName receives the selected value of a menu action.
	ParameterName string `json:"parameter_name,omitempty"`

	// Parameters are bound arguments. Nil values are not sent.
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// FileMessage uploads a file snippet to Slack.
type FileMessage struct {
	Content  string `json:"content"`
	FileName string `json:"file_name,omitempty"`
	FileType string `json:"file_type,omitempty"`
	Title    string `json:"title,omitempty"`
	Comment  string `json:"comment,omitempty"`
}

func (FileMessage) message() {}

// PlainText is an unformatted text message.
type PlainText string

func (PlainText) message() {}

// CustomEvent is a structured payload for a custom event stream. It
// serializes as the payload itself and cannot be sent to chat.
type CustomEvent struct {
	Payload interface{}
}

func (CustomEvent) message() {}

// MarshalJSON implements json.Marshaler.
func (e CustomEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Payload)
}

// PostMode governs whether a later message with the same id may update an
// earlier one.
type PostMode string

const (
	PostTTL        PostMode = "ttl"
	PostAlways     PostMode = "always"
	PostUpdateOnly PostMode = "update_only"
)

// Options carry message identity and delivery settings for one send.
type Options struct {
	// ID makes the message addressable for later updates.
	ID string

	// Timestamp of the message; defaults to now when ID is set.
	Timestamp time.Time

	// TTL after which an update posts a new message instead.
	TTL time.Duration

	// Post is the update policy; PostTTL when empty.
	Post PostMode

	// Thread is the Slack thread timestamp to reply into.
	Thread string
}

// Attachment action types.
const (
	ActionButton slack.ActionType = "button"
	ActionSelect slack.ActionType = "select"
)

// ButtonForCommand creates a button that invokes command with params.
func ButtonForCommand(text, command string, params map[string]interface{}) Action {
	id := strings.ToLower(command)
	return Action{
		AttachmentAction: slack.AttachmentAction{
			Name:  "command",
			Text:  text,
			Type:  ActionButton,
			Value: id,
		},
		Command: &CommandReference{
			ID:         id,
			Name:       command,
			Parameters: params,
		},
	}
}

// MenuForCommand creates a select menu whose chosen value is passed to
// command as parameterName.
func MenuForCommand(text string, options []slack.AttachmentActionOption, command, parameterName string, params map[string]interface{}) Action {
	id := strings.ToLower(command)
	return Action{
		AttachmentAction: slack.AttachmentAction{
			Name:    "command",
			Text:    text,
			Type:    ActionSelect,
			Options: options,
		},
		Command: &CommandReference{
			ID:            id,
			Name:          command,
			ParameterName: parameterName,
			Parameters:    params,
		},
	}
}

type renderedMessage struct {
	Text        string            `json:"text,omitempty"`
	Attachments []json.RawMessage `json:"attachments,omitempty"`
}

// Render produces the Slack JSON for msg. Command bindings are not part of
// the output.
func Render(msg ChatMessage) (string, error) {
	out := renderedMessage{Text: msg.Text}
	for _, att := range msg.Attachments {
		sa := att.Attachment
		sa.Actions = nil
		for _, a := range att.Actions {
			sa.Actions = append(sa.Actions, a.AttachmentAction)
		}
		data, err := renderAttachment(sa)
		if err != nil {
			return "", err
		}
		out.Attachments = append(out.Attachments, data)
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// renderAttachment encodes a legacy attachment. Block kit fields are not
// part of legacy attachments and are left out.
func renderAttachment(sa slack.Attachment) (json.RawMessage, error) {
	data, err := json.Marshal(sa)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	delete(fields, "blocks")
	return json.Marshal(fields)
}
