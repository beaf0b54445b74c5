package envelope

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vinayprograms/automationkit/errors"
	"github.com/vinayprograms/automationkit/message"
)

type kind int

const (
	kindNone kind = iota
	kindChat
	kindEvent
)

func (k kind) String() string {
	switch k {
	case kindChat:
		return message.SlackUserAgent
	case kindEvent:
		return message.IngesterUserAgent
	default:
		return "none"
	}
}

// Builder builds response envelopes.
type Builder struct {
	now   func() time.Time
	newID func() string
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithClock sets the clock used for message timestamps.
func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) {
		b.now = now
	}
}

// WithIDGenerator sets the generator for custom event message ids.
func WithIDGenerator(newID func() string) BuilderOption {
	return func(b *Builder) {
		b.newID = newID
	}
}

// NewBuilder creates a Builder using the wall clock and random UUIDs.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build creates the envelope that delivers msg to dests in response to req.
func (b *Builder) Build(req Request, msg message.Message, opts message.Options, dests ...message.Destination) (*Envelope, error) {
	if isNil(req) {
		return nil, errors.InvalidInput("request context is required")
	}
	rc := req.Context()
	errCtx := []errors.Option{
		errors.WithCorrelationID(rc.CorrelationID),
		errors.WithTeamID(rc.Team.ID),
	}

	if msg == nil {
		return nil, errors.FromCode(errors.ErrCodeUnsupportedMessage, errCtx...)
	}

	k, wire, err := resolve(dests, opts.Thread)
	if err != nil {
		return nil, errors.Wrap(err, "resolving destinations", errCtx...)
	}

	if len(wire) == 0 {
		if rc.Source == nil {
			if rc.Event != "" {
				return nil, errors.UnsupportedDestination(
					"response messages are not supported for event handlers",
					append(errCtx, errors.WithMetadata("event", rc.Event))...)
			}
			return nil, errors.UnsupportedDestination("no destination given and request has no source", errCtx...)
		}
		wire = []Destination{rc.Source.withoutUser()}
		k = kindChat
	}

	env := &Envelope{
		APIVersion:    APIVersion,
		CorrelationID: rc.CorrelationID,
		Team:          rc.Team,
		Command:       rc.Command,
		Event:         rc.Event,
		Source:        rc.Source,
		Destinations:  wire,
	}
	b.applyIdentity(env, opts)

	switch k {
	case kindChat:
		err = serializeChat(env, msg)
	case kindEvent:
		err = serializeEvent(env, msg)
		if env.ID == "" {
			env.ID = b.newID()
		}
	default:
		err = errors.Internal(fmt.Sprintf("unresolved destination kind %s", k))
	}
	if err != nil {
		return nil, errors.Wrap(err, "serializing message", errCtx...)
	}
	return env, nil
}

// isNil reports whether req is nil or a typed nil request pointer.
func isNil(req Request) bool {
	switch r := req.(type) {
	case nil:
		return true
	case *CommandRequest:
		return r == nil
	case *EventRequest:
		return r == nil
	}
	return false
}

// applyIdentity sets id, timestamp, ttl and post mode when the caller
// supplied an id.
func (b *Builder) applyIdentity(env *Envelope, opts message.Options) {
	if opts.ID == "" {
		return
	}
	ts := opts.Timestamp
	if ts.IsZero() {
		ts = b.now()
	}
	env.ID = opts.ID
	env.Timestamp = ts.UnixMilli()
	if opts.TTL > 0 {
		env.TTL = opts.TTL.Milliseconds()
	}
	switch opts.Post {
	case message.PostUpdateOnly, message.PostAlways:
		env.PostMode = opts.Post
	default:
		env.PostMode = message.PostTTL
	}
}

// resolve expands destinations into wire destinations and classifies them.
func resolve(dests []message.Destination, thread string) (kind, []Destination, error) {
	k := kindNone
	var wire []Destination

	classify := func(next kind) error {
		if k != kindNone && k != next {
			return errors.FromCode(errors.ErrCodeMixedDestinations)
		}
		k = next
		return nil
	}

	for _, d := range dests {
		switch d := d.(type) {
		case message.ChatDestination:
			if err := classify(kindChat); err != nil {
				return kindNone, nil, err
			}
			wire = append(wire, chatDestinations(d, thread)...)
		case *message.ChatDestination:
			if d == nil {
				return kindNone, nil, errors.InvalidInput("nil destination")
			}
			if err := classify(kindChat); err != nil {
				return kindNone, nil, err
			}
			wire = append(wire, chatDestinations(*d, thread)...)
		case message.CustomEventDestination:
			if err := classify(kindEvent); err != nil {
				return kindNone, nil, err
			}
			wire = append(wire, eventDestination(d))
		case *message.CustomEventDestination:
			if d == nil {
				return kindNone, nil, errors.InvalidInput("nil destination")
			}
			if err := classify(kindEvent); err != nil {
				return kindNone, nil, err
			}
			wire = append(wire, eventDestination(*d))
		case nil:
			return kindNone, nil, errors.InvalidInput("nil destination")
		default:
			return kindNone, nil, errors.New(errors.ErrCodeUnsupportedDestination,
				fmt.Sprintf("unsupported destination type %T", d))
		}
	}
	return k, wire, nil
}

func chatDestinations(d message.ChatDestination, thread string) []Destination {
	out := make([]Destination, 0, len(d.Channels)+len(d.Users))
	for _, c := range d.Channels {
		out = append(out, Destination{
			UserAgent: message.SlackUserAgent,
			Slack: &SlackAddress{
				Team:     Ref{ID: d.Team},
				Channel:  &Ref{Name: c},
				ThreadTS: thread,
			},
		})
	}
	for _, u := range d.Users {
		out = append(out, Destination{
			UserAgent: message.SlackUserAgent,
			Slack: &SlackAddress{
				Team:     Ref{ID: d.Team},
				User:     &Ref{Name: u},
				ThreadTS: thread,
			},
		})
	}
	return out
}

func eventDestination(d message.CustomEventDestination) Destination {
	return Destination{
		UserAgent: message.IngesterUserAgent,
		Ingester:  &IngesterAddress{RootType: d.RootType},
	}
}

type fileUpload struct {
	Content        string `json:"content"`
	FileName       string `json:"filename,omitempty"`
	FileType       string `json:"filetype,omitempty"`
	Title          string `json:"title,omitempty"`
	InitialComment string `json:"initial_comment,omitempty"`
}

func serializeChat(env *Envelope, msg message.Message) error {
	switch m := msg.(type) {
	case message.ChatMessage:
		clean, actions := ExtractActions(m)
		body, err := message.Render(clean)
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrCodeSerialization, "rendering slack message")
		}
		env.ContentType = ContentTypeSlack
		env.Body = body
		env.Actions = actions
	case message.FileMessage:
		data, err := json.Marshal(fileUpload{
			Content:        m.Content,
			FileName:       m.FileName,
			FileType:       m.FileType,
			Title:          m.Title,
			InitialComment: m.Comment,
		})
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrCodeSerialization, "encoding file upload")
		}
		env.ContentType = ContentTypeSlackFile
		env.Body = string(data)
	case message.PlainText:
		env.ContentType = ContentTypePlainText
		env.Body = string(m)
	default:
		return errors.New(errors.ErrCodeUnsupportedMessage,
			fmt.Sprintf("unsupported message type %T", msg))
	}
	return nil
}

func serializeEvent(env *Envelope, msg message.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrCodeSerialization, "encoding custom event")
	}
	env.ContentType = ContentTypeJSON
	env.Body = string(data)
	return nil
}
