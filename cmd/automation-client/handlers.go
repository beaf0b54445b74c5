package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/vinayprograms/automationkit/envelope"
	"github.com/vinayprograms/automationkit/message"
	"github.com/vinayprograms/automationkit/registry"
)

// helloWorld greets the invoking user and offers a button to greet again.
func helloWorld() (registry.CommandHandler, error) {
	return registry.NewCommand("HelloWorld").
		Description("Say hello").
		Intent("hello world", "say hello").
		Tags("demo").
		Parameter(registry.Parameter{
			Name:         "name",
			DisplayName:  "Your name",
			ValidInput:   "letters and digits, up to 50 characters",
			DefaultValue: "world",
			MaxLength:    50,
		}).
		Handle(func(ctx context.Context, req *envelope.CommandRequest, msgs registry.Messenger) error {
			name, ok := req.Parameter("name")
			if !ok || name == "" {
				name = "world"
			}

			msg := message.ChatMessage{
				Text: fmt.Sprintf("Hello %s!", name),
				Attachments: []message.Attachment{{
					Attachment: slack.Attachment{Fallback: "Greet again", CallbackID: "hello-again"},
					Actions: []message.Action{
						message.ButtonForCommand("Again", "HelloWorld", map[string]interface{}{"name": name}),
					},
				}},
			}
			return msgs.Respond(ctx, msg, message.Options{ID: "hello-" + req.CorrelationID})
		}).
		Build()
}

type push struct {
	Push []struct {
		After struct {
			SHA     string `json:"sha"`
			Message string `json:"message"`
		} `json:"after"`
		Repo struct {
			Name    string `json:"name"`
			Channel string `json:"channel"`
		} `json:"repo"`
	} `json:"Push"`
}

// onPush announces pushes in the repository channel and records a summary
// event for each one.
func onPush() (registry.EventHandler, error) {
	return registry.NewEvent("OnPush", `subscription OnPush { Push { after { sha message } repo { name channel } } }`).
		Description("Announce pushes").
		Handle(func(ctx context.Context, req *envelope.EventRequest, msgs registry.Messenger) error {
			var data push
			if err := json.Unmarshal(req.Data, &data); err != nil {
				return fmt.Errorf("decoding push: %w", err)
			}

			team := req.Context().Team.ID
			for _, p := range data.Push {
				if p.Repo.Channel != "" {
					text := message.PlainText(fmt.Sprintf("%s pushed %.7s: %s", p.Repo.Name, p.After.SHA, p.After.Message))
					if err := msgs.Send(ctx, text, message.Options{}, message.AddressSlack(team, p.Repo.Channel)); err != nil {
						return err
					}
				}

				summary := message.CustomEvent{Payload: map[string]string{
					"repo": p.Repo.Name,
					"sha":  p.After.SHA,
				}}
				if err := msgs.Send(ctx, summary, message.Options{}, message.AddressEvent("PushSummary")); err != nil {
					return err
				}
			}
			return nil
		}).
		Build()
}
