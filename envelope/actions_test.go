package envelope

import (
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinayprograms/automationkit/message"
)

func TestExtractActions_Sequence(t *testing.T) {
	bound := func(id string) message.Action {
		return message.Action{
			AttachmentAction: slack.AttachmentAction{Name: "btn", Text: id},
			Command:          &message.CommandReference{ID: id, Name: "Cmd"},
		}
	}
	unbound := message.Action{AttachmentAction: slack.AttachmentAction{Name: "link", Type: "button", URL: "https://example.com"}}

	msg := message.ChatMessage{
		Attachments: []message.Attachment{
			{Actions: []message.Action{bound("a"), unbound, bound("b")}},
			{},
			{Actions: []message.Action{bound("c")}},
		},
	}

	clean, actions := ExtractActions(msg)
	require.Len(t, actions, 3)
	assert.Equal(t, "a-0", actions[0].ID)
	assert.Equal(t, "b-1", actions[1].ID)
	assert.Equal(t, "c-2", actions[2].ID)

	assert.Equal(t, "btn-0", clean.Attachments[0].Actions[0].Name)
	assert.Equal(t, "link", clean.Attachments[0].Actions[1].Name)
	assert.Equal(t, "btn-1", clean.Attachments[0].Actions[2].Name)
	assert.Equal(t, "btn-2", clean.Attachments[2].Actions[0].Name)
	for _, att := range clean.Attachments {
		for _, a := range att.Actions {
			assert.Nil(t, a.Command)
		}
	}

	assert.Equal(t, "btn", msg.Attachments[0].Actions[0].Name)
	assert.NotNil(t, msg.Attachments[2].Actions[0].Command)
}

func TestExtractActions_NoAttachments(t *testing.T) {
	clean, actions := ExtractActions(message.ChatMessage{Text: "plain"})
	assert.Empty(t, actions)
	assert.Equal(t, "plain", clean.Text)
	assert.Nil(t, clean.Attachments)
}

func TestExtractActions_BaseIDDefaultsToCommandName(t *testing.T) {
	msg := message.ChatMessage{Attachments: []message.Attachment{{Actions: []message.Action{{
		Command: &message.CommandReference{Name: "Deploy"},
	}}}}}
	_, actions := ExtractActions(msg)
	require.Len(t, actions, 1)
	assert.Equal(t, "Deploy-0", actions[0].ID)
}

func TestFlattenParameters(t *testing.T) {
	params := flattenParameters(map[string]interface{}{
		"repo":   "automation-client",
		"count":  3,
		"force":  false,
		"absent": nil,
		"empty":  "",
	})
	assert.Equal(t, []Parameter{
		{Name: "count", Value: "3"},
		{Name: "empty", Value: ""},
		{Name: "force", Value: "false"},
		{Name: "repo", Value: "automation-client"},
	}, params)

	assert.Empty(t, flattenParameters(nil))
}
