package registry

import (
	"context"
	"encoding/json"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinayprograms/automationkit/envelope"
	kiterrors "github.com/vinayprograms/automationkit/errors"
)

func noopCommand(ctx context.Context, req *envelope.CommandRequest, msgs Messenger) error {
	return nil
}

func noopEvent(ctx context.Context, req *envelope.EventRequest, msgs Messenger) error {
	return nil
}

func helloCommand(t *testing.T) CommandHandler {
	t.Helper()
	h, err := NewCommand("HelloWorld").
		Description("say hello").
		Intent("hello", "hi").
		Tags("greeting").
		Parameter(Parameter{Name: "name", Pattern: regexp.MustCompile(`^[A-Z]\w*$`), Required: true, MaxLength: 10}).
		Parameter(Parameter{Name: "greeting", DefaultValue: "Hello"}).
		MappedParameter("owner", "atomist://github/repository/owner", true).
		Secret("token", "github://user_token?scopes=repo").
		Handle(noopCommand).
		Build()
	require.NoError(t, err)
	return h
}

func TestCommandBuilder(t *testing.T) {
	h := helloCommand(t)
	assert.Equal(t, "HelloWorld", h.Name)
	assert.Equal(t, []string{"hello", "hi"}, h.Intent)
	assert.Equal(t, []Tag{{Name: "greeting"}}, h.Tags)
	assert.Len(t, h.Parameters, 2)
	assert.Equal(t, []Secret{{Name: "token", Path: "github://user_token?scopes=repo"}}, h.Secrets)
}

func TestCommandBuilder_Invalid(t *testing.T) {
	_, err := NewCommand("").Handle(noopCommand).Build()
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = NewCommand("NoHandler").Build()
	assert.ErrorIs(t, err, ErrNoHandler)

	_, err = NewCommand("Dup").
		PatternParameter("repo", `.*`).
		MappedParameter("repo", "atomist://github/repository", false).
		Handle(noopCommand).
		Build()
	assert.ErrorIs(t, err, ErrDuplicateName)
}

func TestEventBuilder(t *testing.T) {
	h, err := NewEvent("OnPush", "subscription OnPush { Push { sha } }").
		Description("react to pushes").
		Secret("token", "github://org_token").
		Handle(noopEvent).
		Build()
	require.NoError(t, err)
	assert.Equal(t, "OnPush", h.Name)

	_, err = NewEvent("OnPush", "").Handle(noopEvent).Build()
	assert.ErrorIs(t, err, ErrNoSubscription)
}

func TestEventBuilder_NameMustMatchOperation(t *testing.T) {
	for _, sub := range []string{
		"subscription OnPush { Push { sha } }",
		"subscription { Push { sha } }",
		"query OnBuild { Build { id } }",
	} {
		_, err := NewEvent("OnBuild", sub).Handle(noopEvent).Build()
		assert.ErrorIs(t, err, ErrOperationName, sub)
	}

	h, err := NewEvent("OnBuild", "\n  subscription OnBuild {\n    Build { id }\n  }").Handle(noopEvent).Build()
	require.NoError(t, err)
	assert.Equal(t, "OnBuild", h.Name)

	r := New()
	err = r.RegisterEvent(EventHandler{Name: "OnBuild", Subscription: "subscription OnPush { Push { sha } }", Handle: noopEvent})
	assert.ErrorIs(t, err, ErrOperationName)
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterCommand(helloCommand(t)))
	require.NoError(t, r.RegisterEvent(EventHandler{Name: "OnPush", Subscription: "subscription OnPush { Push { sha } }", Handle: noopEvent}))

	cmd, err := r.Command("HelloWorld")
	require.NoError(t, err)
	assert.Equal(t, "say hello", cmd.Description)

	ev, err := r.Event("OnPush")
	require.NoError(t, err)
	assert.Equal(t, "OnPush", ev.Name)

	_, err = r.Command("Missing")
	assert.True(t, kiterrors.Is(err, kiterrors.ErrCodeNotRegistered))

	_, err = r.Event("OnIssue")
	assert.True(t, kiterrors.Is(err, kiterrors.ErrCodeNotRegistered))
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterCommand(helloCommand(t)))
	assert.ErrorIs(t, r.RegisterCommand(helloCommand(t)), ErrDuplicateName)

	ev := EventHandler{Name: "OnPush", Subscription: "subscription OnPush { Push { sha } }", Handle: noopEvent}
	require.NoError(t, r.RegisterEvent(ev))
	assert.ErrorIs(t, r.RegisterEvent(ev), ErrDuplicateName)

	assert.Len(t, r.Commands(), 1)
	assert.Len(t, r.Events(), 1)

	r.Reset()
	assert.Empty(t, r.Commands())
	assert.Empty(t, r.Events())
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterCommand(helloCommand(t)))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = r.Command("HelloWorld")
		}()
		go func() {
			defer wg.Done()
			_, _ = r.Payload("client", "1.0.0", nil)
		}()
	}
	wg.Wait()
}

func TestPayload_AllGroupWithoutWorkspaces(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterCommand(helloCommand(t)))
	require.NoError(t, r.RegisterEvent(EventHandler{
		Name:         "OnPush",
		Subscription: "subscription OnPush { Push { sha } }",
		Secrets:      []Secret{{Name: "token", Path: "github://org_token"}},
		Handle:       noopEvent,
	}))

	data, err := r.Payload("my-automations", "1.2.3", nil)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"name": "my-automations",
		"version": "1.2.3",
		"groups": ["all"],
		"commands": [{
			"name": "HelloWorld",
			"description": "say hello",
			"intent": ["hello", "hi"],
			"tags": [{"name": "greeting"}],
			"parameters": [
				{"name": "name", "pattern": "^[A-Z]\\w*$", "required": true, "max_length": 10},
				{"name": "greeting", "required": false, "default_value": "Hello"}
			],
			"mapped_parameters": [{"name": "owner", "uri": "atomist://github/repository/owner", "required": true}],
			"secrets": ["github://user_token?scopes=repo"]
		}],
		"events": [{
			"subscription": "subscription OnPush { Push { sha } }",
			"secrets": ["github://org_token"]
		}]
	}`, string(data))
}

func TestPayload_TeamIDs(t *testing.T) {
	r := New()
	data, err := r.Payload("my-automations", "1.2.3", []string{"T1", "T2"})
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, []interface{}{"T1", "T2"}, got["team_ids"])
	assert.NotContains(t, got, "groups")
	assert.Equal(t, []interface{}{}, got["commands"])
	assert.Equal(t, []interface{}{}, got["events"])
}

func TestCheckParameters(t *testing.T) {
	h := helloCommand(t)
	req := func(params ...envelope.Arg) *envelope.CommandRequest {
		return &envelope.CommandRequest{
			CorrelationID:    "corr-1",
			Team:             envelope.Team{ID: "T1"},
			Command:          "HelloWorld",
			Parameters:       params,
			MappedParameters: []envelope.Arg{{Name: "owner", Value: "acme"}},
		}
	}

	assert.NoError(t, h.CheckParameters(req(envelope.Arg{Name: "name", Value: "Ada"})))

	tests := []struct {
		name  string
		req   *envelope.CommandRequest
		param string
	}{
		{"missing required", req(), "name"},
		{"pattern mismatch", req(envelope.Arg{Name: "name", Value: "ada"}), "name"},
		{"too long", req(envelope.Arg{Name: "name", Value: "Adaaaaaaaaaaa"}), "name"},
		{"missing mapped", &envelope.CommandRequest{Command: "HelloWorld", Parameters: []envelope.Arg{{Name: "name", Value: "Ada"}}}, "owner"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.CheckParameters(tt.req)
			require.Error(t, err)
			assert.True(t, kiterrors.Is(err, kiterrors.ErrCodeInvalidInput))
			ae := kiterrors.AsAutomationError(err)
			require.NotNil(t, ae)
			assert.Equal(t, tt.param, ae.Metadata()["parameter"])
		})
	}
}
