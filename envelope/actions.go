package envelope

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/vinayprograms/automationkit/message"
)

// ExtractActions lifts command bindings out of a chat message.
//
// It returns a copy of msg in which every command-bound action has a name
// suffixed with its sequence number and no binding, plus one Action per
// binding. Sequence numbers start at 0 and are unique within the message.
// msg itself is not modified.
func ExtractActions(msg message.ChatMessage) (message.ChatMessage, []Action) {
	out := message.ChatMessage{Text: msg.Text}
	var actions []Action
	counter := 0

	if msg.Attachments != nil {
		out.Attachments = make([]message.Attachment, len(msg.Attachments))
	}
	for i, att := range msg.Attachments {
		cp := att
		if att.Actions != nil {
			cp.Actions = make([]message.Action, len(att.Actions))
		}
		for j, a := range att.Actions {
			ca := a
			if a.Command != nil {
				suffix := "-" + strconv.Itoa(counter)
				counter++

				base := a.Command.ID
				if base == "" {
					base = a.Command.Name
				}
				ca.Name = a.Name + suffix
				ca.Command = nil

				actions = append(actions, Action{
					ID:            base + suffix,
					ParameterName: a.Command.ParameterName,
					Command:       a.Command.Name,
					Parameters:    flattenParameters(a.Command.Parameters),
				})
			}
			cp.Actions[j] = ca
		}
		out.Attachments[i] = cp
	}
	return out, actions
}

// flattenParameters turns bound arguments into a name-ordered list. Nil
// values are dropped.
func flattenParameters(params map[string]interface{}) []Parameter {
	names := make([]string, 0, len(params))
	for name, v := range params {
		if v == nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Parameter, 0, len(names))
	for _, name := range names {
		out = append(out, Parameter{Name: name, Value: fmt.Sprint(params[name])})
	}
	return out
}
