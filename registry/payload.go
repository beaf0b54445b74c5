package registry

import "encoding/json"

type registration struct {
	Name     string                `json:"name"`
	Version  string                `json:"version"`
	TeamIDs  []string              `json:"team_ids,omitempty"`
	Groups   []string              `json:"groups,omitempty"`
	Commands []commandRegistration `json:"commands"`
	Events   []eventRegistration   `json:"events"`
}

type commandRegistration struct {
	Name             string                  `json:"name"`
	Description      string                  `json:"description,omitempty"`
	Intent           []string                `json:"intent,omitempty"`
	Tags             []Tag                   `json:"tags,omitempty"`
	Parameters       []parameterRegistration `json:"parameters"`
	MappedParameters []MappedParameter       `json:"mapped_parameters"`
	Secrets          []string                `json:"secrets"`
}

type parameterRegistration struct {
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	DisplayName  string `json:"display_name,omitempty"`
	Pattern      string `json:"pattern,omitempty"`
	ValidInput   string `json:"valid_input,omitempty"`
	Required     bool   `json:"required"`
	DefaultValue string `json:"default_value,omitempty"`
	MinLength    int    `json:"min_length,omitempty"`
	MaxLength    int    `json:"max_length,omitempty"`
}

type eventRegistration struct {
	Subscription string   `json:"subscription"`
	Secrets      []string `json:"secrets"`
}

// Payload returns the registration message announcing the handlers. With
// team ids the client registers for those workspaces only; without, it
// joins the "all" group.
func (r *Registry) Payload(name, version string, teamIDs []string) ([]byte, error) {
	reg := registration{
		Name:     name,
		Version:  version,
		Commands: []commandRegistration{},
		Events:   []eventRegistration{},
	}
	if len(teamIDs) > 0 {
		reg.TeamIDs = teamIDs
	} else {
		reg.Groups = []string{"all"}
	}

	for _, c := range r.Commands() {
		reg.Commands = append(reg.Commands, commandPayload(c))
	}
	for _, e := range r.Events() {
		reg.Events = append(reg.Events, eventRegistration{
			Subscription: e.Subscription,
			Secrets:      secretPaths(e.Secrets),
		})
	}

	return json.Marshal(reg)
}

func commandPayload(c CommandHandler) commandRegistration {
	cr := commandRegistration{
		Name:             c.Name,
		Description:      c.Description,
		Intent:           c.Intent,
		Tags:             c.Tags,
		Parameters:       make([]parameterRegistration, 0, len(c.Parameters)),
		MappedParameters: c.MappedParameters,
		Secrets:          secretPaths(c.Secrets),
	}
	if cr.MappedParameters == nil {
		cr.MappedParameters = []MappedParameter{}
	}

	for _, p := range c.Parameters {
		pr := parameterRegistration{
			Name:         p.Name,
			Description:  p.Description,
			DisplayName:  p.DisplayName,
			ValidInput:   p.ValidInput,
			Required:     p.Required,
			DefaultValue: p.DefaultValue,
			MinLength:    p.MinLength,
			MaxLength:    p.MaxLength,
		}
		if p.Pattern != nil {
			pr.Pattern = p.Pattern.String()
		}
		cr.Parameters = append(cr.Parameters, pr)
	}
	return cr
}

func secretPaths(secrets []Secret) []string {
	paths := make([]string, 0, len(secrets))
	for _, s := range secrets {
		paths = append(paths, s.Path)
	}
	return paths
}
