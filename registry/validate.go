package registry

import (
	"fmt"
	"unicode/utf8"

	"github.com/vinayprograms/automationkit/envelope"
	kiterrors "github.com/vinayprograms/automationkit/errors"
)

// CheckParameters checks the arguments of req against the declared
// parameters. It returns an INVALID_INPUT error naming the first offending
// parameter.
func (h *CommandHandler) CheckParameters(req *envelope.CommandRequest) error {
	for _, p := range h.Parameters {
		value, ok := argument(req.Parameters, p.Name)
		if !ok || value == "" {
			if p.Required && p.DefaultValue == "" {
				return invalidParameter(req, p.Name, "is required")
			}
			continue
		}

		n := utf8.RuneCountInString(value)
		if p.MinLength > 0 && n < p.MinLength {
			return invalidParameter(req, p.Name, fmt.Sprintf("must be at least %d characters", p.MinLength))
		}
		if p.MaxLength > 0 && n > p.MaxLength {
			return invalidParameter(req, p.Name, fmt.Sprintf("must be at most %d characters", p.MaxLength))
		}
		if p.Pattern != nil && !p.Pattern.MatchString(value) {
			return invalidParameter(req, p.Name, fmt.Sprintf("must match %s", p.Pattern.String()))
		}
	}

	for _, p := range h.MappedParameters {
		if value, ok := argument(req.MappedParameters, p.Name); p.Required && (!ok || value == "") {
			return invalidParameter(req, p.Name, "is required")
		}
	}
	return nil
}

func argument(args []envelope.Arg, name string) (string, bool) {
	for _, a := range args {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

func invalidParameter(req *envelope.CommandRequest, name, problem string) error {
	return kiterrors.InvalidInput(
		fmt.Sprintf("parameter %s %s", name, problem),
		kiterrors.WithMetadata("parameter", name),
		kiterrors.WithMetadata("command", req.Command),
		kiterrors.WithCorrelationID(req.CorrelationID),
		kiterrors.WithTeamID(req.Team.ID),
	)
}
