package message

// User agents understood by the platform.
const (
	SlackUserAgent    = "slack"
	IngesterUserAgent = "ingester"
)

// Destination is an abstract addressee for an outbound message.
//
// The set of implementations is closed: ChatDestination and
// CustomEventDestination. Code that switches over destinations should list
// both cases and treat anything else as a programming error.
type Destination interface {
	// UserAgent names the platform integration that delivers to this destination.
	UserAgent() string

	destination()
}

// ChatDestination addresses Slack channels and users of one team.
type ChatDestination struct {
	Team     string   `json:"team"`
	Channels []string `json:"channels,omitempty"`
	Users    []string `json:"users,omitempty"`
}

// UserAgent implements Destination.
func (ChatDestination) UserAgent() string { return SlackUserAgent }

func (ChatDestination) destination() {}

// CustomEventDestination addresses a custom event stream by its root type.
type CustomEventDestination struct {
	RootType string `json:"root_type"`
}

// UserAgent implements Destination.
func (CustomEventDestination) UserAgent() string { return IngesterUserAgent }

func (CustomEventDestination) destination() {}

// AddressSlack creates a destination for the given channels of a team.
func AddressSlack(team string, channels ...string) ChatDestination {
	return ChatDestination{Team: team, Channels: clean(channels)}
}

// AddressUsers creates a destination for direct messages to users of a team.
func AddressUsers(team string, users ...string) ChatDestination {
	return ChatDestination{Team: team, Users: clean(users)}
}

// AddressEvent creates a destination for a custom event stream.
func AddressEvent(rootType string) CustomEventDestination {
	return CustomEventDestination{RootType: rootType}
}

// clean drops empty addresses.
func clean(addresses []string) []string {
	var out []string
	for _, a := range addresses {
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}
