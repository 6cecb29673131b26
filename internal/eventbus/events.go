package eventbus

import "time"

// Kind identifies one lifecycle notification flowing through a lobby session.
type Kind string

const (
	KindParticipantJoined Kind = "participant_joined"
	KindParticipantLeft   Kind = "participant_left"
	KindMatchStarted      Kind = "match_started"
	KindMatchProgress     Kind = "match_progress"
	KindMatchFinished     Kind = "match_finished"
	KindCommand           Kind = "command_received"
	KindProtocolState     Kind = "protocol_state_changed"
	// KindWatchdogDue is posted back onto the session queue by a timer
	// callback so the owning coordinator handles it on the serialized path.
	KindWatchdogDue Kind = "watchdog_due"
)

// Authority ranks how much command power a participant carries.
type Authority int

const (
	AuthorityNone Authority = iota
	AuthorityElevated
	AuthorityHost
)

// String returns the wire spelling used by the protocol bridge.
func (a Authority) String() string {
	switch a {
	case AuthorityHost:
		return "host"
	case AuthorityElevated:
		return "elevated"
	default:
		return "none"
	}
}

// StateMapChanged marks a host-confirmed map selection change inside a
// protocol_state_changed event.
const StateMapChanged = "map_changed"

// RosterEntry is one participant inside a match-start snapshot.
type RosterEntry struct {
	ID     string
	Handle string
}

// Event is a single lobby lifecycle notification. Only the fields relevant
// to the Kind are populated; the rest stay zero.
type Event struct {
	ID   string
	Kind Kind
	Time time.Time

	// Participant events and commands.
	ParticipantID string
	Handle        string
	Authority     Authority

	// Match start snapshot.
	Roster []RosterEntry

	// Match progress.
	Completed int
	InGame    int

	// Command text, including the leading bang prefix.
	Command string

	// Protocol state changes.
	StateKind string
	MapID     string

	// Target names the plugin a synthetic event is addressed to.
	Target string
}
