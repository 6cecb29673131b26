package bridge

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kingrea/matchwarden/internal/eventbus"
)

const (
	// ProtocolVersion identifies the bridge contract version exposed via /health.
	ProtocolVersion = "1.0.0"
	// EventSchemaVersion is the currently supported inbound event version.
	EventSchemaVersion = 1
)

// WireParticipant is the JSON shape of a participant reference.
type WireParticipant struct {
	ID        string `json:"id"`
	Handle    string `json:"handle"`
	Authority string `json:"authority,omitempty"`
}

// Event captures a single lifecycle notification delivered by the lobby
// transport.
type Event struct {
	Version     int               `json:"version"`
	EventID     string            `json:"event_id"`
	Type        string            `json:"type"`
	LobbyID     string            `json:"lobby_id"`
	ClientTime  time.Time         `json:"client_time"`
	ServerTime  time.Time         `json:"server_time"`
	Participant *WireParticipant  `json:"participant,omitempty"`
	Roster      []WireParticipant `json:"roster,omitempty"`
	Completed   int               `json:"completed,omitempty"`
	InGame      int               `json:"in_game,omitempty"`
	Command     string            `json:"command,omitempty"`
	StateKind   string            `json:"state_kind,omitempty"`
	MapID       string            `json:"map_id,omitempty"`
}

// Normalize applies defaults and canonical formatting before validation.
// Events arriving without an id get a fresh one so deduplication still has
// a key to work with.
func (e *Event) Normalize() {
	if e == nil {
		return
	}
	if e.Version == 0 {
		e.Version = EventSchemaVersion
	}
	e.EventID = strings.TrimSpace(e.EventID)
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	e.Type = strings.TrimSpace(strings.ToLower(e.Type))
	e.LobbyID = strings.TrimSpace(e.LobbyID)
	e.Command = strings.TrimSpace(e.Command)
	e.StateKind = strings.TrimSpace(strings.ToLower(e.StateKind))
	e.MapID = strings.TrimSpace(e.MapID)
	if e.Participant != nil {
		e.Participant.ID = strings.TrimSpace(e.Participant.ID)
		e.Participant.Handle = strings.TrimSpace(e.Participant.Handle)
		e.Participant.Authority = strings.TrimSpace(strings.ToLower(e.Participant.Authority))
	}
}

// StampServerTime overwrites ServerTime with the supplied clock reading (UTC).
func (e *Event) StampServerTime(now time.Time) {
	if e == nil {
		return
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	e.ServerTime = now.UTC()
}

// Validate enforces baseline schema requirements for incoming events.
func (e Event) Validate() error {
	if e.Version != EventSchemaVersion {
		return fmt.Errorf("version %d not supported", e.Version)
	}
	if e.LobbyID == "" {
		return errors.New("lobby_id is required")
	}
	kind, ok := kindForType(e.Type)
	if !ok {
		return fmt.Errorf("type %q not recognized", e.Type)
	}
	switch kind {
	case eventbus.KindParticipantJoined, eventbus.KindParticipantLeft, eventbus.KindCommand:
		if e.Participant == nil || e.Participant.ID == "" {
			return fmt.Errorf("participant is required for %s", e.Type)
		}
	case eventbus.KindMatchProgress:
		if e.InGame < 0 || e.Completed < 0 {
			return errors.New("progress counts must be >= 0")
		}
	}
	if kind == eventbus.KindCommand && e.Command == "" {
		return errors.New("command is required for command_received")
	}
	return nil
}

// ToEvent converts the wire representation into the session event type.
func (e Event) ToEvent() eventbus.Event {
	kind, _ := kindForType(e.Type)
	out := eventbus.Event{
		ID:        e.EventID,
		Kind:      kind,
		Time:      e.ServerTime,
		Completed: e.Completed,
		InGame:    e.InGame,
		Command:   e.Command,
		StateKind: e.StateKind,
		MapID:     e.MapID,
	}
	if e.Participant != nil {
		out.ParticipantID = e.Participant.ID
		out.Handle = e.Participant.Handle
		out.Authority = parseAuthority(e.Participant.Authority)
	}
	if len(e.Roster) > 0 {
		out.Roster = make([]eventbus.RosterEntry, 0, len(e.Roster))
		for _, p := range e.Roster {
			out.Roster = append(out.Roster, eventbus.RosterEntry{ID: p.ID, Handle: p.Handle})
		}
	}
	return out
}

func kindForType(t string) (eventbus.Kind, bool) {
	switch eventbus.Kind(t) {
	case eventbus.KindParticipantJoined,
		eventbus.KindParticipantLeft,
		eventbus.KindMatchStarted,
		eventbus.KindMatchProgress,
		eventbus.KindMatchFinished,
		eventbus.KindCommand,
		eventbus.KindProtocolState:
		return eventbus.Kind(t), true
	default:
		return "", false
	}
}

func parseAuthority(value string) eventbus.Authority {
	switch value {
	case "host":
		return eventbus.AuthorityHost
	case "elevated", "referee":
		return eventbus.AuthorityElevated
	default:
		return eventbus.AuthorityNone
	}
}

// EventProcessor consumes validated events.
type EventProcessor interface {
	HandleEvent(Event) error
}

// EventProcessorFunc adapts a function into an EventProcessor.
type EventProcessorFunc func(Event) error

// HandleEvent executes f(e).
func (f EventProcessorFunc) HandleEvent(e Event) error {
	if f == nil {
		return nil
	}
	return f(e)
}

// Logger records bridge status information. It matches logging.Logger's signature.
type Logger interface {
	Printf(format string, args ...any)
}

type healthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	SessionReady  bool   `json:"session_ready"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

type eventResponse struct {
	Status     string    `json:"status"`
	ServerTime time.Time `json:"server_time"`
}
