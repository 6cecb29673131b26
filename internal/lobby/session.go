package lobby

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kingrea/matchwarden/internal/eventbus"
	"github.com/kingrea/matchwarden/internal/plugin"
)

const (
	defaultQueueCapacity = 256
	recentEventLimit     = 32
)

// StateHostChanged marks a lobby host handover inside a
// protocol_state_changed event.
const StateHostChanged = "host_changed"

// Session serializes all event delivery and state mutation for one lobby.
// Events enter through Post from any goroutine and are drained by a single
// Run loop, so plugins never observe two events concurrently and need no
// locking of their own.
type Session struct {
	name    string
	actions Actions
	logger  Logger
	bus     *eventbus.Bus
	queue   chan eventbus.Event
	plugins []plugin.Plugin
	subs    []eventbus.Subscription

	mu          sync.RWMutex
	roster      map[string]Participant
	hostID      string
	matchActive bool
	statusLines []string
	recent      []string
	closed      bool
}

// SessionOption customizes Session construction.
type SessionOption func(*Session)

// WithLogger injects the shared logger.
func WithLogger(logger Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithQueueCapacity overrides the event queue depth.
func WithQueueCapacity(capacity int) SessionOption {
	return func(s *Session) {
		if capacity > 0 {
			s.queue = make(chan eventbus.Event, capacity)
		}
	}
}

// NewSession builds a session for one lobby.
func NewSession(name string, actions Actions, opts ...SessionOption) *Session {
	s := &Session{
		name:    name,
		actions: actions,
		queue:   make(chan eventbus.Event, defaultQueueCapacity),
		roster:  map[string]Participant{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.bus = eventbus.NewBus(eventbus.BusWithLogger(s.logger))
	return s
}

// Register wires a plugin into the session's event stream. Command events
// are delivered only to the plugin whose prefix matches the command's first
// field; lifecycle events reach every plugin.
func (s *Session) Register(p plugin.Plugin) {
	sub := s.bus.Subscribe(func(ev eventbus.Event) {
		if ev.Kind == eventbus.KindCommand && firstField(ev.Command) != p.CommandPrefix() {
			return
		}
		p.OnEvent(ev)
	})
	s.plugins = append(s.plugins, p)
	s.subs = append(s.subs, sub)
	s.refreshStatus()
}

// Post enqueues an event for the serialized loop. Posting to a closed or
// saturated session drops the event with a log line rather than blocking
// the caller.
func (s *Session) Post(ev eventbus.Event) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return
	}
	select {
	case s.queue <- ev:
	default:
		s.logf("lobby: queue full, dropped %s", ev.Kind)
	}
}

// Run drains the queue until the context is cancelled. Events are processed
// strictly in post order.
func (s *Session) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.close()
			return
		case ev := <-s.queue:
			s.process(ev)
		}
	}
}

func (s *Session) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	for _, sub := range s.subs {
		sub.Close()
	}
}

func (s *Session) process(ev eventbus.Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	s.apply(ev)
	s.bus.Publish(ev)
	s.refreshStatus()
	s.remember(ev)
}

// apply performs the session's own bookkeeping before plugins see the event.
func (s *Session) apply(ev eventbus.Event) {
	switch ev.Kind {
	case eventbus.KindParticipantJoined:
		s.mu.Lock()
		s.roster[ev.ParticipantID] = Participant{ID: ev.ParticipantID, Handle: ev.Handle}
		s.mu.Unlock()
	case eventbus.KindParticipantLeft:
		s.mu.Lock()
		delete(s.roster, ev.ParticipantID)
		if s.hostID == ev.ParticipantID {
			s.hostID = ""
		}
		s.mu.Unlock()
	case eventbus.KindMatchStarted:
		s.mu.Lock()
		s.matchActive = true
		s.mu.Unlock()
	case eventbus.KindMatchFinished:
		s.mu.Lock()
		s.matchActive = false
		s.mu.Unlock()
	case eventbus.KindProtocolState:
		if ev.StateKind == StateHostChanged {
			s.mu.Lock()
			s.hostID = ev.ParticipantID
			s.mu.Unlock()
		}
	case eventbus.KindCommand:
		s.builtinCommand(ev)
	}
}

func (s *Session) builtinCommand(ev eventbus.Event) {
	switch firstField(ev.Command) {
	case "!status":
		s.actions.Reply(strings.Join(s.StatusLines(), " | "))
	case "!help":
		for _, line := range s.helpLines() {
			s.actions.Reply(line)
		}
	}
}

func (s *Session) helpLines() []string {
	lines := []string{
		"!status — show coordinator state",
		"!help — list available commands",
	}
	for _, p := range s.plugins {
		lines = append(lines, p.HelpLines()...)
	}
	return lines
}

func (s *Session) refreshStatus() {
	lines := make([]string, 0, len(s.plugins))
	for _, p := range s.plugins {
		lines = append(lines, p.StatusSummary())
	}
	s.mu.Lock()
	s.statusLines = lines
	s.mu.Unlock()
}

func (s *Session) remember(ev eventbus.Event) {
	line := describe(ev)
	if line == "" {
		return
	}
	s.mu.Lock()
	s.recent = append(s.recent, line)
	if len(s.recent) > recentEventLimit {
		s.recent = s.recent[len(s.recent)-recentEventLimit:]
	}
	s.mu.Unlock()
}

func describe(ev eventbus.Event) string {
	switch ev.Kind {
	case eventbus.KindParticipantJoined:
		return fmt.Sprintf("%s joined", ev.Handle)
	case eventbus.KindParticipantLeft:
		return fmt.Sprintf("%s left", ev.Handle)
	case eventbus.KindMatchStarted:
		return fmt.Sprintf("match started with %d participants", len(ev.Roster))
	case eventbus.KindMatchProgress:
		return fmt.Sprintf("progress %d/%d finished", ev.Completed, ev.InGame)
	case eventbus.KindMatchFinished:
		return "match finished"
	case eventbus.KindCommand:
		return fmt.Sprintf("%s: %s", ev.Handle, ev.Command)
	case eventbus.KindProtocolState:
		return fmt.Sprintf("protocol state: %s", ev.StateKind)
	default:
		return ""
	}
}

// Name returns the lobby name.
func (s *Session) Name() string {
	return s.name
}

// Roster returns the current lobby membership sorted by handle.
func (s *Session) Roster() []Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	members := make([]Participant, 0, len(s.roster))
	for _, p := range s.roster {
		members = append(members, p)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Handle < members[j].Handle })
	return members
}

// HostID returns the current lobby host's participant id, if known.
func (s *Session) HostID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hostID
}

// AuthorityOf resolves the command authority of a participant from the
// session's own bookkeeping. Transports that know better stamp authority on
// the event directly.
func (s *Session) AuthorityOf(id string) eventbus.Authority {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id != "" && id == s.hostID {
		return eventbus.AuthorityHost
	}
	return eventbus.AuthorityNone
}

// MatchActive reports whether a match is currently running.
func (s *Session) MatchActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.matchActive
}

// StatusLines returns the latest per-plugin status summaries.
func (s *Session) StatusLines() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.statusLines...)
}

// RecentEvents returns the most recent event descriptions, oldest first.
func (s *Session) RecentEvents() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.recent...)
}

// ExecuteAbort implements plugin.Host.
func (s *Session) ExecuteAbort() {
	s.logf("lobby %s: executing abort", s.name)
	s.actions.ExecuteAbort()
}

// ExecuteRecast implements plugin.Host.
func (s *Session) ExecuteRecast(mapID string) {
	s.logf("lobby %s: executing recast of %s", s.name, mapID)
	s.actions.ExecuteRecast(mapID)
}

// Reply implements plugin.Host.
func (s *Session) Reply(text string) {
	s.actions.Reply(text)
}

func (s *Session) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

func firstField(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
