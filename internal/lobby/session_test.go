package lobby

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kingrea/matchwarden/internal/eventbus"
)

type fakeActions struct {
	aborts  int
	recasts []string
	replies []string
}

func (a *fakeActions) ExecuteAbort()              { a.aborts++ }
func (a *fakeActions) ExecuteRecast(mapID string) { a.recasts = append(a.recasts, mapID) }
func (a *fakeActions) Reply(text string)          { a.replies = append(a.replies, text) }

type fakePlugin struct {
	name   string
	prefix string
	status string
	help   []string

	mu     sync.Mutex
	events []eventbus.Event
}

func (p *fakePlugin) Name() string          { return p.name }
func (p *fakePlugin) CommandPrefix() string { return p.prefix }
func (p *fakePlugin) OnEvent(ev eventbus.Event) {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
}
func (p *fakePlugin) StatusSummary() string { return p.status }
func (p *fakePlugin) HelpLines() []string   { return p.help }

func (p *fakePlugin) recorded() []eventbus.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]eventbus.Event(nil), p.events...)
}

func joinEvent(id, handle string) eventbus.Event {
	return eventbus.Event{Kind: eventbus.KindParticipantJoined, ParticipantID: id, Handle: handle}
}

func TestProcessKeepsRosterBookkeeping(t *testing.T) {
	s := NewSession("test", &fakeActions{})
	s.process(joinEvent("p1", "alice"))
	s.process(joinEvent("p2", "bob"))
	if got := len(s.Roster()); got != 2 {
		t.Fatalf("roster size = %d, want 2", got)
	}
	s.process(eventbus.Event{Kind: eventbus.KindParticipantLeft, ParticipantID: "p1", Handle: "alice"})
	roster := s.Roster()
	if len(roster) != 1 || roster[0].Handle != "bob" {
		t.Fatalf("unexpected roster after leave: %v", roster)
	}
	s.process(eventbus.Event{Kind: eventbus.KindMatchStarted})
	if !s.MatchActive() {
		t.Fatalf("match should be active")
	}
	s.process(eventbus.Event{Kind: eventbus.KindMatchFinished})
	if s.MatchActive() {
		t.Fatalf("match should have ended")
	}
}

func TestHostHandover(t *testing.T) {
	s := NewSession("test", &fakeActions{})
	s.process(joinEvent("p1", "alice"))
	s.process(eventbus.Event{Kind: eventbus.KindProtocolState, StateKind: StateHostChanged, ParticipantID: "p1"})
	if s.HostID() != "p1" {
		t.Fatalf("host = %q, want p1", s.HostID())
	}
	if s.AuthorityOf("p1") != eventbus.AuthorityHost {
		t.Fatalf("host should resolve to host authority")
	}
	if s.AuthorityOf("p2") != eventbus.AuthorityNone {
		t.Fatalf("non-host should resolve to none")
	}
	// The host leaving clears the slot.
	s.process(eventbus.Event{Kind: eventbus.KindParticipantLeft, ParticipantID: "p1"})
	if s.HostID() != "" {
		t.Fatalf("host slot should clear when the host leaves")
	}
}

func TestCommandRoutingByPrefix(t *testing.T) {
	s := NewSession("test", &fakeActions{})
	abortish := &fakePlugin{name: "abortish", prefix: "!abort"}
	recastish := &fakePlugin{name: "recastish", prefix: "!recast"}
	s.Register(abortish)
	s.Register(recastish)

	s.process(eventbus.Event{Kind: eventbus.KindCommand, Command: "!abort", ParticipantID: "p1"})
	if len(abortish.events) != 1 {
		t.Fatalf("matching plugin missed its command")
	}
	if len(recastish.events) != 0 {
		t.Fatalf("command leaked to a non-matching plugin")
	}

	// Lifecycle events reach every plugin.
	s.process(eventbus.Event{Kind: eventbus.KindMatchStarted})
	if len(abortish.events) != 2 || len(recastish.events) != 1 {
		t.Fatalf("lifecycle event not broadcast: %d/%d", len(abortish.events), len(recastish.events))
	}
}

func TestBuiltinStatusCommand(t *testing.T) {
	actions := &fakeActions{}
	s := NewSession("test", actions)
	s.Register(&fakePlugin{name: "a", prefix: "!a", status: "a: idle"})
	s.Register(&fakePlugin{name: "b", prefix: "!b", status: "b: armed"})
	s.process(eventbus.Event{Kind: eventbus.KindCommand, Command: "!status", ParticipantID: "p1"})
	if len(actions.replies) != 1 {
		t.Fatalf("expected one status reply, got %d", len(actions.replies))
	}
	if want := "a: idle | b: armed"; actions.replies[0] != want {
		t.Fatalf("status reply = %q, want %q", actions.replies[0], want)
	}
}

func TestBuiltinHelpCommand(t *testing.T) {
	actions := &fakeActions{}
	s := NewSession("test", actions)
	s.Register(&fakePlugin{name: "a", prefix: "!a", help: []string{"!a — do the thing"}})
	s.process(eventbus.Event{Kind: eventbus.KindCommand, Command: "!help", ParticipantID: "p1"})
	if len(actions.replies) != 3 {
		t.Fatalf("expected builtin + plugin help lines, got %d", len(actions.replies))
	}
	if !strings.Contains(actions.replies[2], "!a") {
		t.Fatalf("plugin help line missing: %v", actions.replies)
	}
}

func TestRunDrainsPostedEventsInOrder(t *testing.T) {
	s := NewSession("test", &fakeActions{})
	p := &fakePlugin{name: "probe", prefix: "!probe"}
	s.Register(p)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	s.Post(joinEvent("p1", "alice"))
	s.Post(eventbus.Event{Kind: eventbus.KindMatchStarted})
	s.Post(eventbus.Event{Kind: eventbus.KindMatchFinished})

	deadline := time.After(2 * time.Second)
	for {
		if len(p.recorded()) >= 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for events, got %d", len(p.recorded()))
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	events := p.recorded()
	kinds := []eventbus.Kind{events[0].Kind, events[1].Kind, events[2].Kind}
	want := []eventbus.Kind{eventbus.KindParticipantJoined, eventbus.KindMatchStarted, eventbus.KindMatchFinished}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("event %d = %s, want %s", i, kinds[i], want[i])
		}
	}

	// Posting after shutdown must not panic or block.
	s.Post(joinEvent("p2", "bob"))
}

func TestStatusLinesRefreshAfterEachEvent(t *testing.T) {
	s := NewSession("test", &fakeActions{})
	p := &fakePlugin{name: "a", prefix: "!a", status: "a: idle"}
	s.Register(p)
	if got := s.StatusLines(); len(got) != 1 || got[0] != "a: idle" {
		t.Fatalf("initial status = %v", got)
	}
	p.status = "a: busy"
	s.process(eventbus.Event{Kind: eventbus.KindMatchStarted})
	if got := s.StatusLines(); got[0] != "a: busy" {
		t.Fatalf("status not refreshed: %v", got)
	}
}

func TestRecentEventsAreBounded(t *testing.T) {
	s := NewSession("test", &fakeActions{})
	for i := 0; i < recentEventLimit+10; i++ {
		s.process(joinEvent("p", "x"))
	}
	if got := len(s.RecentEvents()); got != recentEventLimit {
		t.Fatalf("recent events = %d, want %d", got, recentEventLimit)
	}
}
