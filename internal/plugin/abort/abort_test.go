package abort

import (
	"fmt"
	"testing"
	"time"

	"github.com/kingrea/matchwarden/internal/eventbus"
	"github.com/kingrea/matchwarden/internal/plugin"
	"github.com/kingrea/matchwarden/internal/watchdog"
)

type fakeHost struct {
	aborts  int
	recasts []string
	replies []string
	posted  []eventbus.Event
}

func (h *fakeHost) ExecuteAbort()              { h.aborts++ }
func (h *fakeHost) ExecuteRecast(mapID string) { h.recasts = append(h.recasts, mapID) }
func (h *fakeHost) Reply(text string)          { h.replies = append(h.replies, text) }
func (h *fakeHost) Post(ev eventbus.Event)     { h.posted = append(h.posted, ev) }

type fakeTimer struct{ stopped bool }

func (t *fakeTimer) Stop() bool {
	active := !t.stopped
	t.stopped = true
	return active
}

type fakeScheduler struct {
	callbacks []func()
}

func (f *fakeScheduler) schedule(d time.Duration, fn func()) watchdog.TimerHandle {
	f.callbacks = append(f.callbacks, fn)
	return &fakeTimer{}
}

func defaultTestOptions() Options {
	return Options{
		VoteRate:       0.5,
		VoteMin:        2,
		AutoAbortRate:  0.8,
		AutoAbortDelay: 30 * time.Second,
	}
}

func newTestCoordinator(opts Options) (*Coordinator, *fakeHost, *fakeScheduler) {
	host := &fakeHost{}
	sched := &fakeScheduler{}
	c := NewCoordinator(host, opts, watchdog.WithScheduler(sched.schedule))
	return c, host, sched
}

func matchStartedEvent(size int) eventbus.Event {
	roster := make([]eventbus.RosterEntry, 0, size)
	for i := 1; i <= size; i++ {
		id := fmt.Sprintf("p%d", i)
		roster = append(roster, eventbus.RosterEntry{ID: id, Handle: id})
	}
	return eventbus.Event{Kind: eventbus.KindMatchStarted, Roster: roster}
}

func voteEvent(id string) eventbus.Event {
	return eventbus.Event{
		Kind:          eventbus.KindCommand,
		Command:       "!abort",
		ParticipantID: id,
		Handle:        id,
		Authority:     eventbus.AuthorityNone,
	}
}

func TestVotePassesAtThreshold(t *testing.T) {
	c, host, _ := newTestCoordinator(defaultTestOptions())
	c.OnEvent(matchStartedEvent(8)) // threshold = ceil(8 * 0.5) = 4

	for i := 1; i <= 3; i++ {
		c.OnEvent(voteEvent(fmt.Sprintf("p%d", i)))
	}
	if host.aborts != 0 {
		t.Fatalf("3 of 4 votes aborted the match")
	}
	if len(host.replies) != 3 {
		t.Fatalf("expected 3 vote progress replies, got %d", len(host.replies))
	}
	c.OnEvent(voteEvent("p4"))
	if host.aborts != 1 {
		t.Fatalf("4th vote should trigger exactly one abort, got %d", host.aborts)
	}
	// Window is spent; further votes are ignored.
	c.OnEvent(voteEvent("p5"))
	if host.aborts != 1 {
		t.Fatalf("vote after trigger re-fired the action")
	}
}

func TestRepeatVoteDoesNotAdvanceCount(t *testing.T) {
	c, host, _ := newTestCoordinator(defaultTestOptions())
	c.OnEvent(matchStartedEvent(4)) // threshold = 2
	c.OnEvent(voteEvent("p1"))
	c.OnEvent(voteEvent("p1"))
	if host.aborts != 0 {
		t.Fatalf("a single participant voting twice reached quorum")
	}
	c.OnEvent(voteEvent("p2"))
	if host.aborts != 1 {
		t.Fatalf("second distinct vote should pass")
	}
}

func TestVoteOutsideMatchIgnored(t *testing.T) {
	c, host, _ := newTestCoordinator(defaultTestOptions())
	c.OnEvent(voteEvent("p1"))
	if host.aborts != 0 || len(host.replies) != 0 {
		t.Fatalf("vote with no match in progress must be silently dropped")
	}
}

func TestPrivilegedCommandBypassesVote(t *testing.T) {
	c, host, _ := newTestCoordinator(defaultTestOptions())
	c.OnEvent(matchStartedEvent(4)) // threshold = 2
	c.OnEvent(voteEvent("p1"))

	ev := voteEvent("p2")
	ev.Authority = eventbus.AuthorityHost
	c.OnEvent(ev)
	if host.aborts != 1 {
		t.Fatalf("privileged command should abort immediately, got %d", host.aborts)
	}
	// A vote arriving one tick later lands in a reset window.
	c.OnEvent(voteEvent("p3"))
	if host.aborts != 1 {
		t.Fatalf("late vote re-triggered the abort")
	}
}

func TestAutoAbortArmsAtCompletionThreshold(t *testing.T) {
	c, host, sched := newTestCoordinator(defaultTestOptions())
	c.OnEvent(matchStartedEvent(5))
	c.OnEvent(eventbus.Event{Kind: eventbus.KindMatchProgress, Completed: 3, InGame: 5})
	if len(sched.callbacks) != 0 {
		t.Fatalf("3 of 4 required completions armed the watchdog early")
	}
	c.OnEvent(eventbus.Event{Kind: eventbus.KindMatchProgress, Completed: 4, InGame: 5})
	if len(sched.callbacks) != 1 {
		t.Fatalf("4 of 4 required completions should arm the watchdog")
	}
	if host.aborts != 0 {
		t.Fatalf("arming must not abort before the delay elapses")
	}

	// Deadline elapses: the timer posts back onto the serialized path.
	sched.callbacks[0]()
	if len(host.posted) != 1 || host.posted[0].Kind != eventbus.KindWatchdogDue {
		t.Fatalf("watchdog fire should post a watchdog_due event, got %+v", host.posted)
	}
	c.OnEvent(host.posted[0])
	if host.aborts != 1 {
		t.Fatalf("watchdog due event should trigger the abort")
	}
}

func TestRosterShrinkKeepsDeadlineWhenRequirementUnchanged(t *testing.T) {
	c, host, sched := newTestCoordinator(defaultTestOptions())
	c.OnEvent(matchStartedEvent(5))
	c.OnEvent(eventbus.Event{Kind: eventbus.KindMatchProgress, Completed: 4, InGame: 5})
	if len(sched.callbacks) != 1 {
		t.Fatalf("watchdog should be armed")
	}
	// inGame 5 -> 4: required recomputes to ceil(4*0.8) = 4, no change.
	c.OnEvent(eventbus.Event{Kind: eventbus.KindParticipantLeft, ParticipantID: "p5"})
	if host.aborts != 0 {
		t.Fatalf("unchanged requirement should keep waiting for the deadline")
	}
	if len(sched.callbacks) != 1 {
		t.Fatalf("the pending deadline should not have been replaced")
	}
}

func TestRosterShrinkPastRequirementFiresImmediately(t *testing.T) {
	c, host, _ := newTestCoordinator(defaultTestOptions())
	c.OnEvent(matchStartedEvent(5))
	c.OnEvent(eventbus.Event{Kind: eventbus.KindMatchProgress, Completed: 4, InGame: 5})
	c.OnEvent(eventbus.Event{Kind: eventbus.KindParticipantLeft, ParticipantID: "p5"})
	// inGame 4 -> 3: required drops to 3, already exceeded by 4 completions.
	c.OnEvent(eventbus.Event{Kind: eventbus.KindParticipantLeft, ParticipantID: "p4"})
	if host.aborts != 1 {
		t.Fatalf("requirement lowered below completions should abort now, got %d", host.aborts)
	}
}

func TestZeroDelayAbortsImmediately(t *testing.T) {
	opts := defaultTestOptions()
	opts.AutoAbortDelay = 0
	c, host, sched := newTestCoordinator(opts)
	c.OnEvent(matchStartedEvent(5))
	c.OnEvent(eventbus.Event{Kind: eventbus.KindMatchProgress, Completed: 4, InGame: 5})
	if host.aborts != 1 {
		t.Fatalf("zero delay should abort without arming")
	}
	if len(sched.callbacks) != 0 {
		t.Fatalf("zero delay must not schedule a timer")
	}
}

func TestMatchFinishedDisarmsAndResets(t *testing.T) {
	c, host, sched := newTestCoordinator(defaultTestOptions())
	c.OnEvent(matchStartedEvent(5))
	c.OnEvent(eventbus.Event{Kind: eventbus.KindMatchProgress, Completed: 4, InGame: 5})
	c.OnEvent(eventbus.Event{Kind: eventbus.KindMatchFinished})

	// A timer callback already queued when the match ended must go nowhere.
	sched.callbacks[0]()
	if len(host.posted) != 0 {
		t.Fatalf("disarmed watchdog still posted a fire event")
	}
	// Even a stale due event that slipped into the queue is ignored.
	c.OnEvent(eventbus.Event{Kind: eventbus.KindWatchdogDue, Target: ID})
	if host.aborts != 0 {
		t.Fatalf("stale watchdog due event aborted after match end")
	}
}

func TestVotePassAfterRosterShrink(t *testing.T) {
	opts := defaultTestOptions()
	opts.VoteMin = 0
	c, host, _ := newTestCoordinator(opts)
	c.OnEvent(matchStartedEvent(6)) // threshold = 3
	c.OnEvent(voteEvent("p1"))
	c.OnEvent(voteEvent("p2"))
	if host.aborts != 0 {
		t.Fatalf("2 of 3 votes should not pass yet")
	}
	// Roster drops to 4: threshold recomputes to 2, already met.
	c.OnEvent(eventbus.Event{Kind: eventbus.KindParticipantLeft, ParticipantID: "p6"})
	c.OnEvent(eventbus.Event{Kind: eventbus.KindParticipantLeft, ParticipantID: "p5"})
	if host.aborts != 1 {
		t.Fatalf("shrinking roster should retroactively pass the vote, got %d", host.aborts)
	}
}

func TestEmptyRosterClearsEverything(t *testing.T) {
	c, host, _ := newTestCoordinator(defaultTestOptions())
	c.OnEvent(matchStartedEvent(2))
	c.OnEvent(voteEvent("p1"))
	c.OnEvent(eventbus.Event{Kind: eventbus.KindParticipantLeft, ParticipantID: "p1"})
	c.OnEvent(eventbus.Event{Kind: eventbus.KindParticipantLeft, ParticipantID: "p2"})
	if host.aborts != 0 {
		t.Fatalf("nothing left to coordinate, abort must not fire")
	}
	if got := c.StatusSummary(); got != "abort: collecting votes 0/2" {
		t.Fatalf("unexpected status after roster emptied: %q", got)
	}
}

func TestNewMatchResetsVoteState(t *testing.T) {
	c, host, _ := newTestCoordinator(defaultTestOptions())
	c.OnEvent(matchStartedEvent(4)) // threshold = 2
	c.OnEvent(voteEvent("p1"))
	c.OnEvent(eventbus.Event{Kind: eventbus.KindMatchFinished})
	c.OnEvent(matchStartedEvent(4))
	c.OnEvent(voteEvent("p2"))
	if host.aborts != 0 {
		t.Fatalf("votes must not carry across match cycles")
	}
}

func TestOptionsFromConfigDefaults(t *testing.T) {
	opts := OptionsFromConfig(plugin.Config{})
	if opts.VoteRate != 0.5 || opts.VoteMin != 2 {
		t.Fatalf("unexpected vote defaults: %+v", opts)
	}
	if opts.AutoAbortRate != 0.8 || opts.AutoAbortDelay != 30*time.Second {
		t.Fatalf("unexpected auto-abort defaults: %+v", opts)
	}
}

func TestOptionsFromConfigOverrides(t *testing.T) {
	opts := OptionsFromConfig(plugin.Config{
		"vote_rate":           0.75,
		"vote_min":            1,
		"auto_abort_rate":     0.9,
		"auto_abort_delay_ms": 5000,
	})
	if opts.VoteRate != 0.75 || opts.VoteMin != 1 {
		t.Fatalf("vote overrides not applied: %+v", opts)
	}
	if opts.AutoAbortRate != 0.9 || opts.AutoAbortDelay != 5*time.Second {
		t.Fatalf("auto-abort overrides not applied: %+v", opts)
	}
}

func TestFactoryRejectsInvalidOptions(t *testing.T) {
	factory := Factory(nil)
	if _, err := factory(&fakeHost{}, plugin.Config{"vote_rate": 1.5}); err == nil {
		t.Fatalf("expected vote_rate validation error")
	}
	if _, err := factory(&fakeHost{}, plugin.Config{"auto_abort_rate": 0.0}); err == nil {
		t.Fatalf("expected auto_abort_rate validation error")
	}
}
