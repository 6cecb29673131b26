package abort

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/kingrea/matchwarden/internal/eventbus"
	"github.com/kingrea/matchwarden/internal/plugin"
	"github.com/kingrea/matchwarden/internal/quorum"
	"github.com/kingrea/matchwarden/internal/watchdog"
)

// ID is the registry identifier for the abort coordinator.
const ID = "abort"

const commandPrefix = "!abort"

const (
	defaultVoteRate       = 0.5
	defaultVoteMin        = 2
	defaultAutoAbortRate  = 0.8
	defaultAutoAbortDelay = 30 * time.Second
)

// Options captures the recognized configuration surface of the abort
// coordinator.
type Options struct {
	// VoteRate is the fraction of the roster whose votes pass an abort.
	VoteRate float64
	// VoteMin floors the vote threshold regardless of roster size.
	VoteMin int
	// AutoAbortRate is the fraction of in-game participants whose
	// completion arms the delayed auto-abort.
	AutoAbortRate float64
	// AutoAbortDelay is how long the watchdog waits before aborting on its
	// own. Zero aborts immediately once the completion threshold is met.
	AutoAbortDelay time.Duration
}

// OptionsFromConfig decodes the plugin config block, applying defaults for
// absent keys.
func OptionsFromConfig(cfg plugin.Config) Options {
	return Options{
		VoteRate:       cfg.Float("vote_rate", defaultVoteRate),
		VoteMin:        cfg.Int("vote_min", defaultVoteMin),
		AutoAbortRate:  cfg.Float("auto_abort_rate", defaultAutoAbortRate),
		AutoAbortDelay: time.Duration(cfg.Int("auto_abort_delay_ms", int(defaultAutoAbortDelay/time.Millisecond))) * time.Millisecond,
	}
}

func (o Options) validate() error {
	if o.VoteRate <= 0 || o.VoteRate > 1 {
		return fmt.Errorf("abort: vote_rate must be in (0, 1], got %v", o.VoteRate)
	}
	if o.VoteMin < 0 {
		return fmt.Errorf("abort: vote_min must be >= 0, got %d", o.VoteMin)
	}
	if o.AutoAbortRate <= 0 || o.AutoAbortRate > 1 {
		return fmt.Errorf("abort: auto_abort_rate must be in (0, 1], got %v", o.AutoAbortRate)
	}
	if o.AutoAbortDelay < 0 {
		return fmt.Errorf("abort: auto_abort_delay_ms must be >= 0")
	}
	return nil
}

type phase int

const (
	phaseIdle phase = iota
	phaseCollecting
	phaseArmed
)

// Coordinator gates match aborts behind a roster vote, a privileged
// command, and a delayed auto-abort once enough participants finished. All
// state mutations happen on the session's serialized event path; the
// watchdog callback posts itself back onto that path instead of touching
// state from the timer goroutine.
type Coordinator struct {
	host   plugin.Host
	logger plugin.Logger
	opts   Options

	voter *quorum.Voter
	dog   *watchdog.Watchdog

	phase          phase
	completed      int
	inGame         int
	requiredAtArm  int
	abortsExecuted int
}

// Factory returns a registry factory that wires the shared logger into
// every constructed coordinator.
func Factory(logger plugin.Logger) plugin.Factory {
	return func(host plugin.Host, cfg plugin.Config) (plugin.Plugin, error) {
		opts := OptionsFromConfig(cfg)
		if err := opts.validate(); err != nil {
			return nil, err
		}
		c := NewCoordinator(host, opts)
		c.logger = logger
		return c, nil
	}
}

// NewCoordinator builds an idle coordinator. Watchdog options let tests
// substitute a deterministic scheduler.
func NewCoordinator(host plugin.Host, opts Options, wopts ...watchdog.Option) *Coordinator {
	return &Coordinator{
		host:  host,
		opts:  opts,
		voter: quorum.New(quorum.Policy{Rate: opts.VoteRate, Minimum: opts.VoteMin}),
		dog:   watchdog.New(wopts...),
	}
}

// Name implements plugin.Plugin.
func (c *Coordinator) Name() string { return ID }

// CommandPrefix implements plugin.Plugin.
func (c *Coordinator) CommandPrefix() string { return commandPrefix }

// OnEvent implements plugin.Plugin.
func (c *Coordinator) OnEvent(ev eventbus.Event) {
	switch ev.Kind {
	case eventbus.KindMatchStarted:
		c.matchStarted(ev)
	case eventbus.KindParticipantLeft:
		c.participantLeft(ev)
	case eventbus.KindMatchProgress:
		c.progress(ev)
	case eventbus.KindCommand:
		c.command(ev)
	case eventbus.KindWatchdogDue:
		if ev.Target == ID {
			c.watchdogDue()
		}
	case eventbus.KindMatchFinished:
		c.matchFinished()
	}
}

func (c *Coordinator) matchStarted(ev eventbus.Event) {
	ids := make([]string, 0, len(ev.Roster))
	for _, entry := range ev.Roster {
		ids = append(ids, entry.ID)
	}
	c.voter.SetRoster(ids)
	c.voter.ClearVotes()
	c.dog.Disarm()
	c.completed = 0
	c.inGame = len(ids)
	c.requiredAtArm = 0
	c.phase = phaseCollecting
}

func (c *Coordinator) participantLeft(ev eventbus.Event) {
	if c.phase == phaseIdle {
		return
	}
	c.voter.RemoveParticipant(ev.ParticipantID)
	if c.inGame > 0 {
		c.inGame--
	}
	if c.voter.RosterSize() == 0 {
		// Nothing left to coordinate.
		c.voter.ClearVotes()
		c.dog.Disarm()
		c.requiredAtArm = 0
		c.phase = phaseCollecting
		return
	}
	// A shrinking roster can retroactively satisfy either trigger.
	if c.voter.Passed() {
		c.trigger("vote passed after roster shrink")
		return
	}
	c.reevaluateAuto()
}

func (c *Coordinator) progress(ev eventbus.Event) {
	if c.phase == phaseIdle {
		return
	}
	c.completed = ev.Completed
	c.inGame = ev.InGame
	c.reevaluateAuto()
}

func (c *Coordinator) reevaluateAuto() {
	if c.inGame <= 0 || c.completed <= 0 {
		return
	}
	required := int(math.Ceil(float64(c.inGame) * c.opts.AutoAbortRate))
	if required <= 0 {
		return
	}
	switch c.phase {
	case phaseCollecting:
		if c.completed >= required {
			c.armOrFire(required)
		}
	case phaseArmed:
		// The pending deadline was set for a larger requirement; once the
		// roster shrinks below what has already completed there is nothing
		// to wait for.
		if required < c.requiredAtArm && c.completed >= required {
			c.trigger("auto-abort requirement already met")
		}
	}
}

func (c *Coordinator) armOrFire(required int) {
	if c.opts.AutoAbortDelay <= 0 {
		c.trigger("auto-abort")
		return
	}
	c.dog.Arm(c.opts.AutoAbortDelay, func() {
		c.host.Post(eventbus.Event{Kind: eventbus.KindWatchdogDue, Target: ID})
	})
	c.requiredAtArm = required
	c.phase = phaseArmed
}

func (c *Coordinator) command(ev eventbus.Event) {
	if c.phase == phaseIdle {
		c.logf("abort: command outside match window ignored")
		return
	}
	if firstField(ev.Command) != commandPrefix {
		return
	}
	if ev.Authority >= eventbus.AuthorityElevated {
		c.trigger("privileged command from " + ev.Handle)
		return
	}
	if c.voter.CastVote(ev.ParticipantID) {
		if c.voter.Passed() {
			c.trigger("vote passed")
			return
		}
		c.host.Reply(fmt.Sprintf("Abort vote registered: %d/%d", c.voter.VoteCount(), c.voter.Threshold()))
	}
}

func (c *Coordinator) watchdogDue() {
	if c.phase != phaseArmed {
		// Stale fire; the window closed before the queue drained.
		return
	}
	c.trigger("auto-abort deadline reached")
}

func (c *Coordinator) matchFinished() {
	c.dog.Disarm()
	c.voter.ClearVotes()
	c.completed = 0
	c.inGame = 0
	c.requiredAtArm = 0
	c.phase = phaseIdle
}

// trigger executes the abort exactly once per match window. Setting the
// phase to idle before the callback rejects re-entrant triggers from a vote
// and a simultaneously queued watchdog fire.
func (c *Coordinator) trigger(reason string) {
	if c.phase == phaseIdle {
		return
	}
	c.phase = phaseIdle
	c.dog.Disarm()
	c.voter.ClearVotes()
	c.requiredAtArm = 0
	c.abortsExecuted++
	c.logf("abort: executing (%s)", reason)
	c.host.ExecuteAbort()
}

// StatusSummary implements plugin.Plugin.
func (c *Coordinator) StatusSummary() string {
	switch c.phase {
	case phaseCollecting:
		return fmt.Sprintf("abort: collecting votes %d/%d", c.voter.VoteCount(), c.voter.Threshold())
	case phaseArmed:
		if deadline, ok := c.dog.Deadline(); ok {
			return fmt.Sprintf("abort: auto-abort in %s", time.Until(deadline).Round(time.Second))
		}
		return "abort: auto-abort pending"
	default:
		return "abort: idle"
	}
}

// HelpLines implements plugin.Plugin.
func (c *Coordinator) HelpLines() []string {
	return []string{
		commandPrefix + " — vote to abort the current match; the lobby host aborts immediately",
	}
}

func (c *Coordinator) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

func firstField(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
