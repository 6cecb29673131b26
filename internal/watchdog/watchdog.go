package watchdog

import (
	"sync"
	"time"
)

// State enumerates the lifecycle of the single timer slot.
type State int

const (
	StateIdle State = iota
	StateArmed
	StateFired
)

// String renders the state for status summaries.
func (s State) String() string {
	switch s {
	case StateArmed:
		return "armed"
	case StateFired:
		return "fired"
	default:
		return "idle"
	}
}

// TimerHandle is the cancellation surface of a scheduled callback.
type TimerHandle interface {
	Stop() bool
}

// Scheduler runs fn after d on some other goroutine. The default wraps
// time.AfterFunc; tests substitute a manual trigger.
type Scheduler func(d time.Duration, fn func()) TimerHandle

func defaultScheduler(d time.Duration, fn func()) TimerHandle {
	return time.AfterFunc(d, fn)
}

// Watchdog is a single-slot, cancellable, one-shot delayed trigger. Arming
// replaces any pending timer, firing happens at most once per arm, and a
// generation token guarantees a callback already in flight when Disarm
// returns can never invoke its onFire.
type Watchdog struct {
	mu         sync.Mutex
	state      State
	generation uint64
	deadline   time.Time
	handle     TimerHandle
	schedule   Scheduler
	now        func() time.Time
}

// Option customizes Watchdog construction.
type Option func(*Watchdog)

// WithScheduler overrides the timer factory, letting tests fire callbacks
// deterministically.
func WithScheduler(s Scheduler) Option {
	return func(w *Watchdog) {
		if s != nil {
			w.schedule = s
		}
	}
}

// WithClock overrides the wall clock used for deadline bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(w *Watchdog) {
		if now != nil {
			w.now = now
		}
	}
}

// New returns an idle watchdog.
func New(opts ...Option) *Watchdog {
	w := &Watchdog{
		schedule: defaultScheduler,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// Arm schedules onFire after delay, replacing any pending timer. A
// non-positive delay means the delayed trigger is disabled and Arm is a
// no-op.
func (w *Watchdog) Arm(delay time.Duration, onFire func()) {
	if delay <= 0 || onFire == nil {
		return
	}
	w.mu.Lock()
	if w.handle != nil {
		w.handle.Stop()
		w.handle = nil
	}
	w.generation++
	gen := w.generation
	w.state = StateArmed
	w.deadline = w.now().Add(delay)
	w.handle = w.schedule(delay, func() {
		w.fire(gen, onFire)
	})
	w.mu.Unlock()
}

func (w *Watchdog) fire(gen uint64, onFire func()) {
	w.mu.Lock()
	if w.state != StateArmed || gen != w.generation {
		// Stale callback from a replaced or disarmed timer.
		w.mu.Unlock()
		return
	}
	w.state = StateFired
	w.deadline = time.Time{}
	w.handle = nil
	w.mu.Unlock()
	onFire()
}

// Disarm cancels any pending timer and returns the watchdog to idle. Safe
// to call in any state; after it returns, no onFire from an earlier Arm can
// run.
func (w *Watchdog) Disarm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.generation++
	if w.handle != nil {
		w.handle.Stop()
		w.handle = nil
	}
	w.state = StateIdle
	w.deadline = time.Time{}
}

// State reports the current timer slot state.
func (w *Watchdog) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Deadline returns the pending fire time while armed.
func (w *Watchdog) Deadline() (time.Time, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateArmed {
		return time.Time{}, false
	}
	return w.deadline, true
}
