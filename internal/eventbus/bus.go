package eventbus

import "sync"

// Logger records bus diagnostics. It matches logging.Logger's signature.
type Logger interface {
	Printf(format string, args ...any)
}

// Handler consumes events published on a Bus.
type Handler func(Event)

// Bus is a synchronous multi-subscriber notification channel. Publish
// delivers to every subscriber in subscription order on the caller's
// goroutine; a panicking handler is isolated so the remaining handlers
// still run.
type Bus struct {
	mu     sync.Mutex
	subs   []*subscription
	logger Logger
}

// BusOption customizes Bus construction.
type BusOption func(*Bus)

// BusWithLogger injects a logger for handler failure diagnostics.
func BusWithLogger(logger Logger) BusOption {
	return func(b *Bus) {
		b.logger = logger
	}
}

// NewBus returns an empty bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Subscription represents one active handler registration.
type Subscription struct {
	cancel func()
}

// Close removes the handler from the bus. Safe to call more than once.
func (s Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

type subscription struct {
	handler Handler
	closed  bool
}

// Subscribe registers a handler. Handlers receive every subsequent event in
// the order they subscribed.
func (b *Bus) Subscribe(handler Handler) Subscription {
	sub := &subscription{handler: handler}
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
	return Subscription{cancel: func() { b.remove(sub) }}
}

// Publish delivers the event synchronously to every current subscriber.
// It never blocks beyond handler execution and never coalesces events.
func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	subs := make([]*subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if !sub.closed && sub.handler != nil {
			subs = append(subs, sub)
		}
	}
	b.mu.Unlock()
	for _, sub := range subs {
		b.dispatch(sub, event)
	}
}

func (b *Bus) dispatch(sub *subscription, event Event) {
	defer func() {
		if r := recover(); r != nil && b.logger != nil {
			b.logger.Printf("eventbus: handler panic on %s: %v", event.Kind, r)
		}
	}()
	sub.handler(event)
}

func (b *Bus) remove(target *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subs {
		if sub == target {
			sub.closed = true
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}
