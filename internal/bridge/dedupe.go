package bridge

import "sync"

const defaultDedupeWindow = 1024

// dedupe retains a sliding window of recent event ids so transports that
// retry deliveries cannot replay a lifecycle event into the session.
type dedupe struct {
	mu     sync.Mutex
	window int
	ids    map[string]struct{}
	order  []string
}

func newDedupe(window int) *dedupe {
	if window <= 0 {
		window = defaultDedupeWindow
	}
	return &dedupe{
		window: window,
		ids:    map[string]struct{}{},
		order:  make([]string, 0, window),
	}
}

// seen records the id and reports whether it was already present.
func (d *dedupe) seen(id string) bool {
	if id == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.ids[id]; ok {
		return true
	}
	d.ids[id] = struct{}{}
	d.order = append(d.order, id)
	if len(d.order) > d.window {
		oldest := d.order[0]
		d.order = d.order[1:]
		delete(d.ids, oldest)
	}
	return false
}
