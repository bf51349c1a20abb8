package cloud

import (
	"sync"
	"time"
)

// Clock abstracts timer creation so sync timing is testable without real
// sleeps. The production clock delegates to the time package.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a cancellable pending callback.
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// NewClock returns the production clock.
func NewClock() Clock { return realClock{} }

// Debouncer coalesces rapid triggers of keyed tasks. Scheduling a key
// that already has a pending timer cancels and replaces it, so only the
// last trigger within a quiet window fires. Triggers are never queued.
type Debouncer struct {
	clock Clock

	mu     sync.Mutex
	timers map[string]Timer
}

// NewDebouncer builds a Debouncer on the given clock.
func NewDebouncer(clock Clock) *Debouncer {
	return &Debouncer{clock: clock, timers: make(map[string]Timer)}
}

// Schedule arranges fn to run after delay, replacing any pending timer
// for the same key.
func (d *Debouncer) Schedule(key string, delay time.Duration, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if t, ok := d.timers[key]; ok {
		t.Stop()
	}
	d.timers[key] = d.clock.AfterFunc(delay, func() {
		d.mu.Lock()
		delete(d.timers, key)
		d.mu.Unlock()
		fn()
	})
}

// Cancel drops a pending timer for key, if any.
func (d *Debouncer) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.timers[key]; ok {
		t.Stop()
		delete(d.timers, key)
	}
}

// CancelAll drops every pending timer. Called on sign-out and shutdown.
func (d *Debouncer) CancelAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, t := range d.timers {
		t.Stop()
		delete(d.timers, key)
	}
}

// Pending reports whether key has a timer waiting to fire.
func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.timers[key]
	return ok
}
