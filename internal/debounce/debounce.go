// Package debounce coalesces rapid repeated events per key into a single
// delayed action. Each key owns its own timer, so pending actions for
// different keys never cancel each other.
package debounce

import (
	"sync"
	"time"
)

// Debouncer schedules one delayed action per key. Scheduling again for the
// same key cancels the pending action and restarts the delay.
type Debouncer struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

// New returns an empty Debouncer.
func New() *Debouncer {
	return &Debouncer{timers: make(map[string]*time.Timer)}
}

// Schedule arms a timer that invokes fn after delay, replacing any pending
// timer for key. fn runs on the timer's goroutine; callers that need
// serialization should post into their own event loop from fn.
func (d *Debouncer) Schedule(key string, delay time.Duration, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, ok := d.timers[key]; ok {
		prev.Stop()
	}

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		d.mu.Lock()
		cur, ok := d.timers[key]
		if !ok || cur != t {
			// Cancelled or superseded between firing and acquiring the lock.
			d.mu.Unlock()
			return
		}
		delete(d.timers, key)
		d.mu.Unlock()
		fn()
	})
	d.timers[key] = t
}

// Cancel drops any pending timer for key. Cancelling a fired or unknown key
// is a no-op, never an error.
func (d *Debouncer) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.timers[key]; ok {
		t.Stop()
		delete(d.timers, key)
	}
}

// Pending reports whether a timer is currently armed for key.
func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.timers[key]
	return ok
}

// Len returns the number of armed timers.
func (d *Debouncer) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

// Stop cancels every pending timer.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, t := range d.timers {
		t.Stop()
		delete(d.timers, key)
	}
}
