// Package scheduler implements the content scheduler, note scheduler,
// audio-clip scheduler, loop restart logic, and dirty-state mediation
// (§4.4-§4.9): everything that turns a pattern/arrangement snapshot into
// time-stamped events on the transport's event queue.
package scheduler

import (
	"sync"
	"time"

	"github.com/dawsched/core/internal/config"
)

// Priority is the §4.4 scheduling-request priority class.
type Priority int

const (
	PriorityAuto Priority = iota
	PriorityBurst
	PriorityRealtime
	PriorityIdle
)

// Debouncer coalesces rapid rescheduling requests per §4.4's debounce
// table. It re-arms a `time.Timer` rather than sleeping the calling
// goroutine (§5: "realized by re-arming a timer that re-enters the loop;
// they are not sleeps") — the timer callback re-enters the scheduling path
// on its own goroutine exactly once, carrying only the latest coalesced fn.
type Debouncer struct {
	cfg config.Debounce

	mu      sync.Mutex
	pending *time.Timer
}

// NewDebouncer builds a Debouncer using cfg's idle/realtime/burst delays.
func NewDebouncer(cfg config.Debounce) *Debouncer {
	return &Debouncer{cfg: cfg}
}

func (d *Debouncer) delayFor(priority Priority, playing bool) time.Duration {
	switch priority {
	case PriorityBurst:
		return 0
	case PriorityRealtime:
		return time.Duration(d.cfg.RealtimeMS) * time.Millisecond
	case PriorityIdle:
		return time.Duration(d.cfg.IdleMS) * time.Millisecond
	default: // auto: realtime if playing else idle
		if playing {
			return time.Duration(d.cfg.RealtimeMS) * time.Millisecond
		}
		return time.Duration(d.cfg.IdleMS) * time.Millisecond
	}
}

// Schedule arms fn to run after priority's delay, replacing any pending
// callback (§4.4: "On coalescing, the newest callback replaces any pending
// one"). bypass (force || scope==all || append) skips debouncing entirely
// and runs fn synchronously, on the caller's goroutine.
func (d *Debouncer) Schedule(priority Priority, playing, bypass bool, fn func()) {
	if bypass {
		d.mu.Lock()
		if d.pending != nil {
			d.pending.Stop()
			d.pending = nil
		}
		d.mu.Unlock()
		fn()
		return
	}
	delay := d.delayFor(priority, playing)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending != nil {
		d.pending.Stop()
	}
	if delay <= 0 {
		d.pending = nil
		fn()
		return
	}
	d.pending = time.AfterFunc(delay, func() {
		d.mu.Lock()
		d.pending = nil
		d.mu.Unlock()
		fn()
	})
}
