package scheduler

import "sync"

// DirtyState tracks which instruments (and whether the whole timeline) have
// pending edits since the last full scheduling pass (§4.4 "Scope
// resolution", §4.9).
type DirtyState struct {
	mu          sync.Mutex
	global      bool
	instruments map[string]bool
}

// NewDirtyState creates an empty (clean) state.
func NewDirtyState() *DirtyState {
	return &DirtyState{instruments: make(map[string]bool)}
}

// MarkGlobal flags the whole timeline dirty, e.g. on PATTERN_CHANGED (§4.9).
func (d *DirtyState) MarkGlobal() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.global = true
}

// MarkInstrument flags a single instrument dirty (§4.9 Added/Removed/Modified).
func (d *DirtyState) MarkInstrument(instrumentID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.instruments[instrumentID] = true
}

// Global reports whether the whole timeline is dirty.
func (d *DirtyState) Global() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.global
}

// HasDirtyInstruments reports whether any instrument is individually dirty.
func (d *DirtyState) HasDirtyInstruments() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.instruments) > 0
}

// DirtyInstruments returns the set of dirty instrument ids.
func (d *DirtyState) DirtyInstruments() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.instruments))
	for id := range d.instruments {
		out = append(out, id)
	}
	return out
}

// Clear resets to clean, called after a scheduling pass consumes the dirty
// set (§4.4 step 5 implies this: the next auto-scope request should not
// re-promote to `all` for edits already serviced).
func (d *DirtyState) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.global = false
	d.instruments = make(map[string]bool)
}
