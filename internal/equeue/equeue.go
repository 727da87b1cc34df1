// Package equeue implements the time-ordered event queue (§4.2): O(log N)
// enqueue, amortized O(k) pop-all-due, predicate-filtered cancel, FIFO
// tie-break at identical times. The backing heap is the same
// Len/Less/Swap/Push/Pop shape as harperreed-resonate-go's BufferQueue
// (internal/player/scheduler.go in the retrieval pack), adapted from a
// single time field to the scheduler's {audio_time, callback, metadata}
// entries and given lazy-deletion cancellation so a Handle never needs to
// know its heap index.
package equeue

import "container/heap"

// Kind classifies what an entry's callback will do, letting callers filter
// by it (§3's metadata.kind).
type Kind int

const (
	KindNoteOn Kind = iota
	KindNoteOff
	KindAutomation
	KindAudioClip
)

// Metadata is the §3 event-queue-entry metadata block.
type Metadata struct {
	Kind                Kind
	InstrumentID        string
	NoteID              string
	ClipID              string
	Step                float64
	ScheduledNoteOnTime float64

	// Target and Parameter identify a scheduled automation entry's
	// "{mixer|instrument|effect}.{id}.{parameter}" address (§4.7 mode 1), so
	// a reschedule can cancel just that target's pending automation.
	Target    string
	Parameter string
}

// Callback receives the sample-accurate scheduled time (§4.2).
type Callback func(scheduledTime float64)

type entry struct {
	audioTime float64
	seq       uint64
	callback  Callback
	metadata  Metadata
	cancelled bool
}

// Handle is the opaque token returned by Enqueue. Individual notes are
// still cancelled by scanning with a predicate (§4.5's "at most one linear
// pass of the future queue per edit", §5); a Handle additionally lets its
// holder cancel that single entry directly through Queue.Cancel.
type Handle struct{ e *entry }

// Queue is the time-ordered container described by §4.2.
type Queue struct {
	h      *minheap
	nextSeq uint64
}

// New creates an empty queue.
func New() *Queue {
	h := &minheap{}
	heap.Init(h)
	return &Queue{h: h}
}

// Enqueue inserts a new entry and returns its handle. O(log N).
func (q *Queue) Enqueue(audioTime float64, cb Callback, meta Metadata) Handle {
	e := &entry{audioTime: audioTime, seq: q.nextSeq, callback: cb, metadata: meta}
	q.nextSeq++
	heap.Push(q.h, e)
	return Handle{e: e}
}

// Len reports the number of live (non-cancelled) entries still queued.
func (q *Queue) Len() int {
	n := 0
	for _, e := range q.h.items {
		if !e.cancelled {
			n++
		}
	}
	return n
}

// Cancel marks a single handle's entry as cancelled; it is skipped rather
// than dispatched and is reclaimed the next time it reaches the heap top.
func (q *Queue) Cancel(h Handle) {
	if h.e != nil {
		h.e.cancelled = true
	}
}

// CancelWhere cancels every live entry whose metadata matches filter,
// implementing clear_scheduled_events(filter?) (§4.1). A nil filter cancels
// everything, matching "if no filter, remove all".
func (q *Queue) CancelWhere(filter func(Metadata) bool) {
	for _, e := range q.h.items {
		if e.cancelled {
			continue
		}
		if filter == nil || filter(e.metadata) {
			e.cancelled = true
		}
	}
}

// Clear cancels every entry, equivalent to CancelWhere(nil).
func (q *Queue) Clear() {
	q.CancelWhere(nil)
}

// PopDue removes and returns every live entry with audioTime <= now, in
// ascending-time, FIFO-at-ties order. Amortized O(k) for k due entries.
func (q *Queue) PopDue(now float64) []DueEntry {
	var due []DueEntry
	for q.h.Len() > 0 {
		top := q.h.items[0]
		if top.audioTime > now {
			break
		}
		heap.Pop(q.h)
		if top.cancelled {
			continue
		}
		due = append(due, DueEntry{AudioTime: top.audioTime, Callback: top.callback, Metadata: top.metadata})
	}
	return due
}

// ScanFuture calls fn for every live entry with audioTime > after, in no
// particular order — used by the note-add/note-remove duplicate and
// cancellation scans (§4.5, §4.9) which only need existence checks or
// blanket cancellation, not ordering.
func (q *Queue) ScanFuture(after float64, fn func(Metadata) bool) {
	for _, e := range q.h.items {
		if e.cancelled || e.audioTime <= after {
			continue
		}
		if fn(e.metadata) {
			e.cancelled = true
		}
	}
}

// DueEntry is one entry popped by PopDue, ready for dispatch.
type DueEntry struct {
	AudioTime float64
	Callback  Callback
	Metadata  Metadata
}

// minheap implements container/heap.Interface, the same shape as
// harperreed-resonate-go's BufferQueue: Less orders by time first, then by
// insertion sequence so same-time entries dispatch FIFO (§4.2, §5).
type minheap struct {
	items []*entry
}

func (m *minheap) Len() int { return len(m.items) }

func (m *minheap) Less(i, j int) bool {
	if m.items[i].audioTime != m.items[j].audioTime {
		return m.items[i].audioTime < m.items[j].audioTime
	}
	return m.items[i].seq < m.items[j].seq
}

func (m *minheap) Swap(i, j int) { m.items[i], m.items[j] = m.items[j], m.items[i] }

func (m *minheap) Push(x any) { m.items = append(m.items, x.(*entry)) }

func (m *minheap) Pop() any {
	n := len(m.items)
	item := m.items[n-1]
	m.items[n-1] = nil
	m.items = m.items[:n-1]
	return item
}
