// Package bus is the single in-process event bus described in §4.9 and §5:
// edit notifications from UI/editor threads arrive as a bounded MPSC channel
// drained by the scheduling loop, and transport/scheduler state changes are
// published synchronously to any number of UI-side subscribers. There is
// exactly one bus per session; nothing here blocks on I/O (§5).
package bus

import "sync"

// Edit is one of the four notifications §4.9 names.
type Edit struct {
	Kind         EditKind
	PatternID    string
	InstrumentID string
	NoteID       string
	ChangeType   string
	Note         any // model.Note; kept as any to avoid an import cycle with model
	OldNote      any
}

// EditKind enumerates §4.9's notification kinds.
type EditKind int

const (
	PatternChanged EditKind = iota
	NoteAdded
	NoteRemoved
	NoteModified
)

// Transport/scheduler notifications consumed by UI (§6 "Event emission").
type (
	TransportStart struct{ AtTime float64 }
	TransportStop  struct{}
	TransportPause struct{}
	BarChange      struct{ Bar int }
	BPMChange      struct{ BPM float64 }
	LoopRestart    struct {
		Time       float64
		Tick       int64
		Step       int
		Mode       string
		PatternID  string
	}
	PositionUpdate struct{ Tick int64 }
	SchedulerEvent struct {
		Time float64
		Tick int64
	}
	LoopEvent struct {
		FromTick          int64
		ToTick            int64
		NextLoopStartTime float64
	}
)

// Bus is the single-writer event bus. The edit queue is bounded and PostEdit
// never blocks: when the scheduling loop has fallen behind and the queue is
// full, the new edit is dropped and PostEdit reports that with false.
type Bus struct {
	edits chan Edit

	mu          sync.Mutex
	subscribers map[string][]func(any)
}

// New creates a bus with the given edit-queue capacity.
func New(editQueueCapacity int) *Bus {
	if editQueueCapacity <= 0 {
		editQueueCapacity = 256
	}
	return &Bus{
		edits:       make(chan Edit, editQueueCapacity),
		subscribers: make(map[string][]func(any)),
	}
}

// PostEdit enqueues an edit notification for the scheduling loop to drain.
// Non-blocking: if the queue is full the edit is dropped and false is
// returned so the caller can decide whether to retry or log.
func (b *Bus) PostEdit(e Edit) bool {
	select {
	case b.edits <- e:
		return true
	default:
		return false
	}
}

// DrainEdits removes and returns every edit currently queued, without
// blocking. Called once per scheduling-loop iteration.
func (b *Bus) DrainEdits() []Edit {
	var out []Edit
	for {
		select {
		case e := <-b.edits:
			out = append(out, e)
		default:
			return out
		}
	}
}

// Subscribe registers fn to be called synchronously whenever Publish is
// called with a value of the named topic. Topics are plain strings (e.g.
// "transport_start") rather than reflect.Type switches, matching the
// teacher's simple exported-callback-struct style rather than introducing
// a heavier pub/sub dependency that nothing else in the pack uses.
func (b *Bus) Subscribe(topic string, fn func(any)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[topic] = append(b.subscribers[topic], fn)
}

// Publish calls every subscriber of topic synchronously, in registration
// order, on the calling (scheduling-loop) goroutine — §5 requires this:
// the real-time path must never hand off to another thread to notify UI.
func (b *Bus) Publish(topic string, payload any) {
	b.mu.Lock()
	subs := append([]func(any){}, b.subscribers[topic]...)
	b.mu.Unlock()
	for _, fn := range subs {
		fn(payload)
	}
}

// Topic name constants for Publish/Subscribe, matching §6's event list.
const (
	TopicTransportStart = "transport_start"
	TopicTransportStop  = "transport_stop"
	TopicTransportPause = "transport_pause"
	TopicBarChange      = "bar_change"
	TopicBPMChange      = "bpm_change"
	TopicLoopRestart    = "loop_restart"
	TopicPositionUpdate = "position_update"
	TopicSchedulerEvent = "scheduler_event"
	TopicLoopEvent      = "loop_event"
)
