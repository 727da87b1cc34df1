// Package transport implements the tick-driven transport clock (§4.1): tick
// advancement with a look-ahead scheduling window, loop boundaries,
// pause/resume, BPM changes, and the event queue and position tracker it
// owns exclusively (§3 "Ownership").
package transport

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/dawsched/core/internal/audioctx"
	"github.com/dawsched/core/internal/bus"
	"github.com/dawsched/core/internal/equeue"
	"github.com/dawsched/core/internal/schedlog"
)

// State is the transport's playback state machine (§3).
type State int

const (
	Stopped State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

var (
	// ErrInvalidConfig is returned for the §7 fatal configuration errors.
	ErrInvalidConfig = errors.New("transport: invalid configuration")
	// ErrCannotSetPosition is returned when SetPosition is called while the
	// transport is actively advancing (§4.1: "may only be called while not
	// advancing").
	ErrCannotSetPosition = errors.New("transport: cannot set position while advancing")
)

// Config is the subset of §6's configuration enumeration the transport
// itself needs.
type Config struct {
	PPQ                  int
	TicksPerStep         int
	LookaheadSeconds     float64
	MinSafeOffsetSamples int
}

// Transport is the tick-driven clock. It uniquely owns the event queue and
// position cache (§3 "Ownership"); the content scheduler only ever reaches
// it through ScheduleEvent/ClearScheduledEvents and the published bus
// topics, never by touching CurrentTick directly.
type Transport struct {
	cfg   Config
	clock audioctx.Clock
	bus   *bus.Bus
	log   *schedlog.Logger
	queue *equeue.Queue

	ticksPerBar int // derived: 16 steps/bar * ticksPerStep

	mu             sync.Mutex
	state          State
	bpm            float64
	secondsPerTick float64
	currentTick    int64
	nextTickTime   float64
	loopStartTick  int64
	loopEndTick    int64
	loopEnabled    bool
	advancing      bool // true once Start has produced its first tick

	lastPosition   Position
	havePosition   bool
}

// New creates a transport at BPM 120, stopped, with no loop configured.
func New(cfg Config, clock audioctx.Clock, b *bus.Bus, log *schedlog.Logger) (*Transport, error) {
	if cfg.PPQ <= 0 || cfg.TicksPerStep <= 0 {
		return nil, fmt.Errorf("%w: ppq and ticks_per_step must be > 0", ErrInvalidConfig)
	}
	if log == nil {
		log = schedlog.New(nil)
	}
	t := &Transport{
		cfg:         cfg,
		clock:       clock,
		bus:         b,
		log:         log,
		queue:       equeue.New(),
		ticksPerBar: cfg.TicksPerStep * 16,
		state:       Stopped,
		bpm:         120,
		loopEndTick: int64(cfg.TicksPerStep) * 16, // 1 bar default, disabled
	}
	t.secondsPerTick = 60.0 / (t.bpm * float64(cfg.PPQ))
	return t, nil
}

// Now returns the audio context's current monotone time, the `now` the
// note and clip schedulers anchor their past-note/past-clip checks to.
func (t *Transport) Now() float64 {
	return t.clock.CurrentTime()
}

func (t *Transport) minSafeOffsetSeconds() float64 {
	return float64(t.cfg.MinSafeOffsetSamples) / float64(t.clock.SampleRate())
}

// Start transitions stopped|paused -> playing (§4.1). atTime, if non-nil,
// is the earliest audio time the transport should begin ticking from.
func (t *Transport) Start(atTime *float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Playing {
		return nil
	}
	resuming := t.state == Paused
	if !resuming {
		t.currentTick = 0
	}
	now := t.clock.CurrentTime()
	earliest := now + t.minSafeOffsetSeconds()
	start := earliest
	if atTime != nil && *atTime > start {
		start = *atTime
	}
	t.nextTickTime = start
	t.state = Playing
	t.advancing = false
	t.bus.Publish(bus.TopicTransportStart, bus.TransportStart{AtTime: start})
	return nil
}

// Pause freezes CurrentTick without cancelling any scheduled event (§4.1, §5).
func (t *Transport) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Playing {
		return
	}
	t.state = Paused
	t.bus.Publish(bus.TopicTransportPause, bus.TransportPause{})
}

// Stop resets CurrentTick to 0 and clears every scheduled event (§4.1).
func (t *Transport) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = Stopped
	t.currentTick = 0
	t.advancing = false
	t.queue.Clear()
	t.bus.Publish(bus.TopicTransportStop, bus.TransportStop{})
}

// State reports the current playback state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SetBPM updates the tick duration. Already-scheduled events keep their
// absolute audio times (§4.1: "do not reshift").
func (t *Transport) SetBPM(bpm float64) error {
	if bpm <= 0 {
		return fmt.Errorf("%w: bpm must be > 0", ErrInvalidConfig)
	}
	t.mu.Lock()
	t.bpm = bpm
	t.secondsPerTick = 60.0 / (bpm * float64(t.cfg.PPQ))
	t.mu.Unlock()
	t.bus.Publish(bus.TopicBPMChange, bus.BPMChange{BPM: bpm})
	return nil
}

// BPM returns the current tempo.
func (t *Transport) BPM() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bpm
}

// SetLoopPoints configures the loop region in step units (§4.1, §3 invariant
// loop_start_tick < loop_end_tick).
func (t *Transport) SetLoopPoints(startStep, endStep int64) error {
	startTick := startStep * int64(t.cfg.TicksPerStep)
	endTick := endStep * int64(t.cfg.TicksPerStep)
	if startTick >= endTick {
		return fmt.Errorf("%w: loop_start (%d) must be < loop_end (%d)", ErrInvalidConfig, startTick, endTick)
	}
	t.mu.Lock()
	t.loopStartTick = startTick
	t.loopEndTick = endTick
	t.mu.Unlock()
	return nil
}

// SetLoopEnabled toggles loop wraparound.
func (t *Transport) SetLoopEnabled(enabled bool) {
	t.mu.Lock()
	t.loopEnabled = enabled
	t.mu.Unlock()
}

// LoopInfo reports the current loop configuration, for get_loop_info().
func (t *Transport) LoopInfo() (startTick, endTick int64, enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loopStartTick, t.loopEndTick, t.loopEnabled
}

// LoopDurationSeconds returns the wall-clock span of one loop iteration at
// the current tempo, used by the note scheduler's past-note loop-wrap rule
// (§4.5 step 5).
func (t *Transport) LoopDurationSeconds() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return float64(t.loopEndTick-t.loopStartTick) * t.secondsPerTick
}

// SetPosition forces CurrentTick. Only valid while not advancing: stopped,
// paused, or before the first tick produced by Start (§4.1).
func (t *Transport) SetPosition(step int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Playing && t.advancing {
		return ErrCannotSetPosition
	}
	t.currentTick = step * int64(t.cfg.TicksPerStep)
	return nil
}

// CurrentTick returns the transport's tick counter.
func (t *Transport) CurrentTick() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentTick
}

// NextTickTime returns the audio time of the next undispatched tick, used
// by the note scheduler's "immediate mid-playback insertion" anchor (§4.5).
func (t *Transport) NextTickTime() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nextTickTime
}

// TransportStartTime recovers the audio time tick 0 of the current run
// would have played at, per §4.5's
// "transport_start_time = next_tick_time - current_tick * seconds_per_tick".
func (t *Transport) TransportStartTime() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nextTickTime - float64(t.currentTick)*t.secondsPerTick
}

// SecondsPerStep returns the duration of one 16th-note step at the current
// BPM, the unit most of §4.5/§4.6's arithmetic is expressed in.
func (t *Transport) SecondsPerStep() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.secondsPerTick * float64(t.cfg.TicksPerStep)
}

// StepsToSeconds converts a step count to seconds (P8).
func (t *Transport) StepsToSeconds(steps float64) float64 {
	return steps * t.SecondsPerStep()
}

// SecondsToSteps is StepsToSeconds' inverse (P8).
func (t *Transport) SecondsToSteps(seconds float64) float64 {
	sps := t.SecondsPerStep()
	if sps == 0 {
		return 0
	}
	return seconds / sps
}

// TicksToSteps converts ticks to a (possibly fractional) step count.
func (t *Transport) TicksToSteps(ticks int64) float64 {
	return float64(ticks) / float64(t.cfg.TicksPerStep)
}

// StepsToTicks converts a step count to ticks, rounding down.
func (t *Transport) StepsToTicks(steps float64) int64 {
	return int64(steps * float64(t.cfg.TicksPerStep))
}

// ScheduleEvent enqueues a callback at audioTime, clamping any past-due time
// up to now+min_safe_offset (§4.1 "Failure") and rounding the result to the
// nearest sample boundary so dispatch hands instruments a time they can
// begin precisely on (§4.2).
func (t *Transport) ScheduleEvent(audioTime float64, cb equeue.Callback, meta equeue.Metadata) equeue.Handle {
	now := t.clock.CurrentTime()
	floor := now + t.minSafeOffsetSeconds()
	if audioTime <= floor {
		audioTime = floor
	}
	audioTime = t.roundToSample(audioTime)
	return t.queue.Enqueue(audioTime, cb, meta)
}

// roundToSample snaps t to the nearest 1/sample_rate boundary.
func (t *Transport) roundToSample(audioTime float64) float64 {
	sr := float64(t.clock.SampleRate())
	if sr <= 0 {
		return audioTime
	}
	return math.Round(audioTime*sr) / sr
}

// ClearScheduledEvents removes queued entries matching filter (or all
// entries if filter is nil), per §4.1.
func (t *Transport) ClearScheduledEvents(filter func(equeue.Metadata) bool) {
	t.queue.CancelWhere(filter)
}

// Queue exposes the owned event queue for the content scheduler's
// ScanFuture-based duplicate/cancellation passes (§4.5, §4.9). The
// scheduler never reaches into the queue's internals, only this narrow
// surface.
func (t *Transport) Queue() *equeue.Queue { return t.queue }

// Position returns the current BBT/step snapshot, memoized on tick equality
// (§4.3).
func (t *Transport) Position() Position {
	t.mu.Lock()
	tick := t.currentTick
	if t.havePosition && t.lastPosition.Tick == tick {
		p := t.lastPosition
		t.mu.Unlock()
		return p
	}
	p := positionFromTick(tick, t.cfg.TicksPerStep, t.ticksPerBar)
	t.lastPosition = p
	t.havePosition = true
	t.mu.Unlock()
	return p
}

// Tick is the real-time driver entry point (§4.1, §5): called on a
// real-time cadence with the audio context's current time. It never blocks
// and never allocates beyond what a single iteration of due events needs.
func (t *Transport) Tick(audioNow float64) {
	t.mu.Lock()
	if t.state != Playing {
		t.mu.Unlock()
		return
	}
	lookahead := t.cfg.LookaheadSeconds
	prevBar := positionFromTick(t.currentTick, t.cfg.TicksPerStep, t.ticksPerBar).Bar

	var toDispatch []equeue.DueEntry
	for t.nextTickTime <= audioNow+lookahead {
		t.advancing = true
		schedTime := t.nextTickTime
		tickNum := t.currentTick

		due := t.queue.PopDue(schedTime)
		toDispatch = append(toDispatch, due...)

		t.mu.Unlock()
		t.bus.Publish(bus.TopicSchedulerEvent, bus.SchedulerEvent{Time: schedTime, Tick: tickNum})
		t.mu.Lock()

		if t.loopEnabled && t.currentTick == t.loopEndTick-1 {
			nextStart := t.nextTickTime + t.secondsPerTick
			t.mu.Unlock()
			t.bus.Publish(bus.TopicLoopEvent, bus.LoopEvent{
				FromTick:          t.loopEndTick - 1,
				ToTick:            0,
				NextLoopStartTime: nextStart,
			})
			t.mu.Lock()
			t.currentTick = 0
			t.nextTickTime = nextStart
		} else {
			t.currentTick++
			t.nextTickTime += t.secondsPerTick
		}

		newBar := positionFromTick(t.currentTick, t.cfg.TicksPerStep, t.ticksPerBar).Bar
		if newBar != prevBar {
			bar := newBar
			t.mu.Unlock()
			t.bus.Publish(bus.TopicBarChange, bus.BarChange{Bar: bar})
			t.mu.Lock()
			prevBar = newBar
		}
	}
	tickSnapshot := t.currentTick
	t.mu.Unlock()

	for _, d := range toDispatch {
		t.dispatch(d)
	}
	t.bus.Publish(bus.TopicPositionUpdate, bus.PositionUpdate{Tick: tickSnapshot})
}

// dispatch invokes one due callback, containing any panic at the boundary
// so one bad instrument never stalls the drain (§7 "Instrument callback
// throws").
func (t *Transport) dispatch(d equeue.DueEntry) {
	defer func() {
		if r := recover(); r != nil {
			t.log.CallbackPanic(kindName(d.Metadata.Kind), d.Metadata.InstrumentID, r)
		}
	}()
	d.Callback(d.AudioTime)
}

func kindName(k equeue.Kind) string {
	switch k {
	case equeue.KindNoteOn:
		return "note_on"
	case equeue.KindNoteOff:
		return "note_off"
	case equeue.KindAutomation:
		return "automation"
	case equeue.KindAudioClip:
		return "audio_clip"
	default:
		return "unknown"
	}
}
