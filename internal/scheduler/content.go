package scheduler

import (
	"context"

	"github.com/dawsched/core/internal/automation"
	"github.com/dawsched/core/internal/capability"
	"github.com/dawsched/core/internal/equeue"
	"github.com/dawsched/core/internal/model"
	"github.com/dawsched/core/internal/schedlog"
	"github.com/dawsched/core/internal/store"
	"github.com/dawsched/core/internal/transport"
	"github.com/dawsched/core/internal/voice"
)

// Mode selects pattern-loop playback versus full song-arrangement playback
// (§4.4).
type Mode int

const (
	ModePattern Mode = iota
	ModeSong
)

// Scope selects how much of the timeline a scheduling pass rewrites (§4.4).
type Scope int

const (
	ScopeAuto Scope = iota
	ScopeNotes
	ScopeAll
)

// Request is one scheduling request, §4.4's input block.
type Request struct {
	BaseAudioTime    *float64
	Reason           string
	Force            bool
	Scope            Scope
	InstrumentFilter []string
	Priority         Priority
	Append           bool
}

// Reason values §4.4/§4.5 treat specially.
const (
	ReasonResume   = "resume"
	ReasonNoteEdit = "note_edit"
)

// Result reports what a scheduling pass actually did.
type Result struct {
	NotesScheduled  int
	InstrumentCount int
}

// Content is the §4.4 content scheduler: it owns debounce/priority
// coalescing, scope resolution, and dispatch into the pattern-mode and
// song-mode scheduling algorithms.
type Content struct {
	tr            *transport.Transport
	patterns      store.PatternStore
	arrangement   store.ArrangementStore
	automationMgr automation.Manager
	registry      *store.InstrumentRegistry
	notes         *NoteScheduler
	clips         *ClipScheduler
	realtime      *automation.Realtime
	scheduledAuto *automation.Scheduled
	voices        *voice.Bookkeeper
	log           *schedlog.Logger
	dirty         *DirtyState
	debouncer     *Debouncer
	ccDefaults    map[uint8]float64

	mode Mode
}

// NewContent wires the content scheduler's collaborators (§6).
func NewContent(
	tr *transport.Transport,
	patterns store.PatternStore,
	arrangement store.ArrangementStore,
	automationMgr automation.Manager,
	registry *store.InstrumentRegistry,
	notes *NoteScheduler,
	clips *ClipScheduler,
	realtime *automation.Realtime,
	scheduledAuto *automation.Scheduled,
	voices *voice.Bookkeeper,
	log *schedlog.Logger,
	debouncer *Debouncer,
	ccDefaults map[uint8]float64,
) *Content {
	return &Content{
		tr:            tr,
		patterns:      patterns,
		arrangement:   arrangement,
		automationMgr: automationMgr,
		registry:      registry,
		notes:         notes,
		clips:         clips,
		realtime:      realtime,
		scheduledAuto: scheduledAuto,
		voices:        voices,
		log:           log,
		dirty:         NewDirtyState(),
		debouncer:     debouncer,
		ccDefaults:    ccDefaults,
		mode:          ModePattern,
	}
}

// SetMode switches between pattern and song playback modes.
func (c *Content) SetMode(m Mode) { c.mode = m }

// Mode reports the current playback mode.
func (c *Content) Mode() Mode { return c.mode }

// Dirty exposes the dirty-state tracker for the edit mediator (§4.9).
func (c *Content) Dirty() *DirtyState { return c.dirty }

func (c *Content) resolveScope(req Request) Scope {
	scope := req.Scope
	if scope == ScopeAuto {
		if len(req.InstrumentFilter) > 0 || c.dirty.HasDirtyInstruments() {
			scope = ScopeNotes
		} else {
			scope = ScopeAll
		}
	}
	if c.dirty.Global() || c.mode == ModeSong || req.Force {
		scope = ScopeAll
	}
	return scope
}

// Reschedule runs (possibly after debouncing) a scheduling pass per req.
// The result channel-free signature matches this module's synchronous,
// single-threaded scheduling-loop model (§5): callers on the same loop get
// the Result back once the (possibly deferred) pass completes via onDone.
func (c *Content) Reschedule(req Request, onDone func(Result)) {
	bypass := req.Force || req.Scope == ScopeAll || req.Append
	playing := c.tr.State() == transport.Playing
	c.debouncer.Schedule(req.Priority, playing, bypass, func() {
		res := c.doReschedule(req)
		if onDone != nil {
			onDone(res)
		}
	})
}

func (c *Content) doReschedule(req Request) Result {
	scope := c.resolveScope(req)
	base := c.tr.Now()
	if req.BaseAudioTime != nil {
		base = *req.BaseAudioTime
	}
	switch c.mode {
	case ModeSong:
		return c.scheduleSong(base)
	default:
		return c.schedulePattern(req, scope, base)
	}
}

func (c *Content) resolveInstrument(instrumentID string) (capability.Instrument, bool) {
	if inst, ok := c.registry.Get(instrumentID); ok {
		return inst, true
	}
	resolved := c.registry.ResolveMany(context.Background(), []string{instrumentID})
	inst, ok := resolved[instrumentID]
	if !ok {
		c.log.MissingInstrument(instrumentID)
		return nil, false
	}
	return inst, true
}

func (c *Content) schedulePattern(req Request, scope Scope, base float64) Result {
	patternID := c.patterns.ActivePatternID()
	pattern, ok := c.patterns.Pattern(patternID)
	if !ok {
		c.log.MissingPattern(patternID)
		return Result{}
	}

	loopStartTick, loopEndTick, loopEnabled := c.tr.LoopInfo()
	loopStartStep := c.tr.TicksToSteps(loopStartTick)
	loopEndStep := c.tr.TicksToSteps(loopEndTick)
	currentStep := c.tr.TicksToSteps(c.tr.CurrentTick())

	isResumeOrNoteEdit := req.Reason == ReasonResume || req.Reason == ReasonNoteEdit
	if loopEnabled && (currentStep < loopStartStep || currentStep >= loopEndStep) {
		if !isResumeOrNoteEdit {
			currentStep = loopStartStep
		} else {
			currentStep = loopStartStep + normalizeMod(currentStep-loopStartStep, loopEndStep-loopStartStep)
		}
	}

	filter := req.InstrumentFilter
	if scope == ScopeNotes && len(filter) == 0 {
		filter = c.dirty.DirtyInstruments()
	}

	instrumentIDs := pattern.Instruments(nil)
	if scope == ScopeNotes && len(filter) > 0 {
		instrumentIDs = intersect(instrumentIDs, filter)
		for _, id := range instrumentIDs {
			id := id
			c.tr.ClearScheduledEvents(func(m equeue.Metadata) bool {
				return m.InstrumentID == id && (m.Kind == equeue.KindNoteOn || m.Kind == equeue.KindNoteOff)
			})
		}
	} else {
		c.tr.ClearScheduledEvents(func(m equeue.Metadata) bool {
			return m.Kind == equeue.KindNoteOn || m.Kind == equeue.KindNoteOff
		})
		c.realtime.StopAll()
	}

	notesScheduled := 0
	for _, instrumentID := range instrumentIDs {
		inst, ok := c.resolveInstrument(instrumentID)
		if !ok {
			continue
		}
		lanes := c.automationMgr.GetLanes(patternID, instrumentID)
		for _, n := range pattern.Data[instrumentID] {
			if c.notes.ScheduleNote(inst, instrumentID, n, pattern.LengthSteps, base, currentStep, loopEnabled, lanes, c.ccDefaults) {
				notesScheduled++
			}
		}
		c.realtime.Start(instrumentID, patternID, lanes)
	}

	c.dirty.Clear()
	return Result{NotesScheduled: notesScheduled, InstrumentCount: len(instrumentIDs)}
}

func (c *Content) scheduleSong(base float64) Result {
	c.tr.ClearScheduledEvents(func(m equeue.Metadata) bool {
		return m.Kind == equeue.KindNoteOn || m.Kind == equeue.KindNoteOff || m.Kind == equeue.KindAudioClip
	})
	c.realtime.StopAll()

	clips := c.arrangement.Clips()
	tracks := c.arrangement.Tracks()
	anySolo := model.AnySolo(tracks)
	bpm := c.tr.BPM()
	currentPositionSeconds := c.tr.StepsToSeconds(c.tr.TicksToSteps(c.tr.CurrentTick()))

	notesScheduled := 0
	instrumentSet := make(map[string]bool)

	for _, clip := range clips {
		track, ok := tracks[clip.TrackID]
		if ok && !track.Audible(anySolo) {
			continue
		}
		clipStartSteps := clip.StartBeats * 4
		clipDurationSteps := clip.DurationBeats * 4

		switch clip.Type {
		case model.ClipPattern:
			pattern, ok := c.patterns.Pattern(clip.PatternID)
			if !ok {
				c.log.MissingPattern(clip.PatternID)
				continue
			}
			patternLength := pattern.LengthSteps
			if patternLength <= 0 {
				patternLength = pattern.ComputeLength()
			}
			notesScheduled += c.scheduleSongPatternClip(pattern, clip, patternLength, clipStartSteps, clipDurationSteps, base, instrumentSet)
		case model.ClipAudio:
			c.clips.Schedule(clip, base, bpm, currentPositionSeconds)
		}
	}

	c.dirty.Clear()
	return Result{NotesScheduled: notesScheduled, InstrumentCount: len(instrumentSet)}
}

// scheduleSongPatternClip implements §4.4's pattern-clip expansion: the
// source pattern loops to fill the clip's duration, and every in-window
// note is placed at its arrangement-absolute step.
func (c *Content) scheduleSongPatternClip(pattern *model.Pattern, clip model.AudioClip, patternLength int, clipStartStep, clipDurationSteps, base float64, instrumentSet map[string]bool) int {
	patternLenF := float64(patternLength)
	windowStart := normalizeMod(clip.PatternOffsetSteps, patternLenF)
	windowEnd := windowStart + clipDurationSteps

	notesScheduled := 0
	for instrumentID, notes := range pattern.Data {
		inst, ok := c.resolveInstrument(instrumentID)
		if !ok {
			continue
		}
		instrumentSet[instrumentID] = true
		lanes := c.automationMgr.GetLanes(clip.PatternID, instrumentID)

		for _, n := range notes {
			for loopIndex := 0; float64(loopIndex)*patternLenF < clip.PatternOffsetSteps+clipDurationSteps; loopIndex++ {
				expandedStart := n.StartStep + float64(loopIndex)*patternLenF
				if expandedStart < windowStart || expandedStart >= windowEnd {
					continue
				}
				finalStep := (expandedStart - clip.PatternOffsetSteps) + clipStartStep
				placed := n
				placed.StartStep = finalStep
				absolute := base + finalStep*c.tr.SecondsPerStep()
				if c.notes.scheduleNoteAt(inst, instrumentID, placed, patternLength, absolute, c.tr.SecondsPerStep(), lanes, c.ccDefaults) {
					notesScheduled++
				}
			}
		}
	}
	return notesScheduled
}

func intersect(all, filter []string) []string {
	set := make(map[string]bool, len(filter))
	for _, id := range filter {
		set[id] = true
	}
	out := make([]string, 0, len(all))
	for _, id := range all {
		if set[id] {
			out = append(out, id)
		}
	}
	return out
}
