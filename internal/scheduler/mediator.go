package scheduler

import (
	"github.com/dawsched/core/internal/automation"
	"github.com/dawsched/core/internal/bus"
	"github.com/dawsched/core/internal/equeue"
	"github.com/dawsched/core/internal/model"
	"github.com/dawsched/core/internal/store"
	"github.com/dawsched/core/internal/transport"
	"github.com/dawsched/core/internal/voice"
)

// Mediator implements §4.9: it drains the bus's edit queue once per
// scheduling-loop iteration and turns PATTERN_CHANGED/NOTE_ADDED/
// NOTE_REMOVED/NOTE_MODIFIED into either an immediate single-note schedule,
// a targeted stop-and-purge, or a deferred partial reschedule — never the
// full rescheduler, so unrelated in-flight entries are never disturbed.
type Mediator struct {
	b             *bus.Bus
	content       *Content
	notes         *NoteScheduler
	voices        *voice.Bookkeeper
	tr            *transport.Transport
	patterns      store.PatternStore
	automationMgr automation.Manager
	loopRestarter *LoopRestarter
	ccDefaults    map[uint8]float64
}

// NewMediator builds a Mediator. loopRestarter may be nil in tests that
// don't exercise loop restart.
func NewMediator(b *bus.Bus, content *Content, notes *NoteScheduler, voices *voice.Bookkeeper, tr *transport.Transport, patterns store.PatternStore, automationMgr automation.Manager, loopRestarter *LoopRestarter, ccDefaults map[uint8]float64) *Mediator {
	return &Mediator{
		b:             b,
		content:       content,
		notes:         notes,
		voices:        voices,
		tr:            tr,
		patterns:      patterns,
		automationMgr: automationMgr,
		loopRestarter: loopRestarter,
		ccDefaults:    ccDefaults,
	}
}

// ProcessPendingEdits drains and handles every queued edit. Called once per
// scheduling-loop iteration (§5), alongside transport.Tick.
func (m *Mediator) ProcessPendingEdits() {
	for _, e := range m.b.DrainEdits() {
		m.handle(e)
	}
}

func (m *Mediator) handle(e bus.Edit) {
	if e.PatternID != "" && e.PatternID != m.patterns.ActivePatternID() {
		return // "Only changes to the active pattern affect live scheduling" (§4.9)
	}
	if m.loopRestarter != nil && m.loopRestarter.IsRestarting() {
		return // §7 "scheduler re-entry during loop restart" guard
	}
	switch e.Kind {
	case bus.PatternChanged:
		m.content.Dirty().MarkGlobal()
	case bus.NoteAdded:
		m.onAdded(e.PatternID, e.InstrumentID, e.Note)
	case bus.NoteRemoved:
		m.onRemoved(e.InstrumentID, e.NoteID)
	case bus.NoteModified:
		m.onModified(e)
	}
}

func (m *Mediator) onAdded(patternID, instrumentID string, rawNote any) {
	n, ok := rawNote.(model.Note)
	if !ok {
		return
	}
	m.content.Dirty().MarkInstrument(instrumentID)

	if m.tr.State() != transport.Playing {
		filter := []string{instrumentID}
		m.content.Reschedule(Request{Scope: ScopeNotes, InstrumentFilter: filter, Priority: PriorityIdle, Reason: ReasonNoteEdit}, nil)
		return
	}

	inst, ok := m.content.resolveInstrument(instrumentID)
	if !ok {
		return
	}
	pattern, ok := m.patterns.Pattern(patternID)
	if !ok {
		return
	}
	loopStartTick, loopEndTick, _ := m.tr.LoopInfo()
	loopStartStep := m.tr.TicksToSteps(loopStartTick)
	loopEndStep := m.tr.TicksToSteps(loopEndTick)
	currentStep := m.tr.TicksToSteps(m.tr.CurrentTick())
	lanes := m.automationMgr.GetLanes(patternID, instrumentID)

	m.notes.ScheduleImmediate(inst, instrumentID, n, pattern.LengthSteps, loopStartStep, loopEndStep, currentStep, lanes, m.ccDefaults)
}

func (m *Mediator) onRemoved(instrumentID, noteID string) {
	m.content.Dirty().MarkInstrument(instrumentID)

	if m.tr.State() != transport.Playing {
		m.content.Reschedule(Request{Scope: ScopeNotes, InstrumentFilter: []string{instrumentID}, Priority: PriorityIdle, Reason: ReasonNoteEdit}, nil)
		return
	}

	if rec, found := m.voices.RemoveByNoteID(instrumentID, noteID); found {
		if inst, ok := m.content.resolveInstrument(instrumentID); ok {
			if n, ok := rec.SourceNote.(model.Note); ok {
				inst.ReleaseNote(n.Pitch, m.tr.Now(), nil)
			}
		}
	}
	m.tr.ClearScheduledEvents(func(md equeue.Metadata) bool {
		return md.NoteID == noteID
	})
}

func (m *Mediator) onModified(e bus.Edit) {
	if old, ok := e.OldNote.(model.Note); ok {
		if m.tr.State() == transport.Playing {
			if inst, ok := m.content.resolveInstrument(e.InstrumentID); ok {
				inst.ReleaseNote(old.Pitch, m.tr.Now(), nil)
			}
			m.tr.ClearScheduledEvents(func(md equeue.Metadata) bool {
				return md.NoteID == old.ID
			})
			m.voices.RemoveByNoteID(e.InstrumentID, old.ID)
		}
	}
	m.onAdded(e.PatternID, e.InstrumentID, e.Note)
}
