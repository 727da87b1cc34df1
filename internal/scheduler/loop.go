package scheduler

import (
	"sync"

	"github.com/dawsched/core/internal/bus"
	"github.com/dawsched/core/internal/equeue"
	"github.com/dawsched/core/internal/model"
	"github.com/dawsched/core/internal/store"
	"github.com/dawsched/core/internal/transport"
	"github.com/dawsched/core/internal/voice"
)

// noteStepBounds recovers a record's start/end step from its cached
// SourceNote and the audio-time span the note scheduler stamped it with.
func noteStepBounds(rec voice.Record, secondsPerStep float64) (startStep, endStep float64, ok bool) {
	n, isNote := rec.SourceNote.(model.Note)
	if !isNote || secondsPerStep <= 0 {
		return 0, 0, false
	}
	durationSteps := (rec.EndAudioTime - rec.StartAudioTime) / secondsPerStep
	return n.StartStep, n.StartStep + durationSteps, true
}

// LoopRestarter implements §4.8: on the transport's loop event it
// selectively stops notes that have fully ended, selectively purges the
// future queue, triggers a full burst-priority reschedule anchored at the
// new loop's start time, and re-emits loop_restart for the UI.
type LoopRestarter struct {
	tr       *transport.Transport
	b        *bus.Bus
	content  *Content
	voices   *voice.Bookkeeper
	patterns store.PatternStore

	mu         sync.Mutex
	restarting bool
}

// NewLoopRestarter subscribes to b's loop_event topic immediately.
func NewLoopRestarter(tr *transport.Transport, b *bus.Bus, content *Content, voices *voice.Bookkeeper, patterns store.PatternStore) *LoopRestarter {
	lr := &LoopRestarter{tr: tr, b: b, content: content, voices: voices, patterns: patterns}
	b.Subscribe(bus.TopicLoopEvent, func(payload any) {
		if ev, ok := payload.(bus.LoopEvent); ok {
			lr.onLoopEvent(ev)
		}
	})
	return lr
}

// IsRestarting reports the §4.8 step 2 re-entrancy guard's current state,
// consulted by the note-edit mediator (§7 "scheduler re-entry during loop
// restart").
func (lr *LoopRestarter) IsRestarting() bool {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	return lr.restarting
}

func (lr *LoopRestarter) onLoopEvent(ev bus.LoopEvent) {
	if lr.tr.State() != transport.Playing {
		return
	}
	lr.mu.Lock()
	if lr.restarting {
		lr.mu.Unlock()
		return
	}
	lr.restarting = true
	lr.mu.Unlock()
	defer func() {
		lr.mu.Lock()
		lr.restarting = false
		lr.mu.Unlock()
	}()

	loopEndStep := lr.tr.TicksToSteps(ev.FromTick + 1)
	secondsPerStep := lr.tr.SecondsPerStep()

	lr.selectiveNoteStop(loopEndStep, secondsPerStep)
	lr.selectiveQueuePurge(loopEndStep)

	base := ev.NextLoopStartTime
	lr.content.Reschedule(Request{
		Scope:         ScopeAll,
		Priority:      PriorityBurst,
		Force:         true,
		BaseAudioTime: &base,
	}, nil)

	lr.b.Publish(bus.TopicLoopRestart, bus.LoopRestart{
		Time:      ev.NextLoopStartTime,
		Tick:      0,
		Step:      0,
		Mode:      modeName(lr.content.Mode()),
		PatternID: lr.patterns.ActivePatternID(),
	})
}

// selectiveNoteStop implements §4.8 step 3: only notes that both start at
// or past loop_end and end at or before loop_end are force-stopped. A
// well-formed sustain note (start < loop_end, end > loop_end, GLOSSARY
// "Sustain note") never satisfies both conditions at once and is left to
// release at its own scheduled time (§8 scenario 6).
func (lr *LoopRestarter) selectiveNoteStop(loopEndStep, secondsPerStep float64) {
	for instrumentID, pitches := range lr.snapshotActive() {
		inst, ok := lr.content.resolveInstrument(instrumentID)
		if !ok {
			continue
		}
		for pitch, rec := range pitches {
			startStep, endStep, ok := noteStepBounds(rec, secondsPerStep)
			if !ok {
				continue
			}
			if startStep >= loopEndStep && endStep <= loopEndStep {
				inst.ReleaseNote(pitch, lr.tr.Now(), nil)
				lr.voices.RemoveByNoteID(instrumentID, rec.NoteID)
			}
		}
	}
}

func (lr *LoopRestarter) snapshotActive() map[string]map[int]voice.Record {
	// voice.Bookkeeper only exposes per-instrument snapshots; the content
	// scheduler's instrument id set is the authoritative source of which
	// instruments might have active voices.
	out := make(map[string]map[int]voice.Record)
	for _, instrumentID := range lr.activeInstrumentIDs() {
		active := lr.voices.Active(instrumentID)
		if len(active) > 0 {
			out[instrumentID] = active
		}
	}
	return out
}

func (lr *LoopRestarter) activeInstrumentIDs() []string {
	patternID := lr.patterns.ActivePatternID()
	pattern, ok := lr.patterns.Pattern(patternID)
	if !ok {
		return nil
	}
	return pattern.Instruments(nil)
}

// selectiveQueuePurge implements §4.8 step 4: drop queued note events at or
// past loop_end, except note_off entries whose originating note_on step is
// still before loop_end (those preserve a sustaining note's release).
func (lr *LoopRestarter) selectiveQueuePurge(loopEndStep float64) {
	lr.tr.Queue().ScanFuture(-1, func(m equeue.Metadata) bool {
		if m.Kind != equeue.KindNoteOn && m.Kind != equeue.KindNoteOff {
			return false
		}
		if m.Kind == equeue.KindNoteOff && m.Step < loopEndStep {
			return false
		}
		return m.Step >= loopEndStep
	})
}

func modeName(m Mode) string {
	if m == ModeSong {
		return "song"
	}
	return "pattern"
}
