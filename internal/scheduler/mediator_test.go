package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dawsched/core/internal/audioctx"
	"github.com/dawsched/core/internal/bus"
	"github.com/dawsched/core/internal/model"
	"github.com/dawsched/core/internal/store"
	"github.com/dawsched/core/internal/transport"
)

func newTestMediator(t *testing.T) (*Mediator, *Content, *store.Snapshot, *bus.Bus, *transport.Transport, *audioctx.VirtualClock) {
	t.Helper()
	c, snap, _, b, clock := newTestContentWithBus(t)
	m := NewMediator(b, c, c.notes, c.voices, c.tr, snap, c.automationMgr, nil, nil)
	return m, c, snap, b, c.tr, clock
}

func TestMediatorOnlyActsOnTheActivePattern(t *testing.T) {
	m, c, snap, b, _, _ := newTestMediator(t)
	snap.SetActivePattern("active")

	b.PostEdit(bus.Edit{Kind: bus.PatternChanged, PatternID: "other"})
	m.ProcessPendingEdits()

	require.False(t, c.Dirty().Global(), "an edit tagged with a non-active pattern id must be ignored")
}

func TestMediatorPatternChangedMarksGlobalDirty(t *testing.T) {
	m, c, snap, b, _, _ := newTestMediator(t)
	snap.SetActivePattern("active")

	b.PostEdit(bus.Edit{Kind: bus.PatternChanged, PatternID: "active"})
	m.ProcessPendingEdits()

	require.True(t, c.Dirty().Global())
}

func TestMediatorNoteAddedWhileStoppedDebouncesAScopedReschedule(t *testing.T) {
	m, c, snap, b, _, _ := newTestMediator(t)
	snap.SetActivePattern("p1")
	snap.PutPattern(&model.Pattern{ID: "p1", Data: map[string][]model.Note{
		"lead": {{ID: "n1", Pitch: 60, StartStep: 0, LengthSteps: 4}},
	}})

	b.PostEdit(bus.Edit{Kind: bus.NoteAdded, PatternID: "p1", InstrumentID: "lead", Note: model.Note{ID: "n1", Pitch: 60, StartStep: 0, LengthSteps: 4}})
	m.ProcessPendingEdits()

	require.True(t, c.Dirty().HasDirtyInstruments(), "stopped-transport note-add marks the instrument dirty for the next pass")
}

func TestMediatorNoteAddedWhilePlayingSchedulesImmediately(t *testing.T) {
	m, c, snap, b, tr, clock := newTestMediator(t)
	require.NoError(t, tr.Start(nil))
	snap.SetActivePattern("p1")
	snap.PutPattern(&model.Pattern{ID: "p1", LengthSteps: 16, Data: map[string][]model.Note{
		"lead": {},
	}})
	inst := newFakeInstrument(true)
	c.registry.Register("lead", inst)

	n := model.Note{ID: "n1", Pitch: 60, StartStep: 4}
	b.PostEdit(bus.Edit{Kind: bus.NoteAdded, PatternID: "p1", InstrumentID: "lead", Note: n})
	m.ProcessPendingEdits()

	// ScheduleImmediate only enqueues the trigger on the transport's queue;
	// it fires through Tick's drain, not at enqueue time.
	dispatchDue(tr, clock, tr.Now()+1.0)
	require.Len(t, inst.triggers, 1, "a note added during playback is scheduled immediately, not just marked dirty")
}

func TestMediatorNoteRemovedWhilePlayingReleasesAndPurges(t *testing.T) {
	m, c, snap, b, tr, _ := newTestMediator(t)
	require.NoError(t, tr.Start(nil))
	snap.SetActivePattern("p1")
	inst := newFakeInstrument(true)
	c.registry.Register("lead", inst)

	n := model.Note{ID: "n1", Pitch: 60, StartStep: 0, LengthSteps: 8}
	require.True(t, c.notes.ScheduleNote(inst, "lead", n, 16, tr.Now(), 0, false, nil, nil))
	require.NotZero(t, tr.Queue().Len())

	b.PostEdit(bus.Edit{Kind: bus.NoteRemoved, InstrumentID: "lead", NoteID: "n1"})
	m.ProcessPendingEdits()

	require.Len(t, inst.releases, 1, "removing an active note releases it immediately")
	_, stillActive := c.voices.Lookup("lead", 60)
	require.False(t, stillActive)
	require.Zero(t, tr.Queue().Len(), "the removed note's pending note_on/note_off entries are purged")
}

func TestMediatorNoteModifiedWhilePlayingReplacesTheOldNote(t *testing.T) {
	m, c, snap, b, tr, _ := newTestMediator(t)
	require.NoError(t, tr.Start(nil))
	snap.SetActivePattern("p1")
	snap.PutPattern(&model.Pattern{ID: "p1", LengthSteps: 16, Data: map[string][]model.Note{"lead": {}}})
	inst := newFakeInstrument(true)
	c.registry.Register("lead", inst)

	old := model.Note{ID: "n1", Pitch: 60, StartStep: 0, LengthSteps: 8}
	require.True(t, c.notes.ScheduleNote(inst, "lead", old, 16, tr.Now(), 0, false, nil, nil))

	updated := model.Note{ID: "n1", Pitch: 64, StartStep: 4}
	b.PostEdit(bus.Edit{Kind: bus.NoteModified, PatternID: "p1", InstrumentID: "lead", Note: updated, OldNote: old})
	m.ProcessPendingEdits()

	require.Len(t, inst.releases, 1, "the old pitch is released before the new one is scheduled")
	_, oldPitchActive := c.voices.Lookup("lead", 60)
	require.False(t, oldPitchActive)
}
