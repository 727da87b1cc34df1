package voice

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUpsertAndLookupRoundTrip(t *testing.T) {
	b := New()
	r := Record{NoteID: "n1", StartAudioTime: 1.0, EndAudioTime: 2.0}
	b.Upsert("lead", 60, r)

	got, ok := b.Lookup("lead", 60)
	require.True(t, ok)
	require.Equal(t, r, got)

	_, ok = b.Lookup("lead", 61)
	require.False(t, ok)
}

func TestUpsertReplacesSamePitchRecord(t *testing.T) {
	b := New()
	b.Upsert("lead", 60, Record{NoteID: "n1"})
	b.Upsert("lead", 60, Record{NoteID: "n2"})

	got, ok := b.Lookup("lead", 60)
	require.True(t, ok)
	require.Equal(t, "n2", got.NoteID)
	require.Equal(t, 1, b.Count())
}

func TestRemoveByNoteIDFindsCorrectPitchSlot(t *testing.T) {
	b := New()
	b.Upsert("lead", 60, Record{NoteID: "n1"})
	b.Upsert("lead", 64, Record{NoteID: "n2"})

	got, ok := b.RemoveByNoteID("lead", "n1")
	require.True(t, ok)
	require.Equal(t, "n1", got.NoteID)
	require.Equal(t, 1, b.Count())

	_, ok = b.Lookup("lead", 60)
	require.False(t, ok)
	_, ok = b.Lookup("lead", 64)
	require.True(t, ok)
}

func TestRemoveByNoteIDMissingReturnsFalse(t *testing.T) {
	b := New()
	_, ok := b.RemoveByNoteID("lead", "nope")
	require.False(t, ok)
}

func TestActiveReturnsIndependentSnapshot(t *testing.T) {
	b := New()
	b.Upsert("lead", 60, Record{NoteID: "n1"})

	snap := b.Active("lead")
	b.Upsert("lead", 64, Record{NoteID: "n2"})

	require.Len(t, snap, 1, "snapshot must not see later mutations")
	require.Equal(t, 2, b.Count())
}

// P2: after ClearAll, no instrument reports active voices.
func TestClearAllRemovesEveryInstrument(t *testing.T) {
	b := New()
	b.Upsert("lead", 60, Record{NoteID: "n1"})
	b.Upsert("bass", 36, Record{NoteID: "n2"})

	b.ClearAll()
	require.Equal(t, 0, b.Count())
	require.Empty(t, b.Active("lead"))
	require.Empty(t, b.Active("bass"))
}

func TestClearOnlyAffectsNamedInstrument(t *testing.T) {
	b := New()
	b.Upsert("lead", 60, Record{NoteID: "n1"})
	b.Upsert("bass", 36, Record{NoteID: "n2"})

	b.Clear("lead")
	require.Empty(t, b.Active("lead"))
	require.Len(t, b.Active("bass"), 1)
	require.Equal(t, 1, b.Count())
}
