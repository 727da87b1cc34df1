package transport

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dawsched/core/internal/audioctx"
	"github.com/dawsched/core/internal/bus"
	"github.com/dawsched/core/internal/equeue"
	"github.com/dawsched/core/internal/schedlog"
)

func newTestTransport(t *testing.T) (*Transport, *audioctx.VirtualClock) {
	t.Helper()
	clock := audioctx.NewVirtualClock(44100)
	b := bus.New(16)
	tr, err := New(Config{PPQ: 96, TicksPerStep: 24, LookaheadSeconds: 0.12, MinSafeOffsetSamples: 64}, clock, b, schedlog.New(nil))
	require.NoError(t, err)
	return tr, clock
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	clock := audioctx.NewVirtualClock(44100)
	b := bus.New(16)
	_, err := New(Config{}, clock, b, nil)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

// P8: steps_to_seconds and seconds_to_steps are exact inverses.
func TestStepsSecondsRoundTrip(t *testing.T) {
	tr, _ := newTestTransport(t)
	require.NoError(t, tr.SetBPM(140))
	for _, steps := range []float64{0, 1, 4.5, 16, 127.25} {
		seconds := tr.StepsToSeconds(steps)
		require.InDelta(t, steps, tr.SecondsToSteps(seconds), 1e-9)
	}
}

func TestSetPositionRejectedWhileAdvancing(t *testing.T) {
	tr, clock := newTestTransport(t)
	require.NoError(t, tr.Start(nil))
	clock.Advance(100000)
	tr.Tick(clock.CurrentTime())
	require.ErrorIs(t, tr.SetPosition(4), ErrCannotSetPosition)
}

func TestSetLoopPointsRejectsBackwardsRange(t *testing.T) {
	tr, _ := newTestTransport(t)
	require.ErrorIs(t, tr.SetLoopPoints(8, 8), ErrInvalidConfig)
	require.ErrorIs(t, tr.SetLoopPoints(8, 4), ErrInvalidConfig)
}

func TestPauseFreezesTickWithoutClearingQueue(t *testing.T) {
	tr, clock := newTestTransport(t)
	require.NoError(t, tr.Start(nil))

	fired := false
	tr.ScheduleEvent(0.01, func(float64) { fired = true }, equeue.Metadata{})

	tr.Pause()
	clock.Advance(44100)
	tr.Tick(clock.CurrentTime())
	require.False(t, fired, "paused transport must not dispatch due events")
	require.Equal(t, 1, tr.Queue().Len())
}

func TestStopClearsQueueAndResetsPosition(t *testing.T) {
	tr, clock := newTestTransport(t)
	require.NoError(t, tr.Start(nil))
	tr.ScheduleEvent(0.01, func(float64) {}, equeue.Metadata{})
	clock.Advance(4410)
	tr.Tick(clock.CurrentTime())

	tr.Stop()
	require.Equal(t, Stopped, tr.State())
	require.Equal(t, int64(0), tr.CurrentTick())
	require.Equal(t, 0, tr.Queue().Len())
}

func TestTickPublishesLoopEventAndWrapsPosition(t *testing.T) {
	tr, clock := newTestTransport(t)
	require.NoError(t, tr.SetLoopPoints(0, 1)) // 1 step loop: wraps every 24 ticks
	tr.SetLoopEnabled(true)

	var loopEvents int
	tr.bus.Subscribe(bus.TopicLoopEvent, func(any) { loopEvents++ })

	require.NoError(t, tr.Start(nil))
	clock.Advance(44100) // far beyond one loop's duration at the default 120 BPM
	tr.Tick(clock.CurrentTime())

	require.GreaterOrEqual(t, loopEvents, 1)
	require.GreaterOrEqual(t, tr.CurrentTick(), int64(0))
	require.Less(t, tr.CurrentTick(), int64(24))
}

func TestScheduleEventRoundsToTheNearestSampleBoundary(t *testing.T) {
	tr, _ := newTestTransport(t)

	var got float64
	tr.ScheduleEvent(0.12345678, func(scheduledTime float64) { got = scheduledTime }, equeue.Metadata{})

	due := tr.Queue().PopDue(1.0)
	require.Len(t, due, 1)
	due[0].Callback(due[0].AudioTime)

	sampleRate := 44100.0
	want := math.Round(0.12345678*sampleRate) / sampleRate
	require.Equal(t, want, got)
	require.Equal(t, want, due[0].AudioTime)

	// The rounded time must itself be an exact multiple of 1/sample_rate.
	samples := want * sampleRate
	require.InDelta(t, math.Round(samples), samples, 1e-9)
}

func TestBPMChangeDoesNotReshiftScheduledEvents(t *testing.T) {
	tr, _ := newTestTransport(t)
	require.NoError(t, tr.SetBPM(120))
	h := tr.ScheduleEvent(5.0, func(float64) {}, equeue.Metadata{})
	require.NoError(t, tr.SetBPM(200))
	// Cancelling by handle still works after a tempo change: the entry's
	// absolute audio_time was never touched by SetBPM.
	tr.Queue().Cancel(h)
	require.Equal(t, 0, tr.Queue().Len())
}
