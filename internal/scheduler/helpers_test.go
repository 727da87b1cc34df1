package scheduler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dawsched/core/internal/audioctx"
	"github.com/dawsched/core/internal/bus"
	"github.com/dawsched/core/internal/schedlog"
	"github.com/dawsched/core/internal/transport"
)

// fakeInstrument is a capability.Instrument test double recording every call
// it receives, used across the scheduler package's tests in place of a real
// synth.
type fakeInstrument struct {
	triggers []triggerCall
	releases []releaseCall
	params   []map[string]float64
	stopped  bool
	allOff   bool
	sustain  bool
}

type triggerCall struct {
	pitch    int
	velocity float64
	atTime   float64
	duration float64
}

type releaseCall struct {
	pitch  int
	atTime float64
}

func newFakeInstrument(sustain bool) *fakeInstrument {
	return &fakeInstrument{sustain: sustain}
}

func (f *fakeInstrument) TriggerNote(pitch int, velocity, atTime, duration float64, extended map[string]any) {
	f.triggers = append(f.triggers, triggerCall{pitch, velocity, atTime, duration})
}
func (f *fakeInstrument) ReleaseNote(pitch int, atTime float64, releaseVelocity *float64) {
	f.releases = append(f.releases, releaseCall{pitch, atTime})
}
func (f *fakeInstrument) AllNotesOff(atTime, fadeTime float64) { f.allOff = true }
func (f *fakeInstrument) StopAll(fadeTime float64)             { f.stopped = true }
func (f *fakeInstrument) ApplyAutomation(params map[string]float64, atTime float64) {
	f.params = append(f.params, params)
}
func (f *fakeInstrument) HasReleaseSustain() bool { return f.sustain }

func newTestTransport(t *testing.T) (*transport.Transport, *audioctx.VirtualClock, *bus.Bus) {
	t.Helper()
	clock := audioctx.NewVirtualClock(44100)
	b := bus.New(64)
	tr, err := transport.New(transport.Config{PPQ: 96, TicksPerStep: 24, LookaheadSeconds: 0.12, MinSafeOffsetSamples: 64}, clock, b, schedlog.New(nil))
	require.NoError(t, err)
	return tr, clock, b
}

// dispatchDue advances clock to (at least) atLeast seconds and ticks tr once,
// synchronously running every callback now due — entries enqueued via
// Transport.ScheduleEvent only ever fire through Tick's drain, never at
// enqueue time, so tests asserting on an instrument double's recorded calls
// must drive the clock forward this way rather than inspecting the queue
// immediately after scheduling.
func dispatchDue(tr *transport.Transport, clock *audioctx.VirtualClock, atLeast float64) {
	delta := atLeast - clock.CurrentTime()
	if delta > 0 {
		clock.Advance(int(math.Ceil(delta * float64(clock.SampleRate()))))
	}
	tr.Tick(clock.CurrentTime())
}
