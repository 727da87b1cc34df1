package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dawsched/core/internal/config"
	"github.com/dawsched/core/internal/model"
	"github.com/dawsched/core/internal/transport"
)

func newHeadlessTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := NewHeadless(config.Default(), 44100)
	require.NoError(t, err)
	return s
}

func TestNewHeadlessRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.PPQ = 0
	_, err := NewHeadless(cfg, 44100)
	require.Error(t, err)
}

func TestNewHeadlessHasNoDriverButSharesOneMixer(t *testing.T) {
	s := newHeadlessTestSession(t)
	require.Nil(t, s.Driver)
	require.NotNil(t, s.Mixer)
}

func TestPlayOnHeadlessSessionDoesNotPanicWithoutADriver(t *testing.T) {
	s := newHeadlessTestSession(t)
	require.NoError(t, s.Play(nil))
	require.Equal(t, transport.Playing, s.Transport.State())
	s.Stop()
}

func TestCloseOnHeadlessSessionIsANoOp(t *testing.T) {
	s := newHeadlessTestSession(t)
	require.NoError(t, s.Close())
}

func TestJumpToBarSetsExpectedStep(t *testing.T) {
	s := newHeadlessTestSession(t)
	require.NoError(t, s.JumpToBar(2))
	require.Equal(t, float64(32), s.GetCurrentPosition())
}

func TestEnableAutoLoopRequiresAnActivePattern(t *testing.T) {
	s := newHeadlessTestSession(t)
	require.Error(t, s.EnableAutoLoop())

	s.Patterns.PutPattern(&model.Pattern{ID: "p1", LengthSteps: 32})
	s.Patterns.SetActivePattern("p1")
	require.NoError(t, s.EnableAutoLoop())

	start, end, enabled := s.GetLoopInfo()
	require.Equal(t, int64(0), start)
	require.Equal(t, int64(32), end)
	require.True(t, enabled)
}

func TestGetPlaybackStatusReflectsTransportState(t *testing.T) {
	s := newHeadlessTestSession(t)
	status := s.GetPlaybackStatus()
	require.Equal(t, transport.Stopped, status.State)
	require.Equal(t, 120.0, status.BPM)
}

func TestRenderChunkAdvancesTheVirtualClock(t *testing.T) {
	s := newHeadlessTestSession(t)
	require.NoError(t, s.Transport.Start(nil))

	before := s.Clock.CurrentTime()
	buf := make([]float64, 512)
	s.RenderChunk(buf)
	after := s.Clock.CurrentTime()

	require.InDelta(t, float64(512)/44100.0, after-before, 1e-9)
}

func TestStopClearsActiveVoicesAndStopsTheSchedulingLoop(t *testing.T) {
	s := newHeadlessTestSession(t)
	require.NoError(t, s.Play(nil))
	s.Stop()
	require.Equal(t, transport.Stopped, s.Transport.State())
	require.Equal(t, 0, s.Voices.Count())
}
