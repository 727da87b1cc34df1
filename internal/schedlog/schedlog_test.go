package schedlog

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestLogger() (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, nil)
	return New(slog.New(handler)), &buf
}

func TestNewFallsBackToDefaultLoggerWhenNilIsPassed(t *testing.T) {
	l := New(nil)
	require.NotNil(t, l.base)
}

func TestMissingInstrumentLogsOnlyOncePerID(t *testing.T) {
	l, buf := newTestLogger()
	l.MissingInstrument("lead")
	l.MissingInstrument("lead")
	l.MissingInstrument("lead")

	count := strings.Count(buf.String(), "instrument handle not registered")
	require.Equal(t, 1, count)
}

func TestMissingInstrumentLogsSeparatelyPerDistinctID(t *testing.T) {
	l, buf := newTestLogger()
	l.MissingInstrument("lead")
	l.MissingInstrument("bass")

	count := strings.Count(buf.String(), "instrument handle not registered")
	require.Equal(t, 2, count)
}

func TestMissingPatternLogsOnlyOncePerID(t *testing.T) {
	l, buf := newTestLogger()
	l.MissingPattern("p1")
	l.MissingPattern("p1")

	count := strings.Count(buf.String(), "referenced pattern not found")
	require.Equal(t, 1, count)
}

func TestInvalidDurationLogsOnlyOncePerNoteID(t *testing.T) {
	l, buf := newTestLogger()
	l.InvalidDuration("n1", "bogus")
	l.InvalidDuration("n1", "bogus")

	count := strings.Count(buf.String(), "invalid note duration")
	require.Equal(t, 1, count)
}

func TestCallbackPanicAlwaysLogsRegardlessOfRepetition(t *testing.T) {
	l, buf := newTestLogger()
	l.CallbackPanic("note_on", "n1", "boom")
	l.CallbackPanic("note_on", "n1", "boom")

	count := strings.Count(buf.String(), "instrument callback failed")
	require.Equal(t, 2, count, "CallbackPanic is not deduplicated like the other warnings")
}

func TestResetClearsDedupStateAllowingWarningsAgain(t *testing.T) {
	l, buf := newTestLogger()
	l.MissingInstrument("lead")
	l.Reset()
	l.MissingInstrument("lead")

	count := strings.Count(buf.String(), "instrument handle not registered")
	require.Equal(t, 2, count)
}

func TestDifferentKindsWithTheSameIDDoNotShareDedupState(t *testing.T) {
	l, buf := newTestLogger()
	l.MissingInstrument("x1")
	l.MissingPattern("x1")

	require.Equal(t, 1, strings.Count(buf.String(), "instrument handle not registered"))
	require.Equal(t, 1, strings.Count(buf.String(), "referenced pattern not found"))
}
