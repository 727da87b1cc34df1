// Package schedlog wraps log/slog with the narrow "log once, never fatal"
// helpers the scheduling loop calls for the recoverable error kinds in §7.
// The scheduling loop itself never logs synchronously on the hot path (§5);
// these helpers are called from the dispatch boundary, not from tick().
package schedlog

import (
	"log/slog"
	"sync"
)

// Logger rate-limits each distinct (kind, id) warning to once, matching
// §7's "skip scheduling this instrument for this cycle and log once".
type Logger struct {
	base *slog.Logger
	mu   sync.Mutex
	seen map[string]struct{}
}

// New wraps base, or slog.Default() if base is nil.
func New(base *slog.Logger) *Logger {
	if base == nil {
		base = slog.Default()
	}
	return &Logger{base: base, seen: make(map[string]struct{})}
}

func (l *Logger) once(key string, fn func()) {
	l.mu.Lock()
	_, already := l.seen[key]
	if !already {
		l.seen[key] = struct{}{}
	}
	l.mu.Unlock()
	if !already {
		fn()
	}
}

// MissingInstrument logs the §4.4 step 2 / §7 "missing instrument reference"
// condition once per instrument id.
func (l *Logger) MissingInstrument(instrumentID string) {
	l.once("instrument:"+instrumentID, func() {
		l.base.Warn("instrument handle not registered, skipping for this cycle", "instrument_id", instrumentID)
	})
}

// MissingPattern logs the §7 "missing pattern or clip's referenced pattern"
// condition once per pattern id.
func (l *Logger) MissingPattern(patternID string) {
	l.once("pattern:"+patternID, func() {
		l.base.Warn("referenced pattern not found, skipping clip", "pattern_id", patternID)
	})
}

// InvalidDuration logs the §7 "invalid note duration string" fallback path.
func (l *Logger) InvalidDuration(noteID, raw string) {
	l.once("duration:"+noteID, func() {
		l.base.Warn("invalid note duration, falling back", "note_id", noteID, "duration", raw)
	})
}

// CallbackPanic logs an instrument/effect callback that panicked or errored
// at the dispatch boundary (§7 "instrument callback throws").
func (l *Logger) CallbackPanic(kind, id string, recovered any) {
	l.base.Error("instrument callback failed, continuing drain", "kind", kind, "id", id, "error", recovered)
}

// Reset clears the once-per-id dedup state, used when a fresh session
// starts and stale warnings should no longer be suppressed.
func (l *Logger) Reset() {
	l.mu.Lock()
	l.seen = make(map[string]struct{})
	l.mu.Unlock()
}
