package scheduler

import (
	"math"
	"regexp"
	"strconv"

	"github.com/dawsched/core/internal/automation"
	"github.com/dawsched/core/internal/capability"
	"github.com/dawsched/core/internal/equeue"
	"github.com/dawsched/core/internal/model"
	"github.com/dawsched/core/internal/transport"
	"github.com/dawsched/core/internal/voice"
)

// NoteScheduler translates pattern notes into note_on/note_off events on the
// transport's queue, tracks active voices for overlap detection, and
// implements the immediate mid-playback insertion path (§4.5).
type NoteScheduler struct {
	tr               *transport.Transport
	voices           *voice.Bookkeeper
	overlapMinFade   float64 // seconds
	nudgeTolerance   float64 // seconds, the 3 ms skew tolerance
	nudgeTo          float64 // seconds, the 10 ms re-anchor
}

// NewNoteScheduler builds a NoteScheduler. overlapMinFadeSeconds is §6's
// overlap_min_fade_ms configuration value, already converted to seconds.
func NewNoteScheduler(tr *transport.Transport, voices *voice.Bookkeeper, overlapMinFadeSeconds float64) *NoteScheduler {
	return &NoteScheduler{
		tr:             tr,
		voices:         voices,
		overlapMinFade: overlapMinFadeSeconds,
		nudgeTolerance: 0.003,
		nudgeTo:        0.010,
	}
}

var fractionSpec = regexp.MustCompile(`^(\d+)n$`)

// computeDurationSeconds implements the §4.5 step 6 duration ladder. A
// "whole note" is 16 steps (four quarter-note beats of four steps each), so
// "8n" is 2 steps and "16n" is 1 step.
func computeDurationSeconds(n model.Note, secondsPerStep float64, patternLengthSteps int) float64 {
	if n.HasPositiveLength() {
		return n.LengthSteps * secondsPerStep
	}
	if n.IsLegacyExtendToEnd() {
		remaining := float64(patternLengthSteps) - n.StartStep
		if remaining < 0 {
			remaining = 0
		}
		return remaining * secondsPerStep
	}
	switch n.DurationSpec {
	case "":
		return 1 * secondsPerStep
	case "trigger":
		return 0.1 * secondsPerStep
	default:
		if m := fractionSpec.FindStringSubmatch(n.DurationSpec); m != nil {
			denom, err := strconv.Atoi(m[1])
			if err == nil && denom > 0 {
				return (16.0 / float64(denom)) * secondsPerStep
			}
		}
		return 1 * secondsPerStep
	}
}

// extendedParams gathers §4.5 step 9's trigger_note payload: direct note
// fields, CC-lane values at the note's start step (volume/CC7 excluded —
// see §9 design notes), and slide parameters, which also extend duration.
func extendedParams(n model.Note, lanes []automation.Lane, ccDefaults map[uint8]float64, secondsPerStep float64) (map[string]any, float64) {
	params := make(map[string]any)
	var extraDuration float64

	for _, lane := range lanes {
		cc := lane.CCNumber()
		if cc == model.CCVolume {
			continue // volume is never applied per-note (§9)
		}
		name, known := model.CCParameterNames[cc]
		if !known {
			continue
		}
		raw, ok := lane.GetValueAt(n.StartStep)
		if !ok {
			raw = ccDefaults[cc]
		}
		params[name] = model.MapCCValue(cc, raw)
	}

	if ext := n.Extended; ext != nil {
		if ext.Pan != nil {
			params["pan"] = *ext.Pan
		}
		if ext.ModWheel != nil {
			params["mod_wheel"] = *ext.ModWheel
		}
		if ext.Aftertouch != nil {
			params["aftertouch"] = *ext.Aftertouch
		}
		if len(ext.PitchBend) > 0 {
			params["pitch_bend"] = ext.PitchBend
		}
		if ext.Vibrato != nil {
			params["vibrato"] = *ext.Vibrato
		}
		if ext.Portamento != nil {
			params["portamento"] = *ext.Portamento
		}
		if ext.Arpeggio != nil {
			params["arpeggio"] = *ext.Arpeggio
		}
		for cc, v := range ext.CCOverrides {
			if cc == model.CCVolume {
				continue // volume is never applied per-note (§9)
			}
			if name, known := model.CCParameterNames[cc]; known {
				params[name] = model.MapCCValue(cc, v)
			}
		}
	}

	if n.Slide != nil && n.Slide.Enabled {
		slideSeconds := n.Slide.DurationSeconds
		if slideSeconds <= 0 {
			slideSeconds = n.Slide.DurationSteps * secondsPerStep
		}
		params["slide_target_pitch"] = n.Slide.TargetPitch
		params["slide_duration_seconds"] = slideSeconds
		extraDuration = slideSeconds
	}

	if len(params) == 0 {
		return nil, extraDuration
	}
	return params, extraDuration
}

// ScheduleNote implements §4.5's main translation: one pattern note, at
// the given base/current-position anchor, becomes a note_on (and maybe an
// early-release of a previous overlapping voice, plus a note_off). Returns
// false if the note was skipped (muted, or unrecoverably in the past).
func (ns *NoteScheduler) ScheduleNote(inst capability.Instrument, instrumentID string, n model.Note, patternLengthSteps int, base, currentPositionSteps float64, loopEnabled bool, lanes []automation.Lane, ccDefaults map[uint8]float64) bool {
	if n.Muted {
		return false
	}
	secondsPerStep := ns.tr.SecondsPerStep()
	noteTimeSeconds := n.StartStep * secondsPerStep
	currentPosSeconds := currentPositionSteps * secondsPerStep
	relative := noteTimeSeconds - currentPosSeconds
	absolute := base + relative

	if absolute < base {
		if loopEnabled {
			absolute += ns.tr.LoopDurationSeconds()
			if absolute < base {
				return false
			}
		} else {
			return false
		}
	}

	return ns.scheduleNoteAt(inst, instrumentID, n, patternLengthSteps, absolute, secondsPerStep, lanes, ccDefaults)
}

// scheduleNoteAt implements steps 6-11 once an absolute audio time has been
// determined, shared by both the pattern-relative path above and the
// already-absolute song-clip and immediate-insertion paths.
func (ns *NoteScheduler) scheduleNoteAt(inst capability.Instrument, instrumentID string, n model.Note, patternLengthSteps int, absolute, secondsPerStep float64, lanes []automation.Lane, ccDefaults map[uint8]float64) bool {
	now := ns.tr.Now()
	duration := computeDurationSeconds(n, secondsPerStep, patternLengthSteps)
	extended, extraDuration := extendedParams(n, lanes, ccDefaults, secondsPerStep)
	duration += extraDuration

	pitch := n.Pitch
	if existing, ok := ns.voices.Lookup(instrumentID, pitch); ok && existing.EndAudioTime > absolute {
		overlap := existing.EndAudioTime - absolute
		fade := math.Max(ns.overlapMinFade, 0.5*overlap)
		releaseAt := absolute - fade
		if releaseAt > now {
			existingNoteID := existing.NoteID
			ns.tr.ScheduleEvent(releaseAt, func(scheduledTime float64) {
				inst.ReleaseNote(pitch, scheduledTime, nil)
			}, equeue.Metadata{Kind: equeue.KindNoteOff, InstrumentID: instrumentID, NoteID: existingNoteID, Step: n.StartStep})
		}
	}

	ns.voices.Upsert(instrumentID, pitch, voice.Record{
		NoteID:         n.ID,
		StartAudioTime: absolute,
		EndAudioTime:   absolute + duration,
		SourceNote:     n,
	})

	velocity := n.Velocity
	ns.tr.ScheduleEvent(absolute, func(scheduledTime float64) {
		inst.TriggerNote(pitch, velocity, scheduledTime, duration, extended)
	}, equeue.Metadata{Kind: equeue.KindNoteOn, InstrumentID: instrumentID, NoteID: n.ID, Step: n.StartStep})

	if duration > 0 && inst.HasReleaseSustain() {
		releaseVelocity := n.ReleaseVelocity
		noteID := n.ID
		ns.tr.ScheduleEvent(absolute+duration, func(scheduledTime float64) {
			inst.ReleaseNote(pitch, scheduledTime, releaseVelocity)
			// Only retire the record if it's still ours: an overlapping later
			// note may have already Upsert-ed its own record into this slot.
			if existing, ok := ns.voices.Lookup(instrumentID, pitch); ok && existing.NoteID == noteID {
				ns.voices.Remove(instrumentID, pitch)
			}
		}, equeue.Metadata{Kind: equeue.KindNoteOff, InstrumentID: instrumentID, NoteID: n.ID, Step: n.StartStep, ScheduledNoteOnTime: absolute})
	}

	return true
}

func normalizeMod(x, l float64) float64 {
	if l <= 0 {
		return 0
	}
	m := math.Mod(x, l)
	if m < 0 {
		m += l
	}
	return m
}

// ScheduleImmediate implements §4.5's "Immediate mid-playback insertion":
// NOTE_ADDED arriving during active playback is placed at the next play
// occurrence of its step, anchored off the transport's next_tick_time, with
// a duplicate-prevention scan of the future queue.
func (ns *NoteScheduler) ScheduleImmediate(inst capability.Instrument, instrumentID string, n model.Note, patternLengthSteps int, loopStartStep, loopEndStep, currentStep float64, lanes []automation.Lane, ccDefaults map[uint8]float64) bool {
	if n.Muted {
		return false
	}
	l := loopEndStep - loopStartStep
	curRel := normalizeMod(currentStep-loopStartStep, l)
	noteRel := normalizeMod(n.StartStep-loopStartStep, l)

	step := n.StartStep
	if !(noteRel > curRel) {
		step = n.StartStep + l
	}

	secondsPerStep := ns.tr.SecondsPerStep()
	transportStartTime := ns.tr.TransportStartTime()
	absolute := transportStartTime + step*secondsPerStep
	now := ns.tr.Now()
	if absolute-now <= ns.nudgeTolerance {
		absolute = now + ns.nudgeTo
	}

	duplicate := false
	ns.tr.Queue().ScanFuture(now, func(m equeue.Metadata) bool {
		if m.NoteID == n.ID {
			duplicate = true
		}
		return false // existence check only, never cancels (§4.5 "duplicate-prevention")
	})
	if duplicate {
		return false
	}

	return ns.scheduleNoteAt(inst, instrumentID, n, patternLengthSteps, absolute, secondsPerStep, lanes, ccDefaults)
}
