// Package model defines the immutable timeline data the scheduler reads:
// notes, patterns, clips, tracks and automation lanes. Nothing in this
// package mutates once a snapshot has been handed to the scheduler.
package model

// Slide describes a legacy pitch-slide applied to a note's tail.
type Slide struct {
	Enabled         bool
	TargetPitch     int
	DurationSteps   float64
	DurationSeconds float64 // resolved by the caller from step length; 0 until then
}

// Vibrato is a continuous pitch wobble, carried through to trigger_note as
// part of ExtendedParams. Grounded in the teacher's FxVibrato handling.
type Vibrato struct {
	Speed float64
	Depth float64
}

// Portamento is a continuous glide toward a target frequency. Grounded in
// the teacher's FxPortamento handling.
type Portamento struct {
	Speed float64
}

// Arpeggio offsets a held note by semitones on alternating ticks. Grounded
// in the teacher's FxArpeggio handling.
type Arpeggio struct {
	SemitonesUp   int8
	SemitonesDown int8
}

// ExtendedParams carries per-note modulation that rides alongside
// trigger_note but is never scheduled as its own event. Volume (CC7) is
// deliberately absent here — see automation.Lane and §4.5 step 9.
type ExtendedParams struct {
	Pan         *float64
	ModWheel    *float64
	Aftertouch  *float64
	PitchBend   []float64
	Vibrato     *Vibrato
	Portamento  *Portamento
	Arpeggio    *Arpeggio
	CCOverrides map[uint8]float64
}

// Note is one event within a Pattern's note list for a given instrument.
type Note struct {
	ID              string
	Pitch           int
	StartStep       float64
	LengthSteps     float64 // 0 means "use DurationSpec" below
	DurationSpec    string  // "trigger", "8n", "16n", numeric-free fallback; empty if LengthSteps is authoritative
	VisualLength    float64 // legacy oval-note / extend-to-end marker, see §4.5 step 6
	Velocity        float64
	ReleaseVelocity *float64
	Muted           bool
	Slide           *Slide
	Extended        *ExtendedParams
}

// HasPositiveLength reports whether the note carries an explicit positive
// numeric length, the first rule in the §4.5 step 6 duration ladder.
func (n Note) HasPositiveLength() bool {
	return n.LengthSteps > 0
}

// IsLegacyOval reports a note whose visual length undersells its scheduled
// length — audio must still use the scheduled length (§4.5 step 6, GLOSSARY).
func (n Note) IsLegacyOval() bool {
	return n.VisualLength > 0 && n.VisualLength < n.LengthSteps
}

// IsLegacyExtendToEnd reports the legacy visual_length==1-with-no-length
// marker that means "ring out to the pattern's end" (§4.5 step 6).
func (n Note) IsLegacyExtendToEnd() bool {
	return n.LengthSteps <= 0 && n.VisualLength == 1
}
