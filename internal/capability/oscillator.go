package capability

import "math"

// Waveform selects the oscillator's periodic function. Adapted from the
// teacher's pkg/audio/oscillator.go Generator enum.
type Waveform uint8

const (
	WaveTriangle Waveform = iota
	WaveSawtooth
	WaveSquare
	WaveNoise
)

// Oscillator generates a single periodic waveform sample by sample, exactly
// the teacher's phase-accumulator approach.
type Oscillator struct {
	Wave       Waveform
	Phase      float64
	Frequency  float64
	SampleRate float64
	Duty       float64
}

// NewOscillator creates an oscillator with a 50% default duty cycle.
func NewOscillator(wave Waveform, sampleRate float64) *Oscillator {
	return &Oscillator{Wave: wave, SampleRate: sampleRate, Duty: 0.5}
}

// SetFrequency sets the oscillator's frequency in Hz.
func (o *Oscillator) SetFrequency(freq float64) { o.Frequency = freq }

// NoteToFreq converts a MIDI-style pitch number to Hz (A4 = pitch 69).
func NoteToFreq(pitch int) float64 {
	return 440.0 * math.Pow(2.0, float64(pitch-69)/12.0)
}

// Sample advances the phase accumulator and returns the next waveform
// sample in [-1, 1].
func (o *Oscillator) Sample() float64 {
	if o.Frequency <= 0 {
		return 0
	}
	o.Phase += o.Frequency / o.SampleRate
	if o.Phase >= 1.0 {
		o.Phase -= 1.0
	}
	switch o.Wave {
	case WaveTriangle:
		if o.Phase < 0.5 {
			return 4.0*o.Phase - 1.0
		}
		return 3.0 - 4.0*o.Phase
	case WaveSawtooth:
		return 2.0*o.Phase - 1.0
	case WaveSquare:
		if o.Phase < o.Duty {
			return 1.0
		}
		return -1.0
	case WaveNoise:
		return noiseSample()
	default:
		return 0
	}
}

var noiseState uint32 = 0x1234567

// noiseSample is a cheap xorshift PRNG, used instead of math/rand so the
// demo synth stays allocation-free on the audio thread.
func noiseSample() float64 {
	noiseState ^= noiseState << 13
	noiseState ^= noiseState >> 17
	noiseState ^= noiseState << 5
	return float64(int32(noiseState)) / float64(1<<31)
}
