package capability

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNoteToFreqA4Is440(t *testing.T) {
	require.InDelta(t, 440.0, NoteToFreq(69), 1e-9)
}

func TestNoteToFreqOctaveDoubles(t *testing.T) {
	require.InDelta(t, 880.0, NoteToFreq(81), 1e-6)
	require.InDelta(t, 220.0, NoteToFreq(57), 1e-6)
}

func TestOscillatorSampleStaysInRange(t *testing.T) {
	for _, w := range []Waveform{WaveTriangle, WaveSawtooth, WaveSquare, WaveNoise} {
		o := NewOscillator(w, 44100)
		o.SetFrequency(440)
		for i := 0; i < 1000; i++ {
			s := o.Sample()
			require.GreaterOrEqual(t, s, -1.0001)
			require.LessOrEqual(t, s, 1.0001)
		}
	}
}

func TestOscillatorSilentWithoutFrequency(t *testing.T) {
	o := NewOscillator(WaveSawtooth, 44100)
	require.Equal(t, 0.0, o.Sample())
}
