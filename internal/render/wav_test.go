package render

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSampleSource struct {
	value float64
	calls int
}

func (f *fakeSampleSource) GenerateSamples(buf []float64) {
	f.calls++
	for i := range buf {
		buf[i] = f.value
	}
}

func TestToWAVRejectsNonPositiveSampleRate(t *testing.T) {
	var buf bytes.Buffer
	err := ToWAV(&buf, &fakeSampleSource{}, 0, 1.0)
	require.Error(t, err)
}

func TestToWAVWritesAValidRIFFHeader(t *testing.T) {
	var buf bytes.Buffer
	src := &fakeSampleSource{value: 0}
	require.NoError(t, ToWAV(&buf, src, 8000, 0.5))

	data := buf.Bytes()
	require.Equal(t, "RIFF", string(data[0:4]))
	require.Equal(t, "WAVE", string(data[8:12]))
	require.Equal(t, "fmt ", string(data[12:16]))
	require.Equal(t, "data", string(data[36:40]))

	totalSamples := int(0.5 * 8000)
	dataSize := totalSamples * 2
	require.Equal(t, uint32(dataSize+36), binary.LittleEndian.Uint32(data[4:8]))

	sampleRate := binary.LittleEndian.Uint32(data[24:28])
	require.Equal(t, uint32(8000), sampleRate)
	numChannels := binary.LittleEndian.Uint16(data[22:24])
	require.Equal(t, uint16(1), numChannels)
	bitsPerSample := binary.LittleEndian.Uint16(data[34:36])
	require.Equal(t, uint16(16), bitsPerSample)

	declaredDataSize := binary.LittleEndian.Uint32(data[40:44])
	require.Equal(t, uint32(dataSize), declaredDataSize)
	require.Equal(t, 44+dataSize, len(data))
}

func TestToWAVClampsOutOfRangeSamplesBeforeQuantizing(t *testing.T) {
	var buf bytes.Buffer
	src := &fakeSampleSource{value: 5.0}
	require.NoError(t, ToWAV(&buf, src, 100, 0.01))

	data := buf.Bytes()
	sample := int16(binary.LittleEndian.Uint16(data[44:46]))
	require.Equal(t, int16(32767), sample, "values above 1.0 clamp to full-scale before int16 conversion")
}

func TestToWAVPullsSamplesInFixedSizeChunks(t *testing.T) {
	var buf bytes.Buffer
	src := &fakeSampleSource{value: 0.1}
	sampleRate := 44100
	duration := 0.5
	require.NoError(t, ToWAV(&buf, src, sampleRate, duration))

	totalSamples := int(duration * float64(sampleRate))
	expectedCalls := (totalSamples + 4095) / 4096
	require.Equal(t, expectedCalls, src.calls)
}
