// Package render implements the offline WAV bootstrap utility supplementing
// the real-time path: rendering a session's mixdown to a file without an
// audio device, for smoke-testing a pattern/arrangement headlessly.
package render

import (
	"encoding/binary"
	"fmt"
	"io"
)

// SampleSource is anything that can render mono float64 samples on demand —
// session.Mixer satisfies this, as does any single instrument.
type SampleSource interface {
	GenerateSamples(buf []float64)
}

// wavWriter streams 16-bit PCM mono samples after a standard RIFF/WAVE
// header.
type wavWriter struct {
	w          io.Writer
	sampleRate int
}

func newWAVWriter(w io.Writer, sampleRate int) *wavWriter {
	return &wavWriter{w: w, sampleRate: sampleRate}
}

func (w *wavWriter) writeHeader(dataSize int) error {
	if _, err := w.w.Write([]byte("RIFF")); err != nil {
		return err
	}
	if err := binary.Write(w.w, binary.LittleEndian, uint32(dataSize+36)); err != nil {
		return err
	}
	if _, err := w.w.Write([]byte("WAVE")); err != nil {
		return err
	}
	if _, err := w.w.Write([]byte("fmt ")); err != nil {
		return err
	}
	for _, v := range []any{
		uint32(16), uint16(1), uint16(1), uint32(w.sampleRate),
		uint32(w.sampleRate * 2), uint16(2), uint16(16),
	} {
		if err := binary.Write(w.w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	if _, err := w.w.Write([]byte("data")); err != nil {
		return err
	}
	return binary.Write(w.w, binary.LittleEndian, uint32(dataSize))
}

func (w *wavWriter) writeSamples(samples []float64) error {
	for _, s := range samples {
		if s > 1.0 {
			s = 1.0
		}
		if s < -1.0 {
			s = -1.0
		}
		if err := binary.Write(w.w, binary.LittleEndian, int16(s*32767)); err != nil {
			return err
		}
	}
	return nil
}

// ToWAV renders durationSeconds of src's output at sampleRate into w as a
// 16-bit mono WAV file, pulling samples in fixed-size chunks exactly the
// way the real-time driver does, just without a device behind it.
func ToWAV(w io.Writer, src SampleSource, sampleRate int, durationSeconds float64) error {
	if sampleRate <= 0 {
		return fmt.Errorf("render: sample rate must be > 0")
	}
	totalSamples := int(durationSeconds * float64(sampleRate))
	dataSize := totalSamples * 2

	ww := newWAVWriter(w, sampleRate)
	if err := ww.writeHeader(dataSize); err != nil {
		return err
	}

	const chunkSize = 4096
	buf := make([]float64, chunkSize)
	for written := 0; written < totalSamples; {
		remaining := totalSamples - written
		chunk := buf
		if remaining < chunkSize {
			chunk = buf[:remaining]
		}
		src.GenerateSamples(chunk)
		if err := ww.writeSamples(chunk); err != nil {
			return err
		}
		written += len(chunk)
	}
	return nil
}
