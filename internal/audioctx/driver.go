package audioctx

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/ebitengine/oto/v3"
)

// SampleSource is anything that can render mono float64 samples into a
// caller-owned buffer — the demo synth's GenerateSamples method satisfies
// this, as does any mix-down of several instruments.
type SampleSource interface {
	GenerateSamples(buf []float64)
}

// DriverClock is a Clock whose current_time is derived from the number of
// samples actually consumed by the OS audio driver, exactly the teacher's
// pkg/audio/realtime.go approach (an oto.Player pulling from an io.Reader
// that renders on demand). Real-time lookahead scheduling (§4.1) depends on
// this: next_tick_time must be compared against the driver's notion of
// "now", not wall-clock time, or drift accumulates.
type DriverClock struct {
	sampleRate int
	source     SampleSource

	samplesConsumed atomic.Int64
	suspended       atomic.Bool

	otoCtx    *oto.Context
	otoPlayer *oto.Player
	buf       []float64

	mu sync.Mutex
}

// NewDriverClock opens a real-time mono oto output pulling samples from
// source, mirroring the teacher's NewRealtimeOutput.
func NewDriverClock(sampleRate int, source SampleSource) (*DriverClock, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
	}
	otoCtx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	dc := &DriverClock{
		sampleRate: sampleRate,
		source:     source,
		buf:        make([]float64, 512),
	}
	dc.otoPlayer = otoCtx.NewPlayer(&driverStream{dc: dc})
	dc.otoPlayer.SetBufferSize(sampleRate / 10)
	dc.otoPlayer.Play()
	dc.otoCtx = otoCtx
	return dc, nil
}

func (d *DriverClock) SampleRate() int { return d.sampleRate }

func (d *DriverClock) OutputLatency() float64 {
	return float64(d.otoPlayer.BufferedSize()) / float64(d.sampleRate)
}

func (d *DriverClock) CurrentTime() float64 {
	return float64(d.samplesConsumed.Load()) / float64(d.sampleRate)
}

func (d *DriverClock) Suspend() error {
	d.suspended.Store(true)
	d.otoPlayer.Pause()
	return nil
}

func (d *DriverClock) Resume() error {
	d.suspended.Store(false)
	d.otoPlayer.Play()
	return nil
}

// Close releases the underlying oto player.
func (d *DriverClock) Close() error {
	return d.otoPlayer.Close()
}

type driverStream struct {
	dc *DriverClock
}

// Read implements io.Reader for oto, converting the source's float64
// samples to 16-bit PCM exactly as the teacher's audioStream.Read does.
func (s *driverStream) Read(p []byte) (int, error) {
	if s.dc.suspended.Load() {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	samples := len(p) / 2
	if samples > len(s.dc.buf) {
		s.dc.buf = make([]float64, samples)
	}
	s.dc.source.GenerateSamples(s.dc.buf[:samples])
	s.dc.samplesConsumed.Add(int64(samples))

	for i := 0; i < samples; i++ {
		v := s.dc.buf[i]
		if v > 1.0 {
			v = 1.0
		}
		if v < -1.0 {
			v = -1.0
		}
		s16 := int16(v * 32767)
		binary.LittleEndian.PutUint16(p[i*2:], uint16(s16))
	}
	return samples * 2, nil
}
