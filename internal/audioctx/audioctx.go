// Package audioctx provides the "AudioContext-like clock" required
// collaborator from §6: sample_rate, a monotone current_time in seconds,
// an output-latency hint, and suspend/resume. It is the only place in this
// module that touches a real audio driver (ebitengine/oto, as the teacher
// does in pkg/audio/realtime.go).
package audioctx

import (
	"sync"
	"sync/atomic"
	"time"
)

// Clock is the minimal surface the transport needs from an audio context.
type Clock interface {
	SampleRate() int
	CurrentTime() float64
	OutputLatency() float64
	Suspend() error
	Resume() error
}

// MonotonicClock is a Clock backed by wall-clock time rather than a live
// audio driver callback count — for wall-clock scheduling without an audio
// device, and tests (offline render uses VirtualClock instead). Real-time
// operation swaps in DriverClock (driver.go),
// which is driven by actual oto playback callbacks instead of time.Now.
type MonotonicClock struct {
	sampleRate int
	latency    float64
	start      time.Time
	suspended  atomic.Bool
	mu         sync.Mutex
	suspendedAt time.Time
	suspendedFor time.Duration
}

// NewMonotonicClock creates a clock with current_time starting at 0.
func NewMonotonicClock(sampleRate int, outputLatency float64) *MonotonicClock {
	return &MonotonicClock{
		sampleRate: sampleRate,
		latency:    outputLatency,
		start:      time.Now(),
	}
}

func (c *MonotonicClock) SampleRate() int { return c.sampleRate }

func (c *MonotonicClock) OutputLatency() float64 { return c.latency }

func (c *MonotonicClock) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	elapsed := time.Since(c.start) - c.suspendedFor
	if c.suspended.Load() {
		elapsed = c.suspendedAt.Sub(c.start) - c.suspendedFor
	}
	return elapsed.Seconds()
}

func (c *MonotonicClock) Suspend() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.suspended.Load() {
		c.suspendedAt = time.Now()
		c.suspended.Store(true)
	}
	return nil
}

func (c *MonotonicClock) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.suspended.Load() {
		c.suspendedFor += time.Since(c.suspendedAt)
		c.suspended.Store(false)
	}
	return nil
}

// VirtualClock is a Clock whose current_time advances only when the caller
// explicitly tells it how many samples were consumed — used by the offline
// WAV renderer so a long render completes at CPU speed instead of
// wall-clock speed while the transport still sees a consistent, sample-
// accurate "now".
type VirtualClock struct {
	sampleRate int
	samples    atomic.Int64
}

// NewVirtualClock creates a clock starting at time 0.
func NewVirtualClock(sampleRate int) *VirtualClock {
	return &VirtualClock{sampleRate: sampleRate}
}

func (c *VirtualClock) SampleRate() int      { return c.sampleRate }
func (c *VirtualClock) OutputLatency() float64 { return 0 }
func (c *VirtualClock) Suspend() error        { return nil }
func (c *VirtualClock) Resume() error         { return nil }

func (c *VirtualClock) CurrentTime() float64 {
	return float64(c.samples.Load()) / float64(c.sampleRate)
}

// Advance moves current_time forward by n samples, called once per rendered
// chunk.
func (c *VirtualClock) Advance(n int) {
	c.samples.Add(int64(n))
}
