package session

import "sync"

// sampleGenerator is anything that can render its own mono output into a
// shared buffer and mix additively — the capability.DemoSynth shape.
type sampleGenerator interface {
	GenerateSamples(buf []float64)
}

// Mixer sums every registered instrument's output into one mono stream,
// the minimal audio graph this module owns (§1: actual DSP is out of
// scope beyond the demo synth voice already borrowed from the teacher).
// It satisfies audioctx.SampleSource.
type Mixer struct {
	mu      sync.Mutex
	sources map[string]sampleGenerator
	scratch []float64
}

// NewMixer creates an empty mixer.
func NewMixer() *Mixer {
	return &Mixer{sources: make(map[string]sampleGenerator)}
}

// Add registers id's generator for mixdown. Passing the same id again
// replaces the previous registration.
func (m *Mixer) Add(id string, gen sampleGenerator) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[id] = gen
}

// Remove deregisters id.
func (m *Mixer) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sources, id)
}

// GenerateSamples sums every registered source into buf, implementing
// audioctx.SampleSource for the driver clock.
func (m *Mixer) GenerateSamples(buf []float64) {
	for i := range buf {
		buf[i] = 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if cap(m.scratch) < len(buf) {
		m.scratch = make([]float64, len(buf))
	}
	scratch := m.scratch[:len(buf)]
	for _, src := range m.sources {
		src.GenerateSamples(scratch)
		for i, v := range scratch {
			buf[i] += v
		}
	}
}
