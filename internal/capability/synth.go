package capability

import (
	"sync"
)

// Envelope is an ADSR-style volume envelope, adapted from the teacher's
// tracker.Envelope (attack/decay/release in seconds here instead of tracker
// ticks; sustain is a 0..1 level).
type Envelope struct {
	AttackSeconds  float64
	DecaySeconds   float64
	SustainLevel   float64 // 0..1
	ReleaseSeconds float64
}

type envStage uint8

const (
	stageIdle envStage = iota
	stageAttack
	stageDecay
	stageSustain
	stageRelease
)

type voice struct {
	pitch     float64
	velocity  float64
	osc       *Oscillator
	env       Envelope
	stage     envStage
	level     float64
	elapsed   float64
	fadeOut   float64 // unused: AllNotesOff shortens env.ReleaseSeconds and StopAll drops every voice
}

// DemoSynth is a small polyphonic oscillator instrument that satisfies
// capability.Instrument — used by tests and the CLI demo to exercise
// trigger/release/automation end to end, adapted from the teacher's
// channel/oscillator synthesis path. It is not the deliverable (§1).
type DemoSynth struct {
	Wave           Waveform
	SampleRate     float64
	Env            Envelope
	ReleaseSustain bool

	mu     sync.Mutex
	voices map[int]*voice
	pan    float64
	volume float64 // CC7-driven, 0..1, default 1
}

// NewDemoSynth builds a synth with sane envelope defaults.
func NewDemoSynth(wave Waveform, sampleRate float64) *DemoSynth {
	return &DemoSynth{
		Wave:       wave,
		SampleRate: sampleRate,
		Env: Envelope{
			AttackSeconds:  0.005,
			DecaySeconds:   0.08,
			SustainLevel:   0.7,
			ReleaseSeconds: 0.15,
		},
		ReleaseSustain: true,
		voices:         make(map[int]*voice),
		volume:         1.0,
	}
}

func (s *DemoSynth) TriggerNote(pitch int, velocity float64, atTime float64, duration float64, extended map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	osc := NewOscillator(s.Wave, s.SampleRate)
	osc.SetFrequency(NoteToFreq(pitch))
	s.voices[pitch] = &voice{
		pitch:    float64(pitch),
		velocity: velocity,
		osc:      osc,
		env:      s.Env,
		stage:    stageAttack,
	}
}

func (s *DemoSynth) ReleaseNote(pitch int, atTime float64, releaseVelocity *float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.voices[pitch]; ok {
		v.stage = stageRelease
		v.elapsed = 0
	}
}

func (s *DemoSynth) AllNotesOff(atTime float64, fadeTime float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.voices {
		v.stage = stageRelease
		v.elapsed = 0
		if fadeTime > 0 {
			v.env.ReleaseSeconds = fadeTime
		}
	}
}

func (s *DemoSynth) StopAll(fadeTime float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voices = make(map[int]*voice)
}

func (s *DemoSynth) ApplyAutomation(params map[string]float64, atTime float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := params["volume"]; ok {
		s.volume = v
	}
	if v, ok := params["pan"]; ok {
		s.pan = v
	}
}

func (s *DemoSynth) HasReleaseSustain() bool { return s.ReleaseSustain }

// ActiveSourcesCount implements the optional ActiveSourceCounter capability.
func (s *DemoSynth) ActiveSourcesCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.voices)
}

// GenerateSamples renders len(buf) mono samples, advancing every active
// voice's envelope and oscillator. Adapted from the teacher's
// Player.GenerateSamples mixdown, but voices are summed flat (no sqrt(n)
// gain-staging divisor) and the sum is scaled by the CC7 volume.
func (s *DemoSynth) GenerateSamples(buf []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dt := 1.0 / s.SampleRate
	for i := range buf {
		var mix float64
		for pitch, v := range s.voices {
			v.advanceEnvelope(dt)
			sample := v.osc.Sample() * v.level * v.velocity
			mix += sample
			if v.stage == stageIdle {
				delete(s.voices, pitch)
			}
		}
		mix *= s.volume
		buf[i] = mix
	}
}

func (v *voice) advanceEnvelope(dt float64) {
	v.elapsed += dt
	switch v.stage {
	case stageAttack:
		if v.env.AttackSeconds <= 0 {
			v.level = 1
			v.stage = stageDecay
			v.elapsed = 0
			return
		}
		v.level = v.elapsed / v.env.AttackSeconds
		if v.level >= 1 {
			v.level = 1
			v.stage = stageDecay
			v.elapsed = 0
		}
	case stageDecay:
		if v.env.DecaySeconds <= 0 {
			v.level = v.env.SustainLevel
			v.stage = stageSustain
			return
		}
		frac := v.elapsed / v.env.DecaySeconds
		if frac >= 1 {
			v.level = v.env.SustainLevel
			v.stage = stageSustain
			return
		}
		v.level = 1 - frac*(1-v.env.SustainLevel)
	case stageSustain:
		v.level = v.env.SustainLevel
	case stageRelease:
		start := v.env.SustainLevel
		if v.env.ReleaseSeconds <= 0 {
			v.level = 0
			v.stage = stageIdle
			return
		}
		frac := v.elapsed / v.env.ReleaseSeconds
		if frac >= 1 {
			v.level = 0
			v.stage = stageIdle
			return
		}
		v.level = start * (1 - frac)
	}
}
