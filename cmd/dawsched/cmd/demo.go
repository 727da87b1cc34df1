package cmd

import (
	"github.com/dawsched/core/internal/capability"
	"github.com/dawsched/core/internal/model"
	"github.com/dawsched/core/internal/session"
)

// buildDemoPattern constructs a "lead" line with the same four C4/E4/G4/C5
// notes the teacher's cmd/tracker demo builds on a fresh song, plus a
// two-note C2/G2 "bass" line, reshaped into model.Note/model.Pattern. It exists so play/render/inspect exercise a
// non-empty timeline without requiring a project file loader (§1 non-goal).
func buildDemoPattern() *model.Pattern {
	lead := []model.Note{
		{ID: "n0", Pitch: 60, StartStep: 0, DurationSpec: "8n", Velocity: 0.9},
		{ID: "n1", Pitch: 64, StartStep: 4, DurationSpec: "8n", Velocity: 0.9},
		{ID: "n2", Pitch: 67, StartStep: 8, DurationSpec: "8n", Velocity: 0.9},
		{ID: "n3", Pitch: 72, StartStep: 12, DurationSpec: "8n", Velocity: 0.9},
	}
	bass := []model.Note{
		{ID: "b0", Pitch: 36, StartStep: 0, DurationSpec: "4n", Velocity: 0.8},
		{ID: "b1", Pitch: 43, StartStep: 8, DurationSpec: "4n", Velocity: 0.8},
	}
	p := &model.Pattern{
		ID:   "demo",
		Name: "New Pattern",
		Data: map[string][]model.Note{
			"lead": lead,
			"bass": bass,
		},
	}
	p.LengthSteps = p.ComputeLength()
	return p
}

// registerDemoInstruments creates the two demo synth voices the demo
// pattern above addresses and wires them into both the instrument registry
// (so the scheduler can dispatch to them) and the mixer (so they actually
// reach the output/render buffer) — the same two-handle bookkeeping a real
// plugin host would perform on load.
func registerDemoInstruments(s *session.Session, sampleRate float64) {
	leadSynth := capability.NewDemoSynth(capability.WaveSawtooth, sampleRate)
	bassSynth := capability.NewDemoSynth(capability.WaveTriangle, sampleRate)

	s.Registry.Register("lead", leadSynth)
	s.Registry.Register("bass", bassSynth)
	s.Mixer.Add("lead", leadSynth)
	s.Mixer.Add("bass", bassSynth)
}
