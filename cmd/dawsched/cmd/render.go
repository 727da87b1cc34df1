package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dawsched/core/internal/render"
	"github.com/dawsched/core/internal/scheduler"
	"github.com/dawsched/core/internal/session"
)

var (
	renderDuration float64
	renderBPM      float64
)

var renderCmd = &cobra.Command{
	Use:   "render <output.wav>",
	Short: "Render the built-in demo pattern to a WAV file without an audio device",
	Args:  cobra.ExactArgs(1),
	RunE:  runRender,
}

func init() {
	renderCmd.Flags().Float64Var(&renderDuration, "duration", 4, "seconds of audio to render")
	renderCmd.Flags().Float64Var(&renderBPM, "bpm", 120, "render tempo")
}

// sessionSource adapts a headless Session to render.SampleSource by driving
// its scheduling loop one chunk at a time instead of on a real-time ticker.
type sessionSource struct {
	s *session.Session
}

func (ss sessionSource) GenerateSamples(buf []float64) {
	ss.s.RenderChunk(buf)
}

func runRender(cmd *cobra.Command, args []string) error {
	outPath := args[0]
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := session.NewHeadless(cfg, sampleRate)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	defer s.Close()

	registerDemoInstruments(s, float64(sampleRate))
	pattern := buildDemoPattern()
	s.Patterns.PutPattern(pattern)
	s.Patterns.SetActivePattern(pattern.ID)
	s.SetPlaybackMode(scheduler.ModePattern)

	if err := s.SetBPM(renderBPM); err != nil {
		return err
	}
	if err := s.EnableAutoLoop(); err != nil {
		return err
	}
	if err := s.Transport.Start(nil); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	s.Reschedule("render", true)

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	defer f.Close()

	if err := render.ToWAV(f, sessionSource{s: s}, sampleRate, renderDuration); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	fmt.Printf("wrote %s (%.1fs @ %dHz)\n", outPath, renderDuration, sampleRate)
	return nil
}
