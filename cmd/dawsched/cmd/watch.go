package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/dawsched/core/internal/scheduler"
	"github.com/dawsched/core/internal/session"
	"github.com/dawsched/core/internal/tui"
)

var watchBPM float64

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Play the demo pattern behind a live transport/position status view",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().Float64Var(&watchBPM, "bpm", 120, "playback tempo")
	Root.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := session.New(cfg, sampleRate)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer s.Close()

	registerDemoInstruments(s, float64(sampleRate))
	pattern := buildDemoPattern()
	s.Patterns.PutPattern(pattern)
	s.Patterns.SetActivePattern(pattern.ID)
	s.SetPlaybackMode(scheduler.ModePattern)

	if err := s.SetBPM(watchBPM); err != nil {
		return err
	}
	if err := s.EnableAutoLoop(); err != nil {
		return err
	}
	if err := s.Play(nil); err != nil {
		return fmt.Errorf("watch: %w", err)
	}

	p := tea.NewProgram(tui.NewModel(s))
	_, err = p.Run()
	return err
}
