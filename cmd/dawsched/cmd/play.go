package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dawsched/core/internal/scheduler"
	"github.com/dawsched/core/internal/session"
)

const sampleRate = 44100

var (
	playLoop bool
	playBPM  float64
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play the built-in demo pattern through the default audio device",
	RunE:  runPlay,
}

func init() {
	playCmd.Flags().BoolVar(&playLoop, "loop", true, "loop the demo pattern")
	playCmd.Flags().Float64Var(&playBPM, "bpm", 120, "playback tempo")
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := session.New(cfg, sampleRate)
	if err != nil {
		return fmt.Errorf("play: %w", err)
	}
	defer s.Close()

	registerDemoInstruments(s, float64(sampleRate))
	pattern := buildDemoPattern()
	s.Patterns.PutPattern(pattern)
	s.Patterns.SetActivePattern(pattern.ID)
	s.SetPlaybackMode(scheduler.ModePattern)

	if err := s.SetBPM(playBPM); err != nil {
		return err
	}
	if playLoop {
		if err := s.EnableAutoLoop(); err != nil {
			return err
		}
	}

	if err := s.Play(nil); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	fmt.Println("playing demo pattern, ctrl-c to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-sigCh:
			s.Stop()
			fmt.Println("\nstopped")
			return nil
		case <-ticker.C:
			status := s.GetPlaybackStatus()
			fmt.Printf("\r%s bar=%d beat=%d step=%d bpm=%.1f   ",
				status.State, status.Position.Bar, status.Position.Beat, status.Position.Sixteenth, status.BPM)
		}
	}
}
