// Package session wires the transport, content/note/clip schedulers, voice
// bookkeeper, automation engine, and audio driver into the single
// process-scoped object the rest of an application talks to (§6 "Surfaces
// provided", §9 "global singletons... explicit init/teardown in the
// session lifecycle").
package session

import (
	"fmt"
	"time"

	"github.com/dawsched/core/internal/audioctx"
	"github.com/dawsched/core/internal/automation"
	"github.com/dawsched/core/internal/bus"
	"github.com/dawsched/core/internal/config"
	"github.com/dawsched/core/internal/model"
	"github.com/dawsched/core/internal/schedlog"
	"github.com/dawsched/core/internal/scheduler"
	"github.com/dawsched/core/internal/store"
	"github.com/dawsched/core/internal/transport"
	"github.com/dawsched/core/internal/voice"
)

// Status is the get_playback_status() surface (§6).
type Status struct {
	State    transport.State
	BPM      float64
	Position transport.Position
}

// Session is the process-scoped playback engine.
type Session struct {
	cfg config.Config

	Bus           *bus.Bus
	Log           *schedlog.Logger
	Clock         audioctx.Clock
	Driver        *audioctx.DriverClock // nil for a headless (render-only) session
	Transport     *transport.Transport
	Voices        *voice.Bookkeeper
	Registry      *store.InstrumentRegistry
	Patterns      *store.Snapshot
	AutomationMgr *automation.InMemoryManager
	Realtime      *automation.Realtime
	ScheduledAuto *automation.Scheduled
	Notes         *scheduler.NoteScheduler
	Clips         *scheduler.ClipScheduler
	Content       *scheduler.Content
	Mediator      *scheduler.Mediator
	LoopRestarter *scheduler.LoopRestarter
	Mixer         *Mixer

	stopLoop chan struct{}
}

// New builds a fully wired Session against cfg and a real audio device
// running at sampleRate. It does not start playback or the driver loop.
func New(cfg config.Config, sampleRate int) (*Session, error) {
	mixer := NewMixer()
	driver, err := audioctx.NewDriverClock(sampleRate, mixer)
	if err != nil {
		return nil, fmt.Errorf("session: audio driver init: %w", err)
	}
	return newWithClock(cfg, driver, driver, mixer)
}

// NewHeadless builds a Session with no real audio device, driven instead by
// a VirtualClock the caller advances manually via RenderChunk — used by the
// offline WAV renderer and by tests that need deterministic, non-wall-clock
// timing.
func NewHeadless(cfg config.Config, sampleRate int) (*Session, error) {
	clock := audioctx.NewVirtualClock(sampleRate)
	return newWithClock(cfg, clock, nil, NewMixer())
}

func newWithClock(cfg config.Config, clock audioctx.Clock, driver *audioctx.DriverClock, mixer *Mixer) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := bus.New(256)
	log := schedlog.New(nil)
	patterns := store.NewSnapshot()
	registry := store.NewInstrumentRegistry(nil)

	tr, err := transport.New(transport.Config{
		PPQ:                  cfg.PPQ,
		TicksPerStep:         cfg.TicksPerStep,
		LookaheadSeconds:     cfg.LookaheadSeconds,
		MinSafeOffsetSamples: cfg.MinSafeOffsetSamples,
	}, clock, b, log)
	if err != nil {
		return nil, err
	}

	voices := voice.New()
	notes := scheduler.NewNoteScheduler(tr, voices, float64(cfg.OverlapMinFadeMS)/1000.0)
	automationMgr := automation.NewInMemoryManager()
	realtime := automation.NewRealtime(b, cfg.TicksPerStep, cfg.CCDefaults, registry.Get)
	scheduledAuto := automation.NewScheduled(automation.Resolvers{Instrument: registry.Get})
	debouncer := scheduler.NewDebouncer(cfg.Debounce)
	clips := scheduler.NewClipScheduler(tr, nil, nil, nil)

	content := scheduler.NewContent(tr, patterns, patterns, automationMgr, registry, notes, clips, realtime, scheduledAuto, voices, log, debouncer, cfg.CCDefaults)
	loopRestarter := scheduler.NewLoopRestarter(tr, b, content, voices, patterns)
	mediator := scheduler.NewMediator(b, content, notes, voices, tr, patterns, automationMgr, loopRestarter, cfg.CCDefaults)

	return &Session{
		cfg:           cfg,
		Bus:           b,
		Log:           log,
		Clock:         clock,
		Driver:        driver,
		Transport:     tr,
		Voices:        voices,
		Registry:      registry,
		Patterns:      patterns,
		AutomationMgr: automationMgr,
		Realtime:      realtime,
		ScheduledAuto: scheduledAuto,
		Notes:         notes,
		Clips:         clips,
		Content:       content,
		Mediator:      mediator,
		LoopRestarter: loopRestarter,
		Mixer:         mixer,
	}, nil
}

// Play implements play(start_step?) (§6), including §7's "audio context
// suspended on play" recovery: resume, then a 5 ms click-avoidance wait
// before the transport actually starts ticking.
func (s *Session) Play(startStep *int64) error {
	if s.Driver != nil {
		s.Driver.Resume()
		time.Sleep(5 * time.Millisecond)
	}
	if startStep != nil {
		if err := s.Transport.SetPosition(*startStep); err != nil {
			return err
		}
	}
	if err := s.Transport.Start(nil); err != nil {
		return err
	}
	s.startLoop()
	s.Reschedule("play", true)
	return nil
}

// Pause implements pause() — stops clock advance without cancelling
// scheduled events (§4.1).
func (s *Session) Pause() {
	s.Transport.Pause()
	s.Realtime.StopAll()
}

// Resume implements resume(): restarting the transport from its paused
// position.
func (s *Session) Resume() error {
	if err := s.Transport.Start(nil); err != nil {
		return err
	}
	s.Reschedule(scheduler.ReasonResume, false)
	return nil
}

// Stop implements stop(): clears the queue, calls StopAll on every
// registered instrument addressed by the active pattern or by an
// arrangement clip's pattern, stops every audio-clip source, and halts the
// driver loop (§4.1, P2).
func (s *Session) Stop() {
	s.Transport.Stop()
	s.Realtime.StopAll()
	patternIDs := []string{s.Patterns.ActivePatternID()}
	for _, clip := range s.Patterns.Clips() {
		patternIDs = append(patternIDs, clip.PatternID)
	}
	for _, pid := range patternIDs {
		if p, ok := s.Patterns.Pattern(pid); ok {
			for _, id := range p.Instruments(nil) {
				if inst, ok := s.Registry.Get(id); ok {
					inst.StopAll(0)
				}
			}
		}
	}
	s.Clips.StopAll(0)
	s.Voices.ClearAll()
	s.stopLoopIfRunning()
}

// JumpToStep implements jump_to_step(step).
func (s *Session) JumpToStep(step int64) error {
	return s.Transport.SetPosition(step)
}

// JumpToBar implements jump_to_bar(bar), assuming fixed 4/4, 4 steps/beat.
func (s *Session) JumpToBar(bar int) error {
	return s.Transport.SetPosition(int64(bar) * 16)
}

// JumpToTime implements jump_to_time(seconds).
func (s *Session) JumpToTime(seconds float64) error {
	steps := s.Transport.SecondsToSteps(seconds)
	return s.Transport.SetPosition(int64(steps))
}

// SetPlaybackMode implements set_playback_mode(mode).
func (s *Session) SetPlaybackMode(m scheduler.Mode) { s.Content.SetMode(m) }

// GetPlaybackMode implements get_playback_mode().
func (s *Session) GetPlaybackMode() scheduler.Mode { return s.Content.Mode() }

// SetLoopPoints implements set_loop_points(start_step, end_step).
func (s *Session) SetLoopPoints(startStep, endStep int64) error {
	return s.Transport.SetLoopPoints(startStep, endStep)
}

// SetLoopEnabled implements set_loop_enabled(bool).
func (s *Session) SetLoopEnabled(enabled bool) { s.Transport.SetLoopEnabled(enabled) }

// EnableAutoLoop implements enable_auto_loop(): loop the active pattern's
// full derived length.
func (s *Session) EnableAutoLoop() error {
	p, ok := s.Patterns.Pattern(s.Patterns.ActivePatternID())
	if !ok {
		return fmt.Errorf("session: no active pattern to auto-loop")
	}
	if err := s.Transport.SetLoopPoints(0, int64(p.LengthSteps)); err != nil {
		return err
	}
	s.Transport.SetLoopEnabled(true)
	return nil
}

// SetBPM implements set_bpm(bpm).
func (s *Session) SetBPM(bpm float64) error { return s.Transport.SetBPM(bpm) }

// Reschedule implements reschedule(reason?, force?) (§4.4).
func (s *Session) Reschedule(reason string, force bool) {
	s.Content.Reschedule(scheduler.Request{
		Reason:   reason,
		Force:    force,
		Scope:    scheduler.ScopeAuto,
		Priority: scheduler.PriorityAuto,
	}, nil)
}

// RescheduleClipEvents implements reschedule_clip_events(clip): a targeted
// re-schedule of one audio clip, e.g. after its gain/pan/offset changes.
func (s *Session) RescheduleClipEvents(clip model.AudioClip) {
	s.Clips.StopByClipID(clip.ID, 0)
	bpm := s.Transport.BPM()
	currentPositionSeconds := s.Transport.StepsToSeconds(s.Transport.TicksToSteps(s.Transport.CurrentTick()))
	s.Clips.Schedule(clip, s.Transport.Now(), bpm, currentPositionSeconds)
}

// GetCurrentPosition implements get_current_position() -> step.
func (s *Session) GetCurrentPosition() float64 {
	return s.Transport.TicksToSteps(s.Transport.CurrentTick())
}

// GetPlaybackStatus implements get_playback_status().
func (s *Session) GetPlaybackStatus() Status {
	return Status{
		State:    s.Transport.State(),
		BPM:      s.Transport.BPM(),
		Position: s.Transport.Position(),
	}
}

// GetLoopInfo implements get_loop_info().
func (s *Session) GetLoopInfo() (startStep, endStep int64, enabled bool) {
	startTick, endTick, enabled := s.Transport.LoopInfo()
	return int64(s.Transport.TicksToSteps(startTick)), int64(s.Transport.TicksToSteps(endTick)), enabled
}

// startLoop launches the scheduling-loop goroutine (§5): a fixed-cadence
// driver that calls Transport.Tick and drains the edit bus. It is the
// analogue of the teacher's bubbletea 16ms tea.Tick poll, but independent
// of any UI.
func (s *Session) startLoop() {
	if s.stopLoop != nil {
		return
	}
	s.stopLoop = make(chan struct{})
	stop := s.stopLoop
	go func() {
		ticker := time.NewTicker(2 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.Mediator.ProcessPendingEdits()
				s.Transport.Tick(s.Clock.CurrentTime())
			}
		}
	}()
}

func (s *Session) stopLoopIfRunning() {
	if s.stopLoop == nil {
		return
	}
	close(s.stopLoop)
	s.stopLoop = nil
}

// RenderChunk drives one offline render step for a headless session: drain
// pending edits, tick the transport against the virtual clock's current
// time (dispatching anything due within the look-ahead window), mix len(buf)
// samples into buf, then advance the virtual clock by that many samples.
// The caller is responsible for calling Transport.Start before the first
// chunk. Only valid on a session built with NewHeadless.
func (s *Session) RenderChunk(buf []float64) {
	s.Mediator.ProcessPendingEdits()
	s.Transport.Tick(s.Clock.CurrentTime())
	s.Mixer.GenerateSamples(buf)
	if vc, ok := s.Clock.(*audioctx.VirtualClock); ok {
		vc.Advance(len(buf))
	}
}

// Close releases the underlying audio device. A no-op for a headless
// session (no device to release).
func (s *Session) Close() error {
	s.stopLoopIfRunning()
	if s.Driver == nil {
		return nil
	}
	return s.Driver.Close()
}
