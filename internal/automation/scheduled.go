package automation

import (
	"fmt"
	"strings"

	"github.com/dawsched/core/internal/capability"
	"github.com/dawsched/core/internal/equeue"
	"github.com/dawsched/core/internal/model"
)

// MixerChannel is the narrow surface a "mixer.{id}.{parameter}" scheduled
// automation target needs — no mixing-console package exists in this module
// (§1 non-goal), so callers of Scheduled hand in whatever thin adapter wraps
// their own mixer state.
type MixerChannel interface {
	SetParameter(name string, value float64)
}

// TargetKind is the first segment of a scheduled automation target id.
type TargetKind string

const (
	TargetMixer      TargetKind = "mixer"
	TargetInstrument TargetKind = "instrument"
	TargetEffect     TargetKind = "effect"
)

// Target is a parsed "{kind}.{id}.{parameter}" scheduled-automation address
// (§4.7 mode 1).
type Target struct {
	Kind      TargetKind
	ID        string
	Parameter string
}

// ParseTarget splits a target id string into its three dot-separated
// segments, failing closed on anything malformed (§7).
func ParseTarget(raw string) (Target, error) {
	parts := strings.SplitN(raw, ".", 3)
	if len(parts) != 3 {
		return Target{}, fmt.Errorf("automation: malformed target id %q", raw)
	}
	kind := TargetKind(parts[0])
	switch kind {
	case TargetMixer, TargetInstrument, TargetEffect:
	default:
		return Target{}, fmt.Errorf("automation: unknown target kind %q in %q", parts[0], raw)
	}
	return Target{Kind: kind, ID: parts[1], Parameter: parts[2]}, nil
}

// Resolvers bundles the three lookups Scheduled needs to dispatch a parsed
// target to a live handle. Any may return false; an unresolved target is
// skipped and logged by the caller, never fatal (§7).
type Resolvers struct {
	Mixer      func(id string) (MixerChannel, bool)
	Instrument func(id string) (capability.Instrument, bool)
	Effect     func(id string) (capability.Effect, bool)
}

// EventScheduler is the narrow transport surface Scheduled needs: enqueue a
// callback at an absolute audio time, and cancel by metadata predicate. The
// real implementation is *transport.Transport; this interface exists only to
// keep this package from importing transport (which would import back
// through bus/equeue in the other direction and create a cycle risk as the
// module grows).
type EventScheduler interface {
	ScheduleEvent(audioTime float64, cb equeue.Callback, meta equeue.Metadata) equeue.Handle
	ClearScheduledEvents(filter func(equeue.Metadata) bool)
}

// Scheduled drives §4.7 mode 1: pattern/song-level automation points are
// discrete "set parameter to value at this absolute time" events, one queue
// entry per point for each Schedule call. The content scheduler's
// reschedule passes and the session's Stop do not call Scheduled, so points
// are enqueued and cleared only by callers that invoke it directly.
type Scheduled struct {
	resolvers Resolvers
}

// NewScheduled builds a Scheduled applier using resolvers to dispatch
// parsed targets.
func NewScheduled(resolvers Resolvers) *Scheduled {
	return &Scheduled{resolvers: resolvers}
}

// Schedule enqueues every point of every target in automation against sched,
// anchoring TimeStep 0 at patternStartTime and converting steps to seconds
// via secondsPerStep (§4.4's pattern-relative timing, reused for automation).
func (s *Scheduled) Schedule(sched EventScheduler, patternStartTime, secondsPerStep float64, automation map[string][]model.AutomationPoint) {
	for targetRaw, points := range automation {
		target, err := ParseTarget(targetRaw)
		if err != nil {
			continue // unparseable target: nothing to schedule, caller's logger already warned at load time
		}
		for _, pt := range points {
			at := patternStartTime + pt.TimeStep*secondsPerStep
			s.enqueueSet(sched, target, pt.Value, at)
		}
	}
}

// ClearFor cancels every pending scheduled-automation entry for a single
// target, e.g. before rescheduling just one instrument's automation (§4.9
// partial reschedule).
func (s *Scheduled) ClearFor(sched EventScheduler, targetRaw string) {
	sched.ClearScheduledEvents(func(m equeue.Metadata) bool {
		return m.Kind == equeue.KindAutomation && m.Target == targetRaw
	})
}

// ClearAll cancels every pending scheduled-automation entry, regardless of
// target.
func (s *Scheduled) ClearAll(sched EventScheduler) {
	sched.ClearScheduledEvents(func(m equeue.Metadata) bool {
		return m.Kind == equeue.KindAutomation
	})
}

func (s *Scheduled) enqueueSet(sched EventScheduler, target Target, value, at float64) {
	meta := equeue.Metadata{
		Kind:         equeue.KindAutomation,
		InstrumentID: target.ID,
		Target:       string(target.Kind) + "." + target.ID + "." + target.Parameter,
		Parameter:    target.Parameter,
	}
	sched.ScheduleEvent(at, func(scheduledTime float64) {
		s.apply(target, value, scheduledTime)
	}, meta)
}

func (s *Scheduled) apply(target Target, value, atTime float64) {
	switch target.Kind {
	case TargetMixer:
		if s.resolvers.Mixer == nil {
			return
		}
		if ch, ok := s.resolvers.Mixer(target.ID); ok {
			ch.SetParameter(target.Parameter, value)
		}
	case TargetInstrument:
		if s.resolvers.Instrument == nil {
			return
		}
		if inst, ok := s.resolvers.Instrument(target.ID); ok {
			inst.ApplyAutomation(map[string]float64{target.Parameter: value}, atTime)
		}
	case TargetEffect:
		if s.resolvers.Effect == nil {
			return
		}
		if fx, ok := s.resolvers.Effect(target.ID); ok {
			fx.UpdateParams(map[string]float64{target.Parameter: value})
		}
	}
}
