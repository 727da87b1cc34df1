// Package store defines the read-only snapshot interfaces the content
// scheduler reads under a read lock while scheduling (§3, §6): a pattern
// store, an arrangement store (clips/tracks), and an instrument registry
// the scheduler can ask to re-resolve a missing handle (§7).
package store

import (
	"context"
	"sync"

	"github.com/dawsched/core/internal/capability"
	"github.com/dawsched/core/internal/model"

	"golang.org/x/sync/errgroup"
)

// PatternStore is the §6 "ArrangementStore" pattern half: an immutable
// snapshot of every pattern, keyed by id.
type PatternStore interface {
	Pattern(id string) (*model.Pattern, bool)
	ActivePatternID() string
}

// ArrangementStore is the §6 required collaborator for song mode: clips,
// tracks, and the active pattern id.
type ArrangementStore interface {
	PatternStore
	Clips() []model.AudioClip
	Tracks() map[string]model.Track
}

// Snapshot is a plain in-memory ArrangementStore/PatternStore, the shape the
// scheduler reads under a read lock per §3's "Lifecycles": patterns and
// clips are snapshots taken once per scheduling pass, never mutated by the
// scheduler itself.
type Snapshot struct {
	mu              sync.RWMutex
	patterns        map[string]*model.Pattern
	clips           []model.AudioClip
	tracks          map[string]model.Track
	activePatternID string
}

// NewSnapshot creates an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		patterns: make(map[string]*model.Pattern),
		tracks:   make(map[string]model.Track),
	}
}

func (s *Snapshot) Pattern(id string) (*model.Pattern, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patterns[id]
	return p, ok
}

func (s *Snapshot) ActivePatternID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activePatternID
}

func (s *Snapshot) Clips() []model.AudioClip {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.AudioClip, len(s.clips))
	copy(out, s.clips)
	return out
}

func (s *Snapshot) Tracks() map[string]model.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.Track, len(s.tracks))
	for k, v := range s.tracks {
		out[k] = v
	}
	return out
}

// SetActivePattern sets which pattern plays in pattern mode.
func (s *Snapshot) SetActivePattern(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activePatternID = id
}

// PutPattern installs or replaces a pattern, auto-computing its length per
// §3's Pattern.length_steps rule if the caller leaves LengthSteps at 0.
func (s *Snapshot) PutPattern(p *model.Pattern) {
	if p.LengthSteps <= 0 {
		p.LengthSteps = p.ComputeLength()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns[p.ID] = p
}

// SetClips replaces the arrangement's clip list.
func (s *Snapshot) SetClips(clips []model.AudioClip) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clips = append([]model.AudioClip(nil), clips...)
}

// SetTrack installs or replaces a track's mute/solo state.
func (s *Snapshot) SetTrack(t model.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracks[t.ID] = t
}

// InstrumentResolver is the §7 "synchronous re-sync with the instruments
// store" collaborator: given an id missing from the live registry, it
// attempts one fetch from wherever instruments actually come from (asset
// loader, plugin host — out of this module's scope, §1).
type InstrumentResolver func(ctx context.Context, instrumentID string) (capability.Instrument, error)

// InstrumentRegistry holds the live instrument/effect handles the scheduler
// dispatches to. It is the audio graph's property (§3 "Ownership": the
// scheduler holds only weak references) — Register/Unregister are called by
// the audio graph, never by the scheduler.
type InstrumentRegistry struct {
	mu       sync.RWMutex
	handles  map[string]capability.Instrument
	resolver InstrumentResolver
}

// NewInstrumentRegistry creates a registry. resolver may be nil, in which
// case missing instruments are never re-synced and are simply skipped with
// a warning (§7).
func NewInstrumentRegistry(resolver InstrumentResolver) *InstrumentRegistry {
	return &InstrumentRegistry{handles: make(map[string]capability.Instrument), resolver: resolver}
}

// Register installs a live instrument handle.
func (r *InstrumentRegistry) Register(id string, h capability.Instrument) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[id] = h
}

// Unregister removes a handle, e.g. when the audio graph tears it down.
func (r *InstrumentRegistry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handles, id)
}

// Get returns a handle if already registered, without attempting a resync.
func (r *InstrumentRegistry) Get(id string) (capability.Instrument, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[id]
	return h, ok
}

// ResolveMany attempts one synchronous re-sync per missing id, fanning the
// fetches out over errgroup when there is more than one (§7, SPEC_FULL §B):
// still synchronous and awaited before returning, never left running past
// this call, so it never leaks into the per-tick dispatch loop.
func (r *InstrumentRegistry) ResolveMany(ctx context.Context, ids []string) map[string]capability.Instrument {
	resolved := make(map[string]capability.Instrument)
	if r.resolver == nil || len(ids) == 0 {
		return resolved
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			h, err := r.resolver(gctx, id)
			if err != nil || h == nil {
				return nil // best-effort: caller logs the still-missing id
			}
			r.Register(id, h)
			mu.Lock()
			resolved[id] = h
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // resolver errors are non-fatal (§7); ids left out of `resolved` stay missing
	return resolved
}
