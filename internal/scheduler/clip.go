package scheduler

import (
	"math"
	"sync"

	"github.com/dawsched/core/internal/equeue"
	"github.com/dawsched/core/internal/model"
	"github.com/dawsched/core/internal/transport"
)

// AudioBuffer is the opaque resolved sample source an audio clip plays back
// — a decoded asset, a recorded take, or a resampled region. Its contents
// are the audio graph's concern; the scheduler only needs its duration.
type AudioBuffer interface {
	DurationSeconds() float64
}

// AssetResolver looks up an AudioBuffer by the clip's asset/sample chain
// (§4.6: "asset_id -> sample_id -> embedded buffer").
type AssetResolver func(assetID string) (AudioBuffer, bool)

// AudioSource is the capability surface for one playing audio-clip voice —
// the clip-scheduler analogue of capability.Instrument (§9 "dynamic
// dispatch", generalized from notes to audio regions).
type AudioSource interface {
	Start(atTime, offsetSeconds, durationSeconds float64)
	SetGain(linear float64)
	SetPan(pan float64)
	SetPlaybackRate(rate float64)
	FadeIn(seconds float64)
	FadeOut(seconds float64)
	Stop(fadeSeconds float64)
}

// SourceFactory creates a fresh AudioSource routed to mixerInsertID, backed
// by buf. The audio graph owns the returned handle's lifetime.
type SourceFactory func(buf AudioBuffer, mixerInsertID string) (AudioSource, error)

// MixerRouter resolves the insert id a clip routes to, per §4.6's fallback
// chain: unique clip metadata -> asset metadata -> track default -> master.
type MixerRouter func(clip model.AudioClip) string

type nodeGroup struct {
	clipID string
	source AudioSource
}

// ClipScheduler implements §4.6: buffer resolution, start-time/offset
// computation (including "already inside the clip" truncated starts),
// gain/pan/fade application, mixer routing, and node-group tracking for
// targeted stop.
type ClipScheduler struct {
	tr         *transport.Transport
	resolveBuf AssetResolver
	newSource  SourceFactory
	route      MixerRouter

	mu     sync.Mutex
	active map[string]nodeGroup // clip_id -> node group
}

// NewClipScheduler builds a ClipScheduler. A nil resolveBuf or newSource
// disables audio-clip scheduling: Schedule returns false for every clip
// rather than panicking. A nil route sends every clip to the "master" insert.
func NewClipScheduler(tr *transport.Transport, resolveBuf AssetResolver, newSource SourceFactory, route MixerRouter) *ClipScheduler {
	return &ClipScheduler{
		tr:         tr,
		resolveBuf: resolveBuf,
		newSource:  newSource,
		route:      route,
		active:     make(map[string]nodeGroup),
	}
}

// Schedule implements §4.6 given a resolved clip, the base scheduling
// anchor time, tempo, and the transport's current position in seconds.
func (cs *ClipScheduler) Schedule(clip model.AudioClip, baseTime, bpm, currentPositionSeconds float64) bool {
	if cs.resolveBuf == nil || cs.newSource == nil {
		return false
	}
	buf, ok := cs.resolveBuf(clip.AssetID)
	if !ok {
		return false
	}

	clipStartSeconds := clip.StartBeats * 60.0 / bpm
	clipEndSeconds := clipStartSeconds + clip.DurationBeats*60.0/bpm

	var absolute, offset, duration float64
	if currentPositionSeconds >= clipStartSeconds && currentPositionSeconds < clipEndSeconds {
		absolute = cs.tr.Now()
		offset = clip.SampleOffsetSeconds + (currentPositionSeconds - clipStartSeconds)
		duration = (clipEndSeconds - clipStartSeconds) - (currentPositionSeconds - clipStartSeconds)
	} else {
		absolute = baseTime + (clipStartSeconds - currentPositionSeconds)
		if absolute < cs.tr.Now() {
			return false
		}
		offset = clip.SampleOffsetSeconds
		duration = clipEndSeconds - clipStartSeconds
	}
	if duration <= 0 {
		return false
	}

	insertID := "master"
	if cs.route != nil {
		insertID = cs.route(clip)
	}
	source, err := cs.newSource(buf, insertID)
	if err != nil {
		return false
	}

	rate := clip.PlaybackRate
	if rate <= 0 {
		rate = 1.0
	}
	volume := clip.Volume
	if volume <= 0 {
		volume = 1.0
	}
	gainLinear := math.Pow(10, clip.GainDB/20.0) * volume

	cs.track(clip.ID, source)

	cs.tr.ScheduleEvent(absolute, func(scheduledTime float64) {
		source.SetPlaybackRate(rate)
		source.SetGain(gainLinear)
		if clip.Pan != 0 {
			source.SetPan(clip.Pan)
		}
		source.Start(scheduledTime, offset, duration)
		if clip.FadeInBeats > 0 {
			source.FadeIn(clip.FadeInBeats * 60.0 / bpm)
		}
		if clip.FadeOutBeats > 0 {
			fadeOutAt := duration - clip.FadeOutBeats*60.0/bpm
			if fadeOutAt > 0 {
				cs.tr.ScheduleEvent(scheduledTime+fadeOutAt, func(t float64) {
					source.FadeOut(clip.FadeOutBeats * 60.0 / bpm)
				}, equeue.Metadata{Kind: equeue.KindAudioClip, ClipID: clip.ID})
			}
		}
		cs.tr.ScheduleEvent(scheduledTime+duration, func(t float64) {
			cs.release(clip.ID)
		}, equeue.Metadata{Kind: equeue.KindAudioClip, ClipID: clip.ID})
	}, equeue.Metadata{Kind: equeue.KindAudioClip, ClipID: clip.ID})

	return true
}

func (cs *ClipScheduler) track(clipID string, source AudioSource) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.active[clipID] = nodeGroup{clipID: clipID, source: source}
}

// release disconnects and forgets clipID's node group, e.g. on natural
// source-end (§4.6: "On source-end, disconnect all nodes and remove from
// the active list").
func (cs *ClipScheduler) release(clipID string) {
	cs.mu.Lock()
	g, ok := cs.active[clipID]
	if ok {
		delete(cs.active, clipID)
	}
	cs.mu.Unlock()
	if ok {
		g.source.Stop(0)
	}
}

// StopByClipID implements clear_by_clip(clip_id): a targeted, graceful
// stop of one clip's audio source.
func (cs *ClipScheduler) StopByClipID(clipID string, fadeSeconds float64) {
	cs.mu.Lock()
	g, ok := cs.active[clipID]
	if ok {
		delete(cs.active, clipID)
	}
	cs.mu.Unlock()
	if ok {
		g.source.Stop(fadeSeconds)
	}
}

// StopAll stops every active audio-clip source, e.g. on transport stop_all.
func (cs *ClipScheduler) StopAll(fadeSeconds float64) {
	cs.mu.Lock()
	groups := make([]nodeGroup, 0, len(cs.active))
	for _, g := range cs.active {
		groups = append(groups, g)
	}
	cs.active = make(map[string]nodeGroup)
	cs.mu.Unlock()
	for _, g := range groups {
		g.source.Stop(fadeSeconds)
	}
}
