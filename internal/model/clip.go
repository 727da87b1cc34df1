package model

// ClipType distinguishes a pattern-backed clip from a raw audio clip on the
// song timeline.
type ClipType int

const (
	ClipPattern ClipType = iota
	ClipAudio
)

// AudioClip is one block on a song-mode track: either a looped pattern
// reference or an audio-asset reference (§3).
type AudioClip struct {
	ID                   string
	Type                 ClipType
	TrackID              string
	StartBeats           float64
	DurationBeats        float64
	PatternID            string
	PatternOffsetSteps   float64
	AssetID              string
	SampleOffsetSeconds  float64
	GainDB               float64
	Volume               float64 // linear multiplier, default 1.0
	Pan                  float64 // -1..1, default 0
	FadeInBeats          float64
	FadeOutBeats         float64
	PlaybackRate         float64 // default 1.0
	MixerChannelID       string
}

// Track is a mix/solo-aware routing target for clips (§3).
type Track struct {
	ID    string
	Muted bool
	Solo  bool
}

// Audible applies the "solo wins over everything, else mute wins" rule from
// §3's scheduling rule, given whether any track in the set is soloed.
func (t Track) Audible(anySolo bool) bool {
	if anySolo {
		return t.Solo
	}
	return !t.Muted
}

// AnySolo reports whether any track in the set has Solo set.
func AnySolo(tracks map[string]Track) bool {
	for _, t := range tracks {
		if t.Solo {
			return true
		}
	}
	return false
}
