// Package config loads the §6 configuration enumeration from a YAML
// document, the format the bulk of the retrieval corpus uses for settings
// (birdnet-go's config.yaml, dagu's DAG config, xg2g's config.yaml).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Debounce holds the per-priority-class scheduling delay in milliseconds,
// §4.4's debounce table.
type Debounce struct {
	IdleMS     int `yaml:"idle_ms"`
	RealtimeMS int `yaml:"realtime_ms"`
	BurstMS    int `yaml:"burst_ms"`
}

// Config is the §6 "Configuration enumeration" table, one field per row.
type Config struct {
	PPQ                  int                `yaml:"ppq"`
	TicksPerStep         int                `yaml:"ticks_per_step"`
	LookaheadSeconds      float64            `yaml:"lookahead_seconds"`
	MinSafeOffsetSamples  int                `yaml:"min_safe_offset_samples"`
	Debounce              Debounce           `yaml:"debounce"`
	LoopRestartFadeMS     int                `yaml:"loop_restart_fade_ms"`
	PauseFadeMS           int                `yaml:"pause_fade_ms"`
	OverlapMinFadeMS      int                `yaml:"overlap_min_fade_ms"`
	CCDefaults            map[uint8]float64  `yaml:"cc_defaults"`
}

// Default returns the §6 default values.
func Default() Config {
	return Config{
		PPQ:                  96,
		TicksPerStep:         24,
		LookaheadSeconds:      0.12,
		MinSafeOffsetSamples:  64,
		Debounce: Debounce{
			IdleMS:     16,
			RealtimeMS: 4,
			BurstMS:    0,
		},
		LoopRestartFadeMS: 20,
		PauseFadeMS:       10,
		OverlapMinFadeMS:  2,
		CCDefaults: map[uint8]float64{
			7:  127,
			10: 64,
			11: 127,
			74: 64,
			71: 0,
			1:  0,
		},
	}
}

// Load overlays a YAML file's contents on top of Default(). A missing file
// is not an error — the caller gets defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects the fatal configurations named in §7.
func (c Config) Validate() error {
	if c.PPQ <= 0 {
		return fmt.Errorf("config: ppq must be > 0, got %d", c.PPQ)
	}
	if c.TicksPerStep <= 0 {
		return fmt.Errorf("config: ticks_per_step must be > 0, got %d", c.TicksPerStep)
	}
	return nil
}
