package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadOverlaysYAMLOnDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ppq: 480\ndebounce:\n  idle_ms: 50\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 480, cfg.PPQ)
	require.Equal(t, 50, cfg.Debounce.IdleMS)
	require.Equal(t, Default().TicksPerStep, cfg.TicksPerStep, "fields absent from the overlay keep their default")
}

func TestLoadRejectsUnparseableYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ppq: [this is not a number"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestValidateRejectsNonPositivePPQAndTicksPerStep(t *testing.T) {
	cfg := Default()
	cfg.PPQ = 0
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.TicksPerStep = -1
	require.Error(t, cfg.Validate())
}

func TestValidateAcceptsDefaults(t *testing.T) {
	require.NoError(t, Default().Validate())
}
