package automation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTargetValidKinds(t *testing.T) {
	cases := []struct {
		raw  string
		kind TargetKind
	}{
		{"mixer.master.volume", TargetMixer},
		{"instrument.lead.pan", TargetInstrument},
		{"effect.reverb1.mix", TargetEffect},
	}
	for _, c := range cases {
		got, err := ParseTarget(c.raw)
		require.NoError(t, err)
		require.Equal(t, c.kind, got.Kind)
	}
}

func TestParseTargetRejectsMalformedInput(t *testing.T) {
	_, err := ParseTarget("mixer.master")
	require.Error(t, err)

	_, err = ParseTarget("bogus.id.param")
	require.Error(t, err)

	_, err = ParseTarget("")
	require.Error(t, err)
}

func TestParseTargetKeepsParameterWithEmbeddedDots(t *testing.T) {
	got, err := ParseTarget("effect.reverb1.eq.low.gain")
	require.NoError(t, err)
	require.Equal(t, "reverb1", got.ID)
	require.Equal(t, "eq.low.gain", got.Parameter)
}
