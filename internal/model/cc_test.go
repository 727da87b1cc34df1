package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMapCCValueVolumeAndPanScaleToUnitRange(t *testing.T) {
	require.InDelta(t, 1.0, MapCCValue(CCVolume, 127), 1e-9)
	require.InDelta(t, 0.0, MapCCValue(CCVolume, 0), 1e-9)

	require.InDelta(t, -1.0, MapCCValue(CCPan, 0), 1e-9)
	require.InDelta(t, 0.0, MapCCValue(CCPan, 64), 1e-9)
	require.InDelta(t, 1.0, MapCCValue(CCPan, 128), 1e-9)
}

func TestMapCCValuePassthroughForUnmappedCCs(t *testing.T) {
	require.Equal(t, 64.0, MapCCValue(CCModWheel, 64))
	require.Equal(t, 64.0, MapCCValue(CCFilterCutoff, 64))
}

func TestCCParameterNamesCoversEveryDefault(t *testing.T) {
	for cc := range DefaultCCValues {
		_, ok := CCParameterNames[cc]
		require.True(t, ok, "cc %d missing a parameter name", cc)
	}
}
