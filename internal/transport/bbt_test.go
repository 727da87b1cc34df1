package transport

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// P7: bbt_to_tick(tick_to_bbt(x)) == x for every tick in a representative
// range, the round-trip identity invariant.
func TestBBTRoundTripIdentity(t *testing.T) {
	const ticksPerStep = 24
	const ticksPerBar = ticksPerStep * 16
	const stepsPerBeat = 4

	for tick := int64(0); tick < int64(ticksPerBar)*8; tick++ {
		bbt := tickToBBT(tick, ticksPerStep, ticksPerBar, stepsPerBeat)
		back := bbtToTick(bbt, ticksPerStep, ticksPerBar, stepsPerBeat)
		require.Equal(t, tick, back, "tick=%d bbt=%+v", tick, bbt)
	}
}

func TestTickToBBTFirstTick(t *testing.T) {
	bbt := tickToBBT(0, 24, 24*16, 4)
	require.Equal(t, BBT{Bar: 1, Beat: 1, Sixteenth: 1, SubSixteenth: 0}, bbt)
}

func TestTickToBBTAdvancesBarOnWrap(t *testing.T) {
	ticksPerStep, ticksPerBar := 24, 24*16
	bbt := tickToBBT(int64(ticksPerBar), ticksPerStep, ticksPerBar, 4)
	require.Equal(t, 2, bbt.Bar)
	require.Equal(t, 1, bbt.Beat)
	require.Equal(t, 1, bbt.Sixteenth)
}

func TestBBTStringAndDisplay(t *testing.T) {
	bbt := BBT{Bar: 3, Beat: 2, Sixteenth: 4}
	require.Equal(t, "3:2:4", bbt.String())
	require.Equal(t, "003:2:4", bbt.Display())
}
