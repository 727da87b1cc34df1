package transport

import (
	"fmt"
	"math"
)

// BBT is a bar:beat:sixteenth position with 1-based bar/beat/sixteenth and
// sub_sixteenth in [0, 1), per §3.
type BBT struct {
	Bar          int
	Beat         int
	Sixteenth    int
	SubSixteenth float64
}

// String renders the §4.3 "B:b:s" bbt_string format.
func (b BBT) String() string {
	return fmt.Sprintf("%d:%d:%d", b.Bar, b.Beat, b.Sixteenth)
}

// Display renders the §4.3 display_string format: bar left-padded to width 3.
func (b BBT) Display() string {
	return fmt.Sprintf("%03d:%d:%d", b.Bar, b.Beat, b.Sixteenth)
}

// tickToBBT converts an absolute tick count to a BBT position, given the
// transport's fixed PPQ-derived geometry. stepsPerBeat and ticksPerStep are
// passed explicitly so this stays a pure function, independent of any
// Transport instance (§4.3: "Pure function of current_tick").
func tickToBBT(tick int64, ticksPerStep, ticksPerBar int, stepsPerBeat int) BBT {
	ticksPerBeat := ticksPerStep * stepsPerBeat

	bar := tick/int64(ticksPerBar) + 1
	remInBar := tick % int64(ticksPerBar)

	beat := remInBar/int64(ticksPerBeat) + 1
	remInBeat := remInBar % int64(ticksPerBeat)

	sixteenth := remInBeat/int64(ticksPerStep) + 1
	remInStep := remInBeat % int64(ticksPerStep)

	sub := float64(remInStep) / float64(ticksPerStep)

	return BBT{Bar: int(bar), Beat: int(beat), Sixteenth: int(sixteenth), SubSixteenth: sub}
}

// bbtToTick is the exact inverse of tickToBBT (P7: round-trip identity).
func bbtToTick(b BBT, ticksPerStep, ticksPerBar int, stepsPerBeat int) int64 {
	ticksPerBeat := ticksPerStep * stepsPerBeat
	remTick := int64(math.Round(b.SubSixteenth * float64(ticksPerStep)))
	return int64(b.Bar-1)*int64(ticksPerBar) +
		int64(b.Beat-1)*int64(ticksPerBeat) +
		int64(b.Sixteenth-1)*int64(ticksPerStep) +
		remTick
}

// Position is the §4.3 position-tracker snapshot, memoized on tick equality
// by the caller (Transport.Position caches the last computed value).
type Position struct {
	Tick         int64
	Step         int64
	StepFloat    float64
	Bar          int
	Beat         int
	Sixteenth    int
	SubSixteenth float64
	BBTString    string
	Display      string
}

func positionFromTick(tick int64, ticksPerStep, ticksPerBar int) Position {
	const stepsPerBeat = 4 // 16 steps per bar / 4 beats, fixed 4/4 geometry (§3)
	bbt := tickToBBT(tick, ticksPerStep, ticksPerBar, stepsPerBeat)
	return Position{
		Tick:         tick,
		Step:         tick / int64(ticksPerStep),
		StepFloat:    float64(tick) / float64(ticksPerStep),
		Bar:          bbt.Bar,
		Beat:         bbt.Beat,
		Sixteenth:    bbt.Sixteenth,
		SubSixteenth: bbt.SubSixteenth,
		BBTString:    bbt.String(),
		Display:      bbt.Display(),
	}
}
