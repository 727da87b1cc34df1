package automation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInMemoryManagerGetLanesUnknownReturnsEmpty(t *testing.T) {
	m := NewInMemoryManager()
	require.Empty(t, m.GetLanes("p1", "lead"))
}

func TestInMemoryManagerSetThenGetLanes(t *testing.T) {
	m := NewInMemoryManager()
	lanes := []Lane{NewLane(7, Linear, []Point{{TimeStep: 0, Value: 1}})}
	m.SetLanes("p1", "lead", lanes)

	got := m.GetLanes("p1", "lead")
	require.Len(t, got, 1)
	require.Empty(t, m.GetLanes("p1", "bass"))
}

func TestInMemoryManagerGetLanesReturnsACopy(t *testing.T) {
	m := NewInMemoryManager()
	m.SetLanes("p1", "lead", []Lane{NewLane(7, Linear, nil)})

	got := m.GetLanes("p1", "lead")
	got[0] = nil
	require.NotNil(t, m.GetLanes("p1", "lead")[0])
}

func TestWithPointsFiltersEmptyLanes(t *testing.T) {
	withPoints := NewLane(7, Linear, []Point{{TimeStep: 0, Value: 1}})
	empty := NewLane(7, Linear, nil)

	out := WithPoints([]Lane{withPoints, empty})
	require.Len(t, out, 1)
	require.Same(t, withPoints, out[0].(*StaticLane))
}
