package vclock

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeIsComponentWiseMax(t *testing.T) {
	a := Clock{"A": 1, "B": 3}
	b := Clock{"A": 2, "C": 1}
	merged := a.Merge(b)
	require.Equal(t, Clock{"A": 2, "B": 3, "C": 1}, merged)
}

func TestIncrementOnlyTouchesOwnComponent(t *testing.T) {
	c := Clock{"A": 1}
	next := c.Increment("A")
	require.EqualValues(t, 2, next["A"])
	require.EqualValues(t, 1, c["A"], "original clock must not mutate")
}

func TestMergeDominates(t *testing.T) {
	local := Clock{"A": 1}
	update := Clock{"A": 1, "B": 2}
	merged := local.Merge(update)
	require.True(t, merged.Dominates(update))
}
