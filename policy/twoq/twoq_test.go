package twoq

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newQ(capIn, capGhost int) *twoQ[string] {
	return New[string](capIn, capGhost).New().(*twoQ[string])
}

// A first-time key is admitted into A1in.
func TestTwoQ_TouchAdmitsToA1in(t *testing.T) {
	t.Parallel()

	q := newQ(2, 4)
	q.Touch("a")

	require.Equal(t, 1, q.in.Len())
	require.Equal(t, 0, q.am.Len())
	require.Equal(t, 1, q.Len())
}

// A second touch while resident promotes from A1in to Am.
func TestTwoQ_SecondTouchPromotesToAm(t *testing.T) {
	t.Parallel()

	q := newQ(2, 4)
	q.Touch("a")
	q.Touch("a")

	require.Equal(t, 0, q.in.Len())
	require.Equal(t, 1, q.am.Len())
	require.Equal(t, []string{"a"}, q.Keys())
}

// While A1in is over capIn, its oldest key is the victim and becomes a ghost.
func TestTwoQ_VictimFromA1inWhenOverCap(t *testing.T) {
	t.Parallel()

	q := newQ(1, 4)
	q.Touch("hot")
	q.Touch("hot") // Am
	q.Touch("x")
	q.Touch("y") // A1in = [y, x] > capIn

	k, ok := q.Victim("y")
	require.True(t, ok)
	require.Equal(t, "x", k)
	_, ghost := q.ghostIdx["x"]
	require.True(t, ghost, "evicted A1in key must be remembered")
	require.Equal(t, []string{"hot", "y"}, q.Keys())
}

// Within capIn, the LRU of Am goes first.
func TestTwoQ_VictimFromAmWithinCap(t *testing.T) {
	t.Parallel()

	q := newQ(4, 4)
	q.Touch("a")
	q.Touch("a")
	q.Touch("b")
	q.Touch("b")
	q.Touch("c") // A1in

	k, ok := q.Victim("c")
	require.True(t, ok)
	require.Equal(t, "a", k)
	_, ghost := q.ghostIdx["a"]
	require.False(t, ghost, "Am evictions do not create ghosts")
}

// A ghost key is readmitted straight into Am.
func TestTwoQ_GhostReadmittedToAm(t *testing.T) {
	t.Parallel()

	q := newQ(1, 4)
	q.Touch("a")
	q.Touch("b")
	k, ok := q.Victim("b")
	require.True(t, ok)
	require.Equal(t, "a", k)

	q.Touch("a")
	_, inAm := q.amIdx["a"]
	require.True(t, inAm)
	_, ghost := q.ghostIdx["a"]
	require.False(t, ghost)
}

// Ghost list is bounded by capGhost.
func TestTwoQ_GhostCapacity(t *testing.T) {
	t.Parallel()

	q := newQ(1, 2)
	for _, k := range []string{"a", "b", "c", "d"} {
		q.Touch(k)
	}
	for i := 0; i < 3; i++ {
		_, ok := q.Victim("")
		require.True(t, ok)
	}
	require.Equal(t, 2, q.ghost.Len())
}

// Explicit Remove does not leave ghosts behind.
func TestTwoQ_RemoveNoGhost(t *testing.T) {
	t.Parallel()

	q := newQ(2, 2)
	q.Touch("a")
	q.Touch("b")
	q.Touch("b")
	q.Remove("a")
	q.Remove("b")
	q.Remove("zzz")

	require.Equal(t, 0, q.Len())
	require.Equal(t, 0, q.ghost.Len())
	_, ok := q.Victim("")
	require.False(t, ok)
}

// Update keeps an A1in key on probation.
func TestTwoQ_UpdateDoesNotPromote(t *testing.T) {
	t.Parallel()

	q := newQ(2, 2)
	q.Touch("a")
	q.Touch("b")
	q.Update("a")
	q.Update("zzz")

	require.Equal(t, 0, q.am.Len())
	require.Equal(t, []string{"a", "b"}, q.Keys())
}
