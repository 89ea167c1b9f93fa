package journal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRevertRunsNewestFirst(t *testing.T) {
	j := New()
	state := []int{}
	var order []int

	for i := 0; i < 3; i++ {
		i := i
		prev := len(state)
		j.Append(func() {
			order = append(order, i)
			state = state[:prev]
		})
		state = append(state, i)
	}
	require.Equal(t, 3, j.Len())

	j.Revert(1)
	require.Equal(t, []int{2, 1}, order)
	require.Equal(t, []int{0}, state)
	require.Equal(t, 1, j.Len())

	j.Revert(0)
	require.Empty(t, state)
	require.Equal(t, 0, j.Len())
}

func TestResetDropsEntries(t *testing.T) {
	j := New()
	called := false
	j.Append(func() { called = true })
	j.Reset()
	j.Revert(0)
	require.False(t, called)
	require.Equal(t, 0, j.Len())
}

func TestNilJournal(t *testing.T) {
	var j *Journal
	j.Append(func() { t.Fatal("nil journal must not record") })
	j.Revert(0)
	j.Reset()
	require.Equal(t, 0, j.Len())
}
