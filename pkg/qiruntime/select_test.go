package qiruntime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelect_PicksReadyReceive(t *testing.T) {
	a := NewChannel(1)
	b := NewChannel(1)
	require.Equal(t, StatusOK, b.Send(42))

	cases := []SelectCase{
		{Kind: SelectRecv, Chan: a},
		{Kind: SelectRecv, Chan: b},
	}
	idx := Select(cases)
	require.Equal(t, 1, idx)
	assert.Equal(t, int64(42), cases[1].Received)
	assert.Equal(t, StatusOK, cases[1].Status)
}

func TestSelect_PicksReadySend(t *testing.T) {
	full := NewChannel(1)
	require.Equal(t, StatusOK, full.Send(1))
	open := NewChannel(1)

	cases := []SelectCase{
		{Kind: SelectSend, Chan: full, Value: 2},
		{Kind: SelectSend, Chan: open, Value: 3},
	}
	idx := Select(cases)
	require.Equal(t, 1, idx)

	v, st := open.Receive()
	require.Equal(t, StatusOK, st)
	assert.Equal(t, int64(3), v)
}

func TestSelect_DefaultRunsWhenNothingReady(t *testing.T) {
	a := NewChannel(0)
	cases := []SelectCase{
		{Kind: SelectRecv, Chan: a},
		{Kind: SelectDefault},
	}
	assert.Equal(t, 1, Select(cases))
}

func TestSelect_BlocksUntilCaseBecomesReady(t *testing.T) {
	a := NewChannel(1)
	done := make(chan int)
	go func() {
		cases := []SelectCase{{Kind: SelectRecv, Chan: a}}
		done <- Select(cases)
	}()

	select {
	case <-done:
		t.Fatal("select returned before any case was ready")
	case <-time.After(20 * time.Millisecond):
	}

	require.Equal(t, StatusOK, a.Send(9))
	assert.Equal(t, 0, <-done)
}

func TestSelect_ChoosesAmongReadyCases(t *testing.T) {
	// Both cases ready: the choice must always be a valid, ready case.
	for i := 0; i < 32; i++ {
		a := NewChannel(1)
		b := NewChannel(1)
		require.Equal(t, StatusOK, a.Send(1))
		require.Equal(t, StatusOK, b.Send(2))
		idx := Select([]SelectCase{
			{Kind: SelectRecv, Chan: a},
			{Kind: SelectRecv, Chan: b},
		})
		assert.Contains(t, []int{0, 1}, idx)
	}
}
