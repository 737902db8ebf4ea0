package muxtest

import (
	"testing"
	"time"

	"github.com/joeycumines/go-muxbridge/reactor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReactor_WaitFD_levelTriggered(t *testing.T) {
	r := NewReactor()

	var calls []error
	op, err := r.WaitFD(3, reactor.EventRead, func(err error) { calls = append(calls, err) })
	require.NoError(t, err)
	assert.Equal(t, reactor.EventRead, r.Waiting(3))

	r.SetReady(3, reactor.EventWrite)
	assert.Equal(t, 0, r.RunPending())
	assert.Empty(t, calls)

	r.SetReady(3, reactor.EventRead)
	assert.Equal(t, 1, r.RunPending())
	assert.Equal(t, []error{nil}, calls)
	assert.False(t, op.Cancel())
	assert.Equal(t, 0, r.PendingWaits())

	// still ready, so a new wait fires too
	_, err = r.WaitFD(3, reactor.EventRead|reactor.EventWrite, func(err error) { calls = append(calls, err) })
	require.NoError(t, err)
	assert.Equal(t, 1, r.RunPending())
	assert.Len(t, calls, 2)

	r.ClearReady(3, reactor.EventRead|reactor.EventWrite)
	_, err = r.WaitFD(3, reactor.EventRead, func(err error) { calls = append(calls, err) })
	require.NoError(t, err)
	assert.Equal(t, 0, r.RunPending())
	assert.Equal(t, 1, r.Waits(3))
}

func TestReactor_WaitFD_cancel(t *testing.T) {
	r := NewReactor()

	var calls []error
	op, err := r.WaitFD(3, reactor.EventRead, func(err error) { calls = append(calls, err) })
	require.NoError(t, err)

	r.SetReady(3, reactor.EventRead)
	assert.True(t, op.Cancel())
	assert.False(t, op.Cancel())
	// never inline
	assert.Empty(t, calls)
	assert.Equal(t, 0, r.PendingWaits())

	assert.Equal(t, 1, r.RunPending())
	require.Len(t, calls, 1)
	assert.ErrorIs(t, calls[0], reactor.ErrCanceled)
}

func TestReactor_WaitFD_invalid(t *testing.T) {
	r := NewReactor()
	_, err := r.WaitFD(-1, reactor.EventRead, func(error) {})
	assert.ErrorIs(t, err, reactor.ErrFDOutOfRange)
	_, err = r.WaitFD(3, reactor.EventError, func(error) {})
	assert.ErrorIs(t, err, reactor.ErrInvalidEvents)
	r.FailWaitFD = reactor.ErrLoopTerminated
	_, err = r.WaitFD(3, reactor.EventRead, func(error) {})
	assert.ErrorIs(t, err, reactor.ErrLoopTerminated)
}

func TestReactor_AfterFunc(t *testing.T) {
	r := NewReactor()

	var order []int
	for i, d := range []time.Duration{20, 10, 20, 30} {
		_, err := r.AfterFunc(d*time.Millisecond, func(err error) {
			assert.NoError(t, err)
			order = append(order, i)
		})
		require.NoError(t, err)
	}
	next, ok := r.NextTimer()
	assert.True(t, ok)
	assert.Equal(t, 10*time.Millisecond, next)

	assert.Equal(t, 3, r.Advance(20*time.Millisecond))
	assert.Equal(t, []int{1, 0, 2}, order)
	assert.Equal(t, 20*time.Millisecond, r.Now())

	next, ok = r.NextTimer()
	assert.True(t, ok)
	assert.Equal(t, 10*time.Millisecond, next)

	assert.Equal(t, 1, r.Advance(time.Hour))
	_, ok = r.NextTimer()
	assert.False(t, ok)
}

func TestReactor_AfterFunc_cancel(t *testing.T) {
	r := NewReactor()

	var calls []error
	op, err := r.AfterFunc(time.Millisecond, func(err error) { calls = append(calls, err) })
	require.NoError(t, err)
	assert.True(t, op.Cancel())
	assert.Equal(t, 0, r.PendingTimers())

	r.Advance(time.Second)
	require.Len(t, calls, 1)
	assert.ErrorIs(t, calls[0], reactor.ErrCanceled)
	assert.False(t, op.Cancel())
}

func TestReactor_RunPending_doesNotQuiesce(t *testing.T) {
	r := NewReactor()
	r.SetReady(3, reactor.EventRead)
	var rearm func(error)
	rearm = func(error) { _, _ = r.WaitFD(3, reactor.EventRead, rearm) }
	rearm(nil)
	assert.Panics(t, func() { r.RunPending() })
}
