package muxtest

import (
	"errors"
	"testing"
	"time"

	"github.com/joeycumines/go-muxbridge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandle(t *testing.T, e *Engine) *Handle {
	t.Helper()
	h, err := e.NewHandle()
	require.NoError(t, err)
	return h.(*Handle)
}

func TestEngine_lifecycle(t *testing.T) {
	e := NewEngine()
	h := newHandle(t, e)

	assert.ErrorIs(t, h.SetURL(``), ErrEmptyURL)
	require.NoError(t, h.SetURL(`http://example.com`))
	h.SetPrivate(42)
	assert.Equal(t, 42, h.Private())

	assert.ErrorIs(t, e.Remove(h), ErrNotAdded)
	require.NoError(t, e.Add(h))
	assert.ErrorIs(t, e.Add(h), ErrAlreadyAdded)
	assert.Equal(t, 1, e.Running())
	assert.ErrorIs(t, h.Close(), ErrHandleAdded)

	e.Complete(h, 7)
	assert.Equal(t, 0, e.Running())
	assert.Equal(t, 1, e.Handles())
	msg, ok := e.ReadMessage()
	require.True(t, ok)
	assert.Equal(t, muxbridge.Message{Handle: h, Result: 7}, msg)
	_, ok = e.ReadMessage()
	assert.False(t, ok)

	require.NoError(t, e.Remove(h))
	h.Reset()
	assert.Nil(t, h.Private())
	assert.Empty(t, h.URL())
	require.NoError(t, h.Close())
	assert.ErrorIs(t, e.Add(h), ErrHandleClosed)

	require.NoError(t, e.Close())
	assert.ErrorIs(t, e.Close(), ErrEngineClosed)
	_, err := e.NewHandle()
	assert.ErrorIs(t, err, ErrEngineClosed)
}

func TestEngine_Add_rejected(t *testing.T) {
	e := NewEngine()
	e.OnAdd = func(h *Handle) error {
		e.Complete(h, muxbridge.ResultOK)
		return errors.New(`rejected`)
	}
	h := newHandle(t, e)
	assert.EqualError(t, e.Add(h), `rejected`)
	assert.False(t, h.Added())
	assert.Equal(t, 0, e.Pending())
}

func TestEngine_Remove_dropsMessages(t *testing.T) {
	e := NewEngine()
	a, b := newHandle(t, e), newHandle(t, e)
	require.NoError(t, e.Add(a))
	require.NoError(t, e.Add(b))
	e.Complete(a, 1)
	e.Complete(b, 2)

	var removed []*Handle
	e.OnRemove = func(h *Handle) { removed = append(removed, h) }
	require.NoError(t, e.Remove(a))
	assert.Equal(t, []*Handle{a}, removed)

	msg, ok := e.ReadMessage()
	require.True(t, ok)
	assert.Equal(t, muxbridge.Result(2), msg.Result)
	assert.Equal(t, 0, e.Pending())
}

func TestEngine_Drive(t *testing.T) {
	e := NewEngine()
	var timeouts int
	e.OnTimeout = func() error {
		timeouts++
		return nil
	}
	e.OnDrive = func(fd int, action muxbridge.Action) error {
		return errors.New(`drive failed`)
	}

	running, err := e.Drive(muxbridge.SocketTimeout, muxbridge.ActionNone)
	assert.NoError(t, err)
	assert.Equal(t, 0, running)
	assert.Equal(t, 1, timeouts)

	_, err = e.Drive(3, muxbridge.ActionIn)
	assert.EqualError(t, err, `drive failed`)

	assert.Equal(t, []Drive{
		{FD: muxbridge.SocketTimeout, Action: muxbridge.ActionNone},
		{FD: 3, Action: muxbridge.ActionIn},
	}, e.Drives)
}

func TestEngine_callbacks(t *testing.T) {
	e := NewEngine()
	assert.Panics(t, func() { e.Watch(3, muxbridge.ActionIn) })
	assert.Panics(t, func() { e.SetTimeout(0) })

	var watched []any
	e.SetSocketFunc(func(fd int, action muxbridge.Action, socketp any) int {
		watched = append(watched, socketp)
		return 0
	})
	var timeouts []time.Duration
	e.SetTimerFunc(func(timeout time.Duration) int {
		timeouts = append(timeouts, timeout)
		return -1
	})

	assert.Equal(t, 0, e.Watch(3, muxbridge.ActionIn))
	require.NoError(t, e.Assign(3, `assoc`))
	assert.Equal(t, `assoc`, e.Assigned(3))
	assert.Equal(t, 0, e.Watch(3, muxbridge.ActionOut))
	require.NoError(t, e.Assign(3, nil))
	assert.Nil(t, e.Assigned(3))
	assert.Error(t, e.Assign(-1, `x`))
	assert.Equal(t, []any{nil, `assoc`}, watched)

	assert.Equal(t, -1, e.SetTimeout(time.Second))
	assert.Equal(t, []time.Duration{time.Second}, timeouts)
}

func TestEngine_Deliver(t *testing.T) {
	e := NewEngine()
	h := newHandle(t, e)
	require.NoError(t, e.Add(h))

	assert.Equal(t, 3, e.Deliver(h, []byte(`abc`)))

	var next int
	h.SetWriteFunc(func(data []byte) int { return next })

	next = muxbridge.WritePause
	assert.Equal(t, muxbridge.WritePause, e.Deliver(h, []byte(`abc`)))
	assert.True(t, h.Paused())
	require.NoError(t, h.Resume())
	assert.False(t, h.Paused())
	assert.Equal(t, 1, h.Resumed())

	next = 1
	assert.Equal(t, 1, e.Deliver(h, []byte(`abc`)))
	assert.True(t, h.Done())
	msg, ok := e.ReadMessage()
	require.True(t, ok)
	assert.Equal(t, ResultWriteError, msg.Result)

	assert.Panics(t, func() { e.Deliver(h, []byte(`abc`)) })
	assert.Panics(t, func() { e.Complete(h, 0) })
}

func TestHandle_Write(t *testing.T) {
	e := NewEngine()
	h := newHandle(t, e)
	assert.Equal(t, 3, h.Write([]byte(`abc`)))

	var calls int
	h.SetWriteFunc(func(data []byte) int {
		calls++
		return 0
	})
	require.NoError(t, e.Add(h))
	assert.Equal(t, 0, h.Write([]byte(`abc`)))
	assert.Equal(t, 0, h.Write([]byte(`abc`)))
	assert.Equal(t, 2, calls)
	assert.False(t, h.Done())
	assert.Equal(t, 0, e.Pending())
}

func TestOpener(t *testing.T) {
	o := &Opener{}
	s, err := o.Open(3)
	require.NoError(t, err)
	assert.Equal(t, muxbridge.SocketStream, s.Kind())
	assert.Equal(t, 3, s.FD())
	assert.Same(t, s, o.Last(3))
	assert.Nil(t, o.Last(4))

	s.(*Socket).Buffered = 9
	n, err := s.Available()
	require.NoError(t, err)
	assert.Equal(t, 9, n)

	require.NoError(t, s.Close())
	assert.True(t, s.(*Socket).Closed())
	_, err = s.Available()
	assert.ErrorIs(t, err, ErrSocketClosed)

	o.Kind = muxbridge.SocketDatagram
	o.OnOpen = func(fd int) error {
		if fd == 5 {
			return muxbridge.ErrUnsupportedSocket
		}
		return nil
	}
	s, err = o.Open(4)
	require.NoError(t, err)
	assert.Equal(t, muxbridge.SocketDatagram, s.Kind())
	_, err = o.Open(5)
	assert.ErrorIs(t, err, muxbridge.ErrUnsupportedSocket)
	assert.Len(t, o.Opened, 2)
}
