//go:build linux || darwin

package muxbridge_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/joeycumines/go-muxbridge"
	"github.com/joeycumines/go-muxbridge/muxtest"
	"github.com/joeycumines/go-muxbridge/reactor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// TestBridge_loopback runs a transfer over a real loopback TCP connection,
// with the engine reading from the descriptor whenever the reactor reports
// it readable, and completing at EOF.
func TestBridge_loopback(t *testing.T) {
	client, server := tcpPair(t)
	fd := rawFD(t, client)

	var logs bytes.Buffer
	loop, err := reactor.New(reactor.WithLogger(testLogger(&logs)))
	require.NoError(t, err)
	defer loop.Close()

	engine := muxtest.NewEngine()
	bridge, err := muxbridge.New(loop, engine, muxbridge.WithLogger(testLogger(&logs)))
	require.NoError(t, err)

	var handle *muxtest.Handle
	engine.OnAdd = func(h *muxtest.Handle) error {
		handle = h
		if rc := engine.Watch(fd, muxbridge.ActionIn); rc != 0 {
			return errors.New(`watch failed`)
		}
		return nil
	}
	engine.OnDrive = func(fd int, action muxbridge.Action) error {
		buf := make([]byte, 64)
		for {
			n, err := unix.Read(fd, buf)
			switch {
			case errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR):
				return nil
			case err != nil:
				return err
			case n == 0:
				engine.Complete(handle, muxbridge.ResultOK)
				return nil
			}
			engine.Deliver(handle, buf[:n])
			if handle.Done() {
				return nil
			}
		}
	}

	var (
		received bytes.Buffer
		results  []muxbridge.Result
	)
	done := make(chan struct{})

	require.NoError(t, loop.Submit(func() {
		tr := bridge.NewTransfer()
		tr.OnData = func(data []byte) muxbridge.DataAction {
			received.Write(data)
			return muxbridge.DataAccept
		}
		tr.OnDone = func(result muxbridge.Result) {
			results = append(results, result)
			assert.NoError(t, bridge.Terminate())
			close(done)
		}
		assert.True(t, tr.Start(`tcp://`+server.LocalAddr().String()))
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- loop.Run(ctx) }()

	for _, chunk := range []string{`hello `, `from `, `the other side`} {
		_, err := server.Write([]byte(chunk))
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}
	require.NoError(t, server.CloseWrite())

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal(`timed out waiting for completion`)
	}

	require.NoError(t, loop.Shutdown(ctx))
	require.NoError(t, <-runErr)

	assert.Equal(t, `hello from the other side`, received.String())
	assert.Equal(t, []muxbridge.Result{muxbridge.ResultOK}, results)
	assert.True(t, engine.Closed())
	assert.Contains(t, logs.String(), `reactor descriptor ready`)
}
