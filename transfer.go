package muxbridge

import (
	"fmt"

	"github.com/joeycumines/logiface"
)

// Transfer is a single transfer, run by a Bridge. Instances must be
// initialized using Bridge.NewTransfer, and may be started again once
// complete.
//
// All methods must be called from the reactor goroutine.
type Transfer struct {
	// OnData receives each chunk of data, returning how it was handled. A
	// nil OnData accepts everything.
	OnData func(data []byte) DataAction

	// OnDone is called exactly once per accepted Start, unless the transfer
	// is stopped (outside of its own callbacks), or the bridge terminated.
	OnDone func(result Result)

	bridge *Bridge
	logger *logiface.Logger[logiface.Event]
	handle Handle
	url    string
	guard  callGuard

	// running is cleared by Stop, or once OnDone has been called
	running bool
	// pending is set while the engine holds the transfer, and is obligated
	// to complete it
	pending bool
}

// Start starts the transfer, returning false if it is already running, the
// bridge terminated, the engine rejected it, or it was called from within
// one of this transfer's own callbacks.
//
// If OnDone is called before Start returns, Start still returns true.
func (t *Transfer) Start(url string) bool {
	b := t.bridge
	if t.running || b == nil || b.terminated || t.guard.active() {
		return false
	}

	if t.pending {
		// stopped from within a callback, and never completed by the engine
		if !b.removeTransfer(t) {
			return false
		}
		t.pending = false
	}

	if err := t.init(url); err != nil {
		t.logger.Warning().
			Err(err).
			Str(`url`, url).
			Log(`failed to initialize transfer`)
		return false
	}

	t.running = true
	t.pending = true
	if !b.addTransfer(t) {
		t.running = false
		t.pending = false
		return false
	}

	return true
}

// Stop stops the transfer, returning false if it was not running, or the
// engine refused to remove it.
//
// A transfer stopped from within its own callback is only marked stopped:
// it receives no further data, but remains with the engine, which will
// complete it (typically as a write failure), calling OnDone once.
// Otherwise, the transfer is removed immediately, and OnDone is not called.
func (t *Transfer) Stop() bool {
	b := t.bridge
	if !t.running || b == nil {
		return false
	}

	if t.guard.active() {
		t.running = false
		return true
	}

	if !b.removeTransfer(t) {
		return false
	}

	t.running = false
	t.pending = false
	return true
}

// Running returns true between an accepted Start and either Stop or OnDone.
func (t *Transfer) Running() bool { return t.running }

// URL returns the url passed to the last successful Start.
func (t *Transfer) URL() string { return t.url }

// Resume lifts a pause, requested by OnData returning DataPause.
func (t *Transfer) Resume() bool {
	if !t.running || t.bridge == nil || t.guard.active() {
		return false
	}
	if err := t.handle.Resume(); err != nil {
		t.logger.Warning().
			Err(err).
			Str(`url`, t.url).
			Log(`failed to resume transfer`)
		return false
	}
	return true
}

// Close releases the engine handle. It fails with ErrTransferActive while
// the engine holds the transfer.
func (t *Transfer) Close() error {
	if t.pending {
		return ErrTransferActive
	}
	if t.handle == nil {
		return nil
	}
	h := t.handle
	t.handle = nil
	return h.Close()
}

// init prepares the engine handle, allocating it on first use.
func (t *Transfer) init(url string) error {
	if t.handle != nil {
		t.handle.Reset()
	} else {
		h, err := t.bridge.engine.NewHandle()
		if err != nil {
			return fmt.Errorf(`muxbridge: new handle: %w`, err)
		}
		t.handle = h
	}
	t.handle.SetPrivate(t)
	t.handle.SetWriteFunc(t.write)
	if err := t.handle.SetURL(url); err != nil {
		return fmt.Errorf(`muxbridge: set url: %w`, err)
	}
	t.url = url
	return nil
}

// write is the engine's WriteFunc.
func (t *Transfer) write(data []byte) int {
	if !t.running {
		return 0
	}
	if t.OnData == nil {
		return len(data)
	}

	action := t.deliver(data)

	if !t.running {
		return 0
	}

	switch action {
	case DataAccept:
		return len(data)
	case DataPause:
		return WritePause
	default:
		return 0
	}
}

func (t *Transfer) deliver(data []byte) DataAction {
	defer t.guard.enter()()
	return t.OnData(data)
}

// handleDone dispatches the engine's completion, at most once per Start.
func (t *Transfer) handleDone(result Result) {
	if !t.pending {
		t.logger.Warning().
			Int(`result`, int(result)).
			Str(`url`, t.url).
			Log(`ignoring completion for inactive transfer`)
		return
	}
	t.pending = false

	t.logger.Trace().
		Int(`result`, int(result)).
		Str(`url`, t.url).
		Log(`transfer done`)

	if t.OnDone != nil {
		func() {
			defer t.guard.enter()()
			t.OnDone(result)
		}()
	}

	t.running = false
}

// detach severs the transfer from its bridge, on terminate.
func (t *Transfer) detach() {
	t.bridge = nil
	t.running = false
	t.pending = false
}
