package muxbridge

import (
	"github.com/joeycumines/go-muxbridge/reactor"
)

// socketState tracks a single engine descriptor, and the reactor waits
// pending on its opened socket. At most one wait is pending per direction.
type socketState struct {
	socket Socket
	reads  reactor.Op
	writes reactor.Op

	// requested is the last action the engine declared for the descriptor
	requested Action
	removed   bool
}

// setRequested records action, canceling any pending waits, which will be
// re-armed by the caller, as necessary.
func (x *socketState) setRequested(action Action) {
	x.requested = action
	x.cancel()
}

// cancel cancels all pending waits. Their callbacks will observe
// reactor.ErrCanceled.
func (x *socketState) cancel() {
	if op := x.reads; op != nil {
		x.reads = nil
		op.Cancel()
	}
	if op := x.writes; op != nil {
		x.writes = nil
		op.Cancel()
	}
}

// waitRead arms a read wait, unless one is already pending.
func (x *socketState) waitRead(r Reactor, fn func(err error)) error {
	return x.wait(r, &x.reads, reactor.EventRead, fn)
}

// waitWrite arms a write wait, unless one is already pending.
func (x *socketState) waitWrite(r Reactor, fn func(err error)) error {
	return x.wait(r, &x.writes, reactor.EventWrite, fn)
}

func (x *socketState) wait(r Reactor, slot *reactor.Op, events reactor.Events, fn func(err error)) error {
	if *slot != nil {
		return nil
	}
	var op reactor.Op
	op, err := r.WaitFD(x.socket.FD(), events, func(err error) {
		// the reactor never completes inline, so op is always set here
		if *slot == op {
			*slot = nil
		}
		fn(err)
	})
	if err != nil {
		return err
	}
	*slot = op
	return nil
}

// remove cancels all pending waits and closes the socket.
func (x *socketState) remove() error {
	if x.removed {
		return nil
	}
	x.removed = true
	x.cancel()
	return x.socket.Close()
}
