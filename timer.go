package muxbridge

import (
	"errors"
	"time"

	"github.com/joeycumines/go-muxbridge/reactor"
)

// timerScheduler holds the engine's single outstanding timeout.
type timerScheduler struct {
	op reactor.Op
}

// cancel cancels the outstanding timeout, if any.
func (x *timerScheduler) cancel() {
	if op := x.op; op != nil {
		x.op = nil
		op.Cancel()
	}
}

// timerFunc is the engine's timer callback. Any outstanding timeout is
// replaced. A non-positive timeout drives the engine immediately.
func (b *Bridge) timerFunc(timeout time.Duration) int {
	if b.terminated {
		b.logger.Trace().
			Dur(`timeout`, timeout).
			Log(`timer callback after terminate`)
		return -1
	}

	b.timer.cancel()

	b.logger.Trace().
		Dur(`timeout`, timeout).
		Log(`timer requested`)

	if timeout <= 0 {
		b.timerHandler(nil)
		return 0
	}

	var op reactor.Op
	op, err := b.reactor.AfterFunc(timeout, func(err error) {
		if b.timer.op == op {
			b.timer.op = nil
		}
		b.timerHandler(err)
	})
	if err != nil {
		b.logger.Err().
			Err(err).
			Dur(`timeout`, timeout).
			Log(`failed to arm timer`)
		return -1
	}
	b.timer.op = op
	return 0
}

// timerHandler drives the engine's timeout processing.
func (b *Bridge) timerHandler(err error) {
	if errors.Is(err, reactor.ErrCanceled) || b.terminated {
		return
	}
	if err != nil {
		b.failure(`timer`, SocketTimeout).
			Err(err).
			Log(`timer failed`)
		return
	}

	defer b.guard.enter()()

	b.logger.Trace().Log(`timer fired`)

	b.drive(SocketTimeout, ActionNone)
}
