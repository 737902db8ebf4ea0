package muxbridge

import (
	"time"

	"github.com/joeycumines/go-muxbridge/reactor"
)

// Reactor is the single-threaded event loop a Bridge schedules its waits on.
// It is implemented by *reactor.Loop.
//
// Operations are one-shot, and must never complete inline, i.e. the callback
// may only be called after WaitFD or AfterFunc has returned. Canceled
// operations must complete with an error matching reactor.ErrCanceled.
type Reactor interface {
	// WaitFD waits for fd to become ready, for any of events.
	WaitFD(fd int, events reactor.Events, fn func(err error)) (reactor.Op, error)

	// AfterFunc waits for d to elapse.
	AfterFunc(d time.Duration, fn func(err error)) (reactor.Op, error)
}

var _ Reactor = (*reactor.Loop)(nil)
