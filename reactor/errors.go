package reactor

import (
	"errors"
)

var (
	// ErrCanceled is the error passed to the callback of a canceled Op.
	ErrCanceled = errors.New("reactor: operation canceled")

	// ErrLoopAlreadyRunning is returned when Run is called on a loop that is already running.
	ErrLoopAlreadyRunning = errors.New("reactor: loop is already running")

	// ErrLoopTerminated is returned when operations are attempted on a terminated loop.
	ErrLoopTerminated = errors.New("reactor: loop has been terminated")

	// ErrReentrantRun is returned when Run is called from within the loop itself.
	ErrReentrantRun = errors.New("reactor: cannot call Run from within the loop")

	// ErrNotLoopGoroutine is returned when a loop-affine method is called
	// from a foreign goroutine, while the loop is running.
	ErrNotLoopGoroutine = errors.New("reactor: must be called from the loop goroutine")

	// ErrInvalidEvents is returned by WaitFD if no read or write interest was requested.
	ErrInvalidEvents = errors.New("reactor: no read or write events requested")

	// ErrFDOutOfRange is returned by WaitFD for negative descriptors.
	ErrFDOutOfRange = errors.New("reactor: fd out of range")

	// ErrUnsupportedPlatform is returned by New on platforms without a poller.
	ErrUnsupportedPlatform = errors.New("reactor: unsupported platform")
)
