package muxbridge

import (
	"fmt"
	"time"
)

type (
	// Engine is the multi-transfer engine driven by a Bridge. It manages the
	// protocol side of any number of concurrent transfers, but performs no
	// waiting of its own: it declares which descriptors it needs watched via
	// the SocketFunc, when it next needs a tick via the TimerFunc, and is
	// advanced via Drive.
	//
	// The Bridge takes ownership of the Engine passed to New, installing its
	// own callbacks, and will call Close during Bridge.Terminate.
	//
	// Implementations are only ever called from the reactor goroutine, and
	// must tolerate the SocketFunc and TimerFunc being re-entered from within
	// Add, Remove, and Drive.
	Engine interface {
		// NewHandle allocates a new per-transfer handle.
		NewHandle() (Handle, error)

		// Add registers a handle, making it eligible for progress.
		Add(h Handle) error

		// Remove unregisters a handle. It must be safe to call from within
		// any engine callback.
		Remove(h Handle) error

		// Drive advances the engine, given a ready descriptor and the
		// direction(s) it is ready for, or SocketTimeout (with ActionNone),
		// to perform any timeout-driven processing. It returns the number of
		// transfers still running.
		Drive(fd int, action Action) (running int, err error)

		// Assign sets the per-socket association slot for fd, which is
		// passed back as the socketp argument of the SocketFunc. A nil
		// value clears it.
		Assign(fd int, socketp any) error

		// ReadMessage pops the next completion message, if any.
		ReadMessage() (Message, bool)

		// SetSocketFunc installs the socket interest callback.
		SetSocketFunc(fn SocketFunc)

		// SetTimerFunc installs the timer callback.
		SetTimerFunc(fn TimerFunc)

		// Close releases the engine.
		Close() error
	}

	// Handle is the engine-side representation of a single transfer.
	Handle interface {
		// Reset returns all per-transfer options to their defaults,
		// including the write function and the private association.
		Reset()

		// SetURL sets the transfer target.
		SetURL(url string) error

		// SetWriteFunc installs the function receiving each chunk of data.
		SetWriteFunc(fn WriteFunc)

		// SetPrivate stores an opaque association, see also Private.
		SetPrivate(v any)

		// Private returns the value stored by SetPrivate.
		Private() any

		// Resume lifts a pause, requested by returning WritePause.
		Resume() error

		// Close releases the handle. It must not be registered.
		Close() error
	}

	// SocketFunc is the socket interest callback, called by the engine to
	// declare (or revoke) interest in a descriptor. The socketp value is
	// whatever was last stored for fd using Engine.Assign. A non-zero return
	// value indicates failure, and should be propagated by the engine, as an
	// error from the call that triggered it.
	SocketFunc func(fd int, action Action, socketp any) int

	// TimerFunc is the timer callback, called by the engine to request that
	// it be driven with SocketTimeout after the given duration. A timeout <= 0
	// requests that it be driven immediately.
	TimerFunc func(timeout time.Duration) int

	// WriteFunc receives each chunk of transfer data, returning the number
	// of bytes consumed, or WritePause. Any value other than len(data) or
	// WritePause aborts the transfer.
	WriteFunc func(data []byte) int

	// Message is a completion message, emitted by the engine once per
	// finished transfer.
	Message struct {
		Handle Handle
		Result Result
	}

	// Result is an engine-specific transfer result code, where ResultOK
	// indicates success.
	Result int

	// Action is a socket interest bitmask, as passed to the SocketFunc, and
	// as used to describe readiness in Drive.
	Action int

	// DataAction is the classification of a received chunk, returned by
	// Transfer.OnData.
	DataAction int
)

const (
	// ActionNone indicates no interest, or no specific readiness (timeouts).
	ActionNone Action = 0
	// ActionIn requests (or indicates) read readiness.
	ActionIn Action = 1
	// ActionOut requests (or indicates) write readiness.
	ActionOut Action = 2
	// ActionInOut requests both read and write readiness.
	ActionInOut = ActionIn | ActionOut
	// ActionRemove revokes all interest in the descriptor.
	ActionRemove Action = 4
)

const (
	// SocketTimeout is the descriptor value passed to Engine.Drive, to
	// perform timeout-driven processing.
	SocketTimeout = -1

	// WritePause may be returned by a WriteFunc, to pause delivery for the
	// transfer. It is distinct from any chunk length, and from zero, which
	// indicates failure.
	WritePause = 0x10000001

	// ResultOK is the Result of a successful transfer.
	ResultOK Result = 0
)

const (
	// DataAccept consumes the chunk.
	DataAccept DataAction = iota
	// DataPause pauses delivery, until Transfer.Resume.
	DataPause
	// DataAbort fails the transfer.
	DataAbort
)

func (x Action) String() string {
	switch x {
	case ActionNone:
		return `none`
	case ActionIn:
		return `in`
	case ActionOut:
		return `out`
	case ActionInOut:
		return `inout`
	case ActionRemove:
		return `remove`
	default:
		return fmt.Sprintf(`Action(%d)`, int(x))
	}
}

func (x DataAction) String() string {
	switch x {
	case DataAccept:
		return `accept`
	case DataPause:
		return `pause`
	case DataAbort:
		return `abort`
	default:
		return fmt.Sprintf(`DataAction(%d)`, int(x))
	}
}
