package muxtest

import (
	"errors"
	"fmt"
	"time"

	"github.com/eapache/queue"
	"github.com/joeycumines/go-muxbridge"
)

// ResultWriteError is the Result the Engine completes a transfer with, when
// its write function refuses a chunk.
const ResultWriteError muxbridge.Result = 23

var (
	ErrEngineClosed = errors.New(`muxtest: engine closed`)
	ErrNotAdded     = errors.New(`muxtest: handle not added`)
	ErrAlreadyAdded = errors.New(`muxtest: handle already added`)
	ErrHandleAdded  = errors.New(`muxtest: handle still added`)
	ErrEmptyURL     = errors.New(`muxtest: empty url`)
	ErrHandleClosed = errors.New(`muxtest: handle closed`)
)

type (
	// Engine is a scriptable muxbridge.Engine. It performs no I/O: tests
	// script its behavior using the hooks, and call back into the bridge
	// using Watch, SetTimeout, Deliver, and Complete.
	Engine struct {
		// Drives records every call to Drive, in order.
		Drives []Drive

		// OnAdd is called from Add, after the handle is registered. An error
		// rejects the handle.
		OnAdd func(h *Handle) error

		// OnRemove is called from Remove, after the handle is unregistered.
		OnRemove func(h *Handle)

		// OnDrive is called from Drive, for socket readiness.
		OnDrive func(fd int, action muxbridge.Action) error

		// OnTimeout is called from Drive, for SocketTimeout.
		OnTimeout func() error

		socketFunc muxbridge.SocketFunc
		timerFunc  muxbridge.TimerFunc
		assigned   map[int]any
		added      map[*Handle]struct{}
		messages   *queue.Queue
		closed     bool
	}

	// Drive records a call to Engine.Drive.
	Drive struct {
		FD     int
		Action muxbridge.Action
	}

	// Handle is the Engine's muxbridge.Handle.
	Handle struct {
		engine  *Engine
		write   muxbridge.WriteFunc
		private any
		url     string
		resumed int
		paused  bool
		added   bool
		done    bool
		closed  bool
	}
)

var (
	_ muxbridge.Engine = (*Engine)(nil)
	_ muxbridge.Handle = (*Handle)(nil)
)

// NewEngine returns a new, empty, Engine.
func NewEngine() *Engine {
	return &Engine{
		assigned: make(map[int]any),
		added:    make(map[*Handle]struct{}),
		messages: queue.New(),
	}
}

func (e *Engine) NewHandle() (muxbridge.Handle, error) {
	if e.closed {
		return nil, ErrEngineClosed
	}
	return &Handle{engine: e}, nil
}

func (e *Engine) Add(h muxbridge.Handle) error {
	if e.closed {
		return ErrEngineClosed
	}
	v, err := e.handle(h)
	if err != nil {
		return err
	}
	if v.added {
		return ErrAlreadyAdded
	}
	v.added = true
	v.done = false
	v.paused = false
	e.added[v] = struct{}{}
	if e.OnAdd != nil {
		if err := e.OnAdd(v); err != nil {
			v.added = false
			delete(e.added, v)
			e.dropMessages(v)
			return err
		}
	}
	return nil
}

func (e *Engine) Remove(h muxbridge.Handle) error {
	v, err := e.handle(h)
	if err != nil {
		return err
	}
	if !v.added {
		return ErrNotAdded
	}
	v.added = false
	delete(e.added, v)
	e.dropMessages(v)
	if e.OnRemove != nil {
		e.OnRemove(v)
	}
	return nil
}

func (e *Engine) Drive(fd int, action muxbridge.Action) (int, error) {
	if e.closed {
		return 0, ErrEngineClosed
	}
	e.Drives = append(e.Drives, Drive{FD: fd, Action: action})
	var err error
	if fd == muxbridge.SocketTimeout {
		if e.OnTimeout != nil {
			err = e.OnTimeout()
		}
	} else if e.OnDrive != nil {
		err = e.OnDrive(fd, action)
	}
	return e.Running(), err
}

func (e *Engine) Assign(fd int, socketp any) error {
	if fd < 0 {
		return fmt.Errorf(`muxtest: assign invalid fd %d`, fd)
	}
	if socketp == nil {
		delete(e.assigned, fd)
	} else {
		e.assigned[fd] = socketp
	}
	return nil
}

func (e *Engine) ReadMessage() (muxbridge.Message, bool) {
	if e.messages.Length() == 0 {
		return muxbridge.Message{}, false
	}
	return e.messages.Remove().(muxbridge.Message), true
}

func (e *Engine) SetSocketFunc(fn muxbridge.SocketFunc) { e.socketFunc = fn }

func (e *Engine) SetTimerFunc(fn muxbridge.TimerFunc) { e.timerFunc = fn }

func (e *Engine) Close() error {
	if e.closed {
		return ErrEngineClosed
	}
	e.closed = true
	return nil
}

// Closed returns true once Close has been called.
func (e *Engine) Closed() bool { return e.closed }

// Running returns the number of added, but not yet completed, handles.
func (e *Engine) Running() (n int) {
	for h := range e.added {
		if !h.done {
			n++
		}
	}
	return
}

// Handles returns the number of added handles, including completed ones.
func (e *Engine) Handles() int { return len(e.added) }

// Pending returns the number of unread completion messages.
func (e *Engine) Pending() int { return e.messages.Length() }

// Assigned returns the association stored for fd.
func (e *Engine) Assigned(fd int) any { return e.assigned[fd] }

// Watch calls the socket callback, as the engine would to declare interest
// in fd, returning its result.
func (e *Engine) Watch(fd int, action muxbridge.Action) int {
	if e.socketFunc == nil {
		panic(`muxtest: no socket func`)
	}
	return e.socketFunc(fd, action, e.assigned[fd])
}

// SetTimeout calls the timer callback, returning its result.
func (e *Engine) SetTimeout(timeout time.Duration) int {
	if e.timerFunc == nil {
		panic(`muxtest: no timer func`)
	}
	return e.timerFunc(timeout)
}

// Deliver passes data to h's write function, returning its result. A
// refused chunk completes the transfer with ResultWriteError, and
// WritePause pauses it.
func (e *Engine) Deliver(h *Handle, data []byte) int {
	if !h.added || h.done {
		panic(`muxtest: deliver to inactive handle`)
	}
	if h.write == nil {
		return len(data)
	}
	n := h.write(data)
	switch n {
	case len(data):
	case muxbridge.WritePause:
		h.paused = true
	default:
		e.Complete(h, ResultWriteError)
	}
	return n
}

// Write calls h's write function directly, without the side effects of
// Deliver, emulating an engine still flushing buffered data.
func (h *Handle) Write(data []byte) int {
	if h.write == nil {
		return len(data)
	}
	return h.write(data)
}

// Complete marks h done, queueing its completion message.
func (e *Engine) Complete(h *Handle, result muxbridge.Result) {
	if !h.added || h.done {
		panic(`muxtest: complete inactive handle`)
	}
	h.done = true
	e.messages.Add(muxbridge.Message{Handle: h, Result: result})
}

// Inject queues an arbitrary completion message.
func (e *Engine) Inject(msg muxbridge.Message) {
	e.messages.Add(msg)
}

func (e *Engine) handle(h muxbridge.Handle) (*Handle, error) {
	v, ok := h.(*Handle)
	if !ok || v == nil || v.engine != e {
		return nil, fmt.Errorf(`muxtest: foreign handle %T`, h)
	}
	if v.closed {
		return nil, ErrHandleClosed
	}
	return v, nil
}

// dropMessages discards queued completions for h, as removing a handle
// does.
func (e *Engine) dropMessages(h *Handle) {
	for n := e.messages.Length(); n > 0; n-- {
		msg := e.messages.Remove().(muxbridge.Message)
		if msg.Handle != muxbridge.Handle(h) {
			e.messages.Add(msg)
		}
	}
}

func (h *Handle) Reset() {
	h.write = nil
	h.private = nil
	h.url = ``
	h.paused = false
}

func (h *Handle) SetURL(url string) error {
	if url == `` {
		return ErrEmptyURL
	}
	h.url = url
	return nil
}

func (h *Handle) SetWriteFunc(fn muxbridge.WriteFunc) { h.write = fn }

func (h *Handle) SetPrivate(v any) { h.private = v }

func (h *Handle) Private() any { return h.private }

func (h *Handle) Resume() error {
	if !h.added {
		return ErrNotAdded
	}
	h.paused = false
	h.resumed++
	return nil
}

func (h *Handle) Close() error {
	if h.added {
		return ErrHandleAdded
	}
	h.closed = true
	return nil
}

// URL returns the url set on the handle.
func (h *Handle) URL() string { return h.url }

// Added returns true while the handle is registered with the engine.
func (h *Handle) Added() bool { return h.added }

// Done returns true once the handle has been completed.
func (h *Handle) Done() bool { return h.done }

// Paused returns true if the last chunk was paused, and not yet resumed.
func (h *Handle) Paused() bool { return h.paused }

// Resumed returns the number of calls to Resume.
func (h *Handle) Resumed() int { return h.resumed }

// Closed returns true once Close has succeeded.
func (h *Handle) Closed() bool { return h.closed }
