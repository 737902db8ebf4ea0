package muxbridge

import (
	"errors"
	"fmt"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/go-muxbridge/reactor"
	"github.com/joeycumines/logiface"
)

// Bridge drives an Engine using a Reactor. Instances must be initialized
// using the New factory.
//
// All methods must be called from the reactor goroutine, or before the
// reactor starts running.
type Bridge struct {
	// Prevent copying
	_ [0]func()

	reactor   Reactor
	engine    Engine
	opener    SocketOpener
	logger    *logiface.Logger[logiface.Event]
	failures  *catrate.Limiter
	sockets   map[int]*socketState
	transfers map[*Transfer]struct{}
	timer     timerScheduler
	guard     callGuard

	// running is the engine's last reported number of running transfers
	running    int
	terminated bool
}

// New initializes a new Bridge, taking ownership of engine, which will be
// closed by Terminate.
func New(r Reactor, engine Engine, opts ...Option) (*Bridge, error) {
	if r == nil {
		return nil, errors.New(`muxbridge: nil reactor`)
	}
	if engine == nil {
		return nil, errors.New(`muxbridge: nil engine`)
	}

	cfg, err := resolveBridgeOptions(opts)
	if err != nil {
		return nil, err
	}

	b := &Bridge{
		reactor:   r,
		engine:    engine,
		opener:    cfg.opener,
		logger:    cfg.logger,
		failures:  cfg.failures,
		sockets:   make(map[int]*socketState),
		transfers: make(map[*Transfer]struct{}),
	}

	engine.SetSocketFunc(b.socketFunc)
	engine.SetTimerFunc(b.timerFunc)

	return b, nil
}

// NewTransfer returns a new, idle, transfer, bound to this bridge.
func (b *Bridge) NewTransfer() *Transfer {
	t := &Transfer{logger: b.logger}
	if !b.terminated {
		t.bridge = b
	}
	return t
}

// Running returns the number of running transfers, as last reported by the
// engine.
func (b *Bridge) Running() int { return b.running }

// Terminated returns true if Terminate has been called.
func (b *Bridge) Terminated() bool { return b.terminated }

// ActiveTransfers returns the number of transfers held by the engine.
func (b *Bridge) ActiveTransfers() int { return len(b.transfers) }

// ActiveSockets returns the number of descriptors the engine has declared
// interest in.
func (b *Bridge) ActiveSockets() int { return len(b.sockets) }

// Terminate shuts down the bridge: the timeout is canceled, every socket is
// canceled and closed, every transfer is detached (without calling OnDone),
// and the engine is closed. If called from within a callback, closing the
// engine is deferred until the outermost callback returns.
//
// Returns ErrTerminated if already terminated.
func (b *Bridge) Terminate() error {
	if b.terminated {
		return ErrTerminated
	}
	b.terminated = true

	b.logger.Debug().
		Int(`sockets`, len(b.sockets)).
		Int(`transfers`, len(b.transfers)).
		Log(`terminating bridge`)

	b.timer.cancel()

	for fd, sock := range b.sockets {
		if err := sock.remove(); err != nil {
			b.logger.Warning().
				Err(err).
				Int(`fd`, fd).
				Log(`failed to close socket`)
		}
		delete(b.sockets, fd)
	}

	for t := range b.transfers {
		t.detach()
		delete(b.transfers, t)
	}

	b.guard.later(b.closeEngine)

	return nil
}

func (b *Bridge) closeEngine() {
	if err := b.engine.Close(); err != nil {
		b.logger.Warning().
			Err(err).
			Log(`failed to close engine`)
	}
}

// addTransfer registers t with the engine. The transfer joins the active
// set first, as the engine may complete it before Add returns.
func (b *Bridge) addTransfer(t *Transfer) bool {
	if b.terminated {
		return false
	}
	b.transfers[t] = struct{}{}
	if err := b.engine.Add(t.handle); err != nil {
		delete(b.transfers, t)
		b.logger.Warning().
			Err(err).
			Str(`url`, t.url).
			Log(`engine rejected transfer`)
		return false
	}
	return true
}

// removeTransfer unregisters t from the engine.
func (b *Bridge) removeTransfer(t *Transfer) bool {
	if err := b.engine.Remove(t.handle); err != nil {
		b.logger.Warning().
			Err(err).
			Str(`url`, t.url).
			Log(`engine failed to remove transfer`)
		return false
	}
	delete(b.transfers, t)
	return true
}

// socketFunc is the engine's socket callback.
func (b *Bridge) socketFunc(fd int, action Action, socketp any) int {
	if b.terminated {
		b.logger.Trace().
			Int(`fd`, fd).
			Stringer(`action`, action).
			Log(`socket callback after terminate`)
		return -1
	}

	defer b.guard.enter()()

	b.logger.Trace().
		Int(`fd`, fd).
		Stringer(`action`, action).
		Log(`socket callback`)

	sock, _ := socketp.(*socketState)
	if sock != nil && sock.removed {
		// stale association
		sock = nil
	}

	if action == ActionRemove {
		if sock == nil {
			sock = b.sockets[fd]
		}
		if sock == nil {
			return 0
		}
		if err := sock.remove(); err != nil {
			b.logger.Warning().
				Err(err).
				Int(`fd`, fd).
				Log(`failed to close socket`)
		}
		if b.sockets[fd] == sock {
			delete(b.sockets, fd)
		}
		if err := b.engine.Assign(fd, nil); err != nil {
			b.logger.Warning().
				Err(err).
				Int(`fd`, fd).
				Log(`failed to clear socket association`)
		}
		return 0
	}

	if sock == nil {
		var err error
		if sock, err = b.openSocket(fd); err != nil {
			b.logger.Err().
				Err(err).
				Int(`fd`, fd).
				Stringer(`action`, action).
				Log(`failed to set up socket`)
			return -1
		}
	}

	sock.setRequested(action)
	b.asyncWait(fd, action, sock)

	return 0
}

// openSocket opens, registers, and associates a new socket for fd.
func (b *Bridge) openSocket(fd int) (*socketState, error) {
	socket, err := b.opener.Open(fd)
	if err != nil {
		return nil, err
	}

	sock := &socketState{socket: socket}

	if err := b.engine.Assign(fd, sock); err != nil {
		_ = socket.Close()
		return nil, fmt.Errorf(`muxbridge: assign fd %d: %w`, fd, err)
	}

	if prev := b.sockets[fd]; prev != nil {
		// descriptor reused without a remove
		_ = prev.remove()
	}
	b.sockets[fd] = sock

	b.logger.Trace().
		Int(`fd`, fd).
		Stringer(`kind`, socket.Kind()).
		Int(`socket_fd`, socket.FD()).
		Log(`socket opened`)

	return sock, nil
}

// asyncWait arms the waits for action, reconciled against the most recently
// requested action, which takes precedence if it asks for both directions,
// or for something else entirely.
func (b *Bridge) asyncWait(fd int, action Action, sock *socketState) {
	if requested := sock.requested; requested == ActionInOut || (requested != action && requested != ActionNone) {
		sock.cancel()
		action = requested
	}

	if action&ActionIn != 0 {
		if err := sock.waitRead(b.reactor, func(err error) {
			b.asyncWaitComplete(err, fd, ActionIn, sock)
		}); err != nil {
			b.failure(`arm`, fd).
				Err(err).
				Int(`fd`, fd).
				Log(`failed to wait for read`)
		}
	}

	if action&ActionOut != 0 {
		if err := sock.waitWrite(b.reactor, func(err error) {
			b.asyncWaitComplete(err, fd, ActionOut, sock)
		}); err != nil {
			b.failure(`arm`, fd).
				Err(err).
				Int(`fd`, fd).
				Log(`failed to wait for write`)
		}
	}
}

// asyncWaitComplete handles a completed wait, driving the engine, and
// re-arming the wait while transfers remain running.
func (b *Bridge) asyncWaitComplete(err error, fd int, action Action, sock *socketState) {
	if errors.Is(err, reactor.ErrCanceled) {
		return
	}
	if b.terminated || sock.removed {
		return
	}

	defer b.guard.enter()()

	if err != nil {
		b.failure(`wait`, fd).
			Err(err).
			Int(`fd`, fd).
			Stringer(`action`, action).
			Log(`socket wait failed`)
		return
	}

	if e := b.logger.Trace(); e.Enabled() {
		if n, err := sock.socket.Available(); err == nil {
			e = e.Int(`available`, n)
		}
		e.Int(`fd`, fd).
			Stringer(`action`, action).
			Log(`socket ready`)
	}

	b.drive(fd, action)

	if b.terminated || sock.removed {
		return
	}

	if b.running > 0 {
		b.asyncWait(fd, action, sock)
	} else {
		sock.cancel()
	}
}

// drive calls Engine.Drive, then processes any completions. The caller must
// hold the guard.
func (b *Bridge) drive(fd int, action Action) {
	running, err := b.engine.Drive(fd, action)
	if err != nil {
		b.failure(`drive`, fd).
			Err(err).
			Int(`fd`, fd).
			Stringer(`action`, action).
			Log(`engine drive failed`)
	} else {
		b.running = running
	}
	b.processMessages()
}

// processMessages drains the engine's completion messages, removing and
// completing each transfer.
func (b *Bridge) processMessages() {
	for !b.terminated {
		msg, ok := b.engine.ReadMessage()
		if !ok {
			return
		}

		var t *Transfer
		if msg.Handle != nil {
			t, _ = msg.Handle.Private().(*Transfer)
		}
		if t == nil {
			panic(fmt.Sprintf(`muxbridge: completion for unknown transfer: %#v`, msg.Handle))
		}

		if _, ok := b.transfers[t]; ok {
			if !b.removeTransfer(t) {
				// drop it regardless, the engine has finished with it
				delete(b.transfers, t)
			}
		}

		t.handleDone(msg.Result)
	}
}

// failureCategory identifies a kind of repeated failure, for rate limiting.
type failureCategory struct {
	kind string
	fd   int
}

// failure returns a warning builder, or nil if failures of this kind, for
// fd, are being rate limited.
func (b *Bridge) failure(kind string, fd int) *logiface.Builder[logiface.Event] {
	if _, ok := b.failures.Allow(failureCategory{kind: kind, fd: fd}); !ok {
		return nil
	}
	return b.logger.Warning()
}
