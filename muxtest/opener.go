package muxtest

import (
	"errors"

	"github.com/joeycumines/go-muxbridge"
)

var ErrSocketClosed = errors.New(`muxtest: socket closed`)

type (
	// Opener is a muxbridge.SocketOpener returning fake sockets, whose FD is
	// the engine descriptor, for use with Reactor.
	Opener struct {
		// OnOpen, if set, may reject a descriptor.
		OnOpen func(fd int) error

		// Kind is the kind of socket to open, defaulting to a stream.
		Kind muxbridge.SocketKind

		// Opened records every socket opened, in order.
		Opened []*Socket
	}

	// Socket is a fake muxbridge.Socket.
	Socket struct {
		// Buffered is reported by Available.
		Buffered int

		kind   muxbridge.SocketKind
		fd     int
		closes int
	}
)

var (
	_ muxbridge.SocketOpener = (*Opener)(nil)
	_ muxbridge.Socket       = (*Socket)(nil)
)

func (o *Opener) Open(fd int) (muxbridge.Socket, error) {
	if o.OnOpen != nil {
		if err := o.OnOpen(fd); err != nil {
			return nil, err
		}
	}
	kind := o.Kind
	if kind == 0 {
		kind = muxbridge.SocketStream
	}
	s := &Socket{kind: kind, fd: fd}
	o.Opened = append(o.Opened, s)
	return s, nil
}

// Last returns the most recently opened socket for fd, or nil.
func (o *Opener) Last(fd int) *Socket {
	for i := len(o.Opened) - 1; i >= 0; i-- {
		if o.Opened[i].fd == fd {
			return o.Opened[i]
		}
	}
	return nil
}

func (s *Socket) Kind() muxbridge.SocketKind { return s.kind }

func (s *Socket) FD() int { return s.fd }

func (s *Socket) Available() (int, error) {
	if s.closes != 0 {
		return 0, ErrSocketClosed
	}
	return s.Buffered, nil
}

func (s *Socket) Close() error {
	s.closes++
	return nil
}

// Closed returns true once Close has been called.
func (s *Socket) Closed() bool { return s.closes != 0 }

// Closes returns the number of calls to Close.
func (s *Socket) Closes() int { return s.closes }
