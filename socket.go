package muxbridge

import (
	"fmt"
)

type (
	// SocketOpener probes and duplicates engine descriptors, producing the
	// Socket a Bridge subscribes to. The Socket must own an independent
	// descriptor, since the engine may close its own at any time after
	// ActionRemove.
	SocketOpener interface {
		Open(fd int) (Socket, error)
	}

	// SocketOpenerFunc adapts a function to SocketOpener.
	SocketOpenerFunc func(fd int) (Socket, error)

	// Socket is an opened socket, either a *StreamSocket or a
	// *DatagramSocket, for SystemOpener.
	Socket interface {
		// Kind identifies the variant.
		Kind() SocketKind

		// FD is the duplicated descriptor, watched by the reactor.
		FD() int

		// Available returns the number of bytes that may be read without
		// blocking.
		Available() (int, error)

		// Close releases the duplicated descriptor.
		Close() error
	}

	// SocketKind is the socket variant tag.
	SocketKind int
)

const (
	SocketStream SocketKind = iota + 1
	SocketDatagram
)

func (x SocketOpenerFunc) Open(fd int) (Socket, error) { return x(fd) }

func (x SocketKind) String() string {
	switch x {
	case SocketStream:
		return `stream`
	case SocketDatagram:
		return `datagram`
	default:
		return fmt.Sprintf(`SocketKind(%d)`, int(x))
	}
}
