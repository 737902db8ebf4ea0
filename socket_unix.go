//go:build linux || darwin

package muxbridge

import (
	"fmt"

	"golang.org/x/sys/unix"
)

type (
	// SystemOpener opens IPv4/IPv6 stream and datagram sockets, by
	// duplicating the engine's descriptor.
	SystemOpener struct{}

	// StreamSocket is a connected TCP socket.
	StreamSocket struct{ socketFD }

	// DatagramSocket is a UDP socket.
	DatagramSocket struct{ socketFD }

	socketFD struct {
		fd int
	}
)

var (
	_ SocketOpener = SystemOpener{}
	_ Socket       = (*StreamSocket)(nil)
	_ Socket       = (*DatagramSocket)(nil)
)

// Open probes fd's type and address family, returning a non-blocking
// duplicate, wrapped as the matching variant.
func (SystemOpener) Open(fd int) (Socket, error) {
	typ, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_TYPE)
	if err != nil {
		return nil, fmt.Errorf(`muxbridge: getsockopt SO_TYPE fd %d: %w`, fd, err)
	}
	var kind SocketKind
	switch typ {
	case unix.SOCK_STREAM:
		kind = SocketStream
	case unix.SOCK_DGRAM:
		kind = SocketDatagram
	default:
		return nil, fmt.Errorf(`%w: fd %d has socket type %d`, ErrUnsupportedSocket, fd, typ)
	}

	sa, err := unix.Getsockname(fd)
	if err != nil {
		return nil, fmt.Errorf(`muxbridge: getsockname fd %d: %w`, fd, err)
	}
	switch sa.(type) {
	case *unix.SockaddrInet4, *unix.SockaddrInet6:
	default:
		return nil, fmt.Errorf(`%w: fd %d has address %T`, ErrUnsupportedSocket, fd, sa)
	}

	dup, err := unix.Dup(fd)
	if err != nil {
		return nil, fmt.Errorf(`muxbridge: dup fd %d: %w`, fd, err)
	}
	unix.CloseOnExec(dup)
	if err := unix.SetNonblock(dup, true); err != nil {
		_ = unix.Close(dup)
		return nil, fmt.Errorf(`muxbridge: set non-blocking fd %d: %w`, dup, err)
	}

	if kind == SocketStream {
		return &StreamSocket{socketFD{fd: dup}}, nil
	}
	return &DatagramSocket{socketFD{fd: dup}}, nil
}

func (*StreamSocket) Kind() SocketKind { return SocketStream }

// Available returns the number of unread bytes buffered for the stream.
func (x *StreamSocket) Available() (int, error) { return x.available() }

func (*DatagramSocket) Kind() SocketKind { return SocketDatagram }

// Available returns the number of unread bytes buffered for the socket. On
// linux this is the size of the next datagram only.
func (x *DatagramSocket) Available() (int, error) { return x.available() }

func (x *socketFD) FD() int { return x.fd }

func (x *socketFD) available() (int, error) {
	if x.fd < 0 {
		return 0, unix.EBADF
	}
	return bytesReadable(x.fd)
}

// Close closes the duplicated descriptor. Subsequent calls are no-ops.
func (x *socketFD) Close() error {
	if x.fd < 0 {
		return nil
	}
	fd := x.fd
	x.fd = -1
	return unix.Close(fd)
}
