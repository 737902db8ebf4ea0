package muxbridge

import (
	"errors"
)

var (
	// ErrTerminated is returned by Bridge.Terminate if it was already called.
	ErrTerminated = errors.New(`muxbridge: bridge terminated`)

	// ErrUnsupportedSocket is returned by SocketOpener implementations for
	// descriptors that are not IPv4/IPv6 stream or datagram sockets.
	ErrUnsupportedSocket = errors.New(`muxbridge: unsupported socket`)

	// ErrTransferActive is returned by Transfer.Close while the engine still
	// holds the transfer.
	ErrTransferActive = errors.New(`muxbridge: transfer is active`)
)
