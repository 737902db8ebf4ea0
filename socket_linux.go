package muxbridge

import (
	"golang.org/x/sys/unix"
)

// bytesReadable is FIONREAD, spelled SIOCINQ for sockets.
func bytesReadable(fd int) (int, error) {
	return unix.IoctlGetInt(fd, unix.SIOCINQ)
}
