package muxbridge

import (
	"golang.org/x/sys/unix"
)

// fionread is _IOR('f', 127, int), from sys/filio.h.
const fionread = 0x4004667f

func bytesReadable(fd int) (int, error) {
	return unix.IoctlGetInt(fd, fionread)
}
