//go:build linux || darwin

package reactor

import (
	"golang.org/x/sys/unix"
)

func closeFD(fd int) error {
	return unix.Close(fd)
}

// drainFD reads the wake-up descriptor until it would block.
func drainFD(fd int) {
	var buf [64]byte
	for {
		if n, err := unix.Read(fd, buf[:]); err != nil || n <= 0 {
			return
		}
	}
}
