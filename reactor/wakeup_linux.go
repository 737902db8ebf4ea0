//go:build linux

package reactor

import (
	"golang.org/x/sys/unix"
)

// createWakeFd creates an eventfd for wake-up notifications.
// Returns the single eventfd as both read and write ends.
func createWakeFd() (int, int, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	return fd, fd, err
}

func signalFD(fd int) error {
	var buf [8]byte
	buf[0] = 1 // little endian 1, eventfd only requires a non-zero value
	_, err := unix.Write(fd, buf[:])
	if err == unix.EAGAIN {
		// counter saturated, already signaled
		return nil
	}
	return err
}
