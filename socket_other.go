//go:build !linux && !darwin

package muxbridge

import (
	"fmt"
)

// SystemOpener is unsupported on this platform.
type SystemOpener struct{}

func (SystemOpener) Open(fd int) (Socket, error) {
	return nil, fmt.Errorf(`%w: fd %d: platform not supported`, ErrUnsupportedSocket, fd)
}
