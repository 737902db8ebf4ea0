package reactor

import (
	"strings"
)

// Events represents the type of I/O events to wait for, or that occurred.
type Events uint32

const (
	// EventRead indicates the file descriptor is ready for reading.
	EventRead Events = 1 << iota
	// EventWrite indicates the file descriptor is ready for writing.
	EventWrite
	// EventError indicates an error condition on the file descriptor.
	EventError
	// EventHangup indicates the peer closed its end of the connection.
	EventHangup
)

func (x Events) String() string {
	if x == 0 {
		return `none`
	}
	var parts []string
	if x&EventRead != 0 {
		parts = append(parts, `read`)
	}
	if x&EventWrite != 0 {
		parts = append(parts, `write`)
	}
	if x&EventError != 0 {
		parts = append(parts, `error`)
	}
	if x&EventHangup != 0 {
		parts = append(parts, `hangup`)
	}
	return strings.Join(parts, `|`)
}

// ready resolves the wait directions satisfied by x. Error and hangup
// conditions satisfy both directions, so the waiter observes the condition
// through its own I/O.
func (x Events) ready() Events {
	if x&(EventError|EventHangup) != 0 {
		return EventRead | EventWrite
	}
	return x & (EventRead | EventWrite)
}
