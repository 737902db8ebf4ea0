//go:build darwin

package reactor

import (
	"golang.org/x/sys/unix"
)

// poller manages descriptor interest using kqueue. Filters are
// level-triggered (no EV_CLEAR).
type poller struct {
	kq       int
	eventBuf [256]unix.Kevent_t
}

func (p *poller) init() error {
	kq, err := unix.Kqueue()
	if err != nil {
		return err
	}
	unix.CloseOnExec(kq)
	p.kq = kq
	return nil
}

func (p *poller) close() error {
	if p.kq > 0 {
		fd := p.kq
		p.kq = -1
		return unix.Close(fd)
	}
	return nil
}

func (p *poller) add(fd int, events Events) error {
	kevents := eventsToKevents(fd, events, unix.EV_ADD|unix.EV_ENABLE)
	if len(kevents) == 0 {
		return nil
	}
	_, err := unix.Kevent(p.kq, kevents, nil, nil)
	return err
}

func (p *poller) modify(fd int, old Events, events Events) error {
	if del := eventsToKevents(fd, old&^events, unix.EV_DELETE); len(del) > 0 {
		_, _ = unix.Kevent(p.kq, del, nil, nil)
	}
	return p.add(fd, events&^old)
}

func (p *poller) remove(fd int, old Events) error {
	if del := eventsToKevents(fd, old, unix.EV_DELETE); len(del) > 0 {
		// errors are expected if the descriptor was already closed
		_, _ = unix.Kevent(p.kq, del, nil, nil)
	}
	return nil
}

// wait blocks for up to timeoutMs (forever if negative), calling dispatch
// for each ready filter.
func (p *poller) wait(timeoutMs int, dispatch func(fd int, events Events)) (int, error) {
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		ts = &unix.Timespec{
			Sec:  int64(timeoutMs / 1000),
			Nsec: int64((timeoutMs % 1000) * 1000000),
		}
	}
	n, err := unix.Kevent(p.kq, nil, p.eventBuf[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	for i := 0; i < n; i++ {
		dispatch(int(p.eventBuf[i].Ident), keventToEvents(&p.eventBuf[i]))
	}
	return n, nil
}

// eventsToKevents converts Events to kqueue kevent structures.
func eventsToKevents(fd int, events Events, flags uint16) []unix.Kevent_t {
	var kevents []unix.Kevent_t
	if events&EventRead != 0 {
		kevents = append(kevents, unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: unix.EVFILT_READ,
			Flags:  flags,
		})
	}
	if events&EventWrite != 0 {
		kevents = append(kevents, unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: unix.EVFILT_WRITE,
			Flags:  flags,
		})
	}
	return kevents
}

// keventToEvents converts a kqueue event to Events.
func keventToEvents(kev *unix.Kevent_t) Events {
	var events Events
	switch kev.Filter {
	case unix.EVFILT_READ:
		events |= EventRead
	case unix.EVFILT_WRITE:
		events |= EventWrite
	}
	if kev.Flags&unix.EV_ERROR != 0 {
		events |= EventError
	}
	if kev.Flags&unix.EV_EOF != 0 {
		events |= EventHangup
	}
	return events
}
