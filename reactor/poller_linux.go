//go:build linux

package reactor

import (
	"errors"

	"golang.org/x/sys/unix"
)

// poller manages descriptor interest using epoll. Registrations are
// level-triggered.
type poller struct {
	epfd     int
	eventBuf [256]unix.EpollEvent
}

func (p *poller) init() error {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return err
	}
	p.epfd = epfd
	return nil
}

func (p *poller) close() error {
	if p.epfd > 0 {
		fd := p.epfd
		p.epfd = -1
		return unix.Close(fd)
	}
	return nil
}

func (p *poller) add(fd int, events Events) error {
	ev := unix.EpollEvent{
		Events: eventsToEpoll(events),
		Fd:     int32(fd),
	}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (p *poller) modify(fd int, _ Events, events Events) error {
	ev := unix.EpollEvent{
		Events: eventsToEpoll(events),
		Fd:     int32(fd),
	}
	err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
	if errors.Is(err, unix.ENOENT) {
		// the descriptor was closed and reused, without being removed first
		err = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
	}
	return err
}

func (p *poller) remove(fd int, _ Events) error {
	err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if errors.Is(err, unix.ENOENT) || errors.Is(err, unix.EBADF) {
		return nil
	}
	return err
}

// wait blocks for up to timeoutMs (forever if negative), calling dispatch
// for each ready descriptor.
func (p *poller) wait(timeoutMs int, dispatch func(fd int, events Events)) (int, error) {
	n, err := unix.EpollWait(p.epfd, p.eventBuf[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	for i := 0; i < n; i++ {
		dispatch(int(p.eventBuf[i].Fd), epollToEvents(p.eventBuf[i].Events))
	}
	return n, nil
}

// eventsToEpoll converts Events to epoll event flags.
func eventsToEpoll(events Events) uint32 {
	var epollEvents uint32
	if events&EventRead != 0 {
		epollEvents |= unix.EPOLLIN
	}
	if events&EventWrite != 0 {
		epollEvents |= unix.EPOLLOUT
	}
	return epollEvents
}

// epollToEvents converts epoll event flags to Events.
func epollToEvents(epollEvents uint32) Events {
	var events Events
	if epollEvents&unix.EPOLLIN != 0 {
		events |= EventRead
	}
	if epollEvents&unix.EPOLLOUT != 0 {
		events |= EventWrite
	}
	if epollEvents&unix.EPOLLERR != 0 {
		events |= EventError
	}
	if epollEvents&unix.EPOLLHUP != 0 {
		events |= EventHangup
	}
	return events
}
