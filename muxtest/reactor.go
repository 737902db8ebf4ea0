package muxtest

import (
	"sort"
	"time"

	"github.com/eapache/queue"
	"github.com/joeycumines/go-muxbridge"
	"github.com/joeycumines/go-muxbridge/reactor"
)

// maxRounds bounds RunPending, which would otherwise spin forever on a
// descriptor that stays ready while something keeps waiting on it.
const maxRounds = 10000

type (
	// Reactor is a virtual-time, level-triggered muxbridge.Reactor.
	// Readiness is set explicitly, and persists until cleared, so every
	// wait armed on a ready descriptor fires on the next round.
	Reactor struct {
		// FailWaitFD, if set, is returned by WaitFD.
		FailWaitFD error

		ready  map[int]reactor.Events
		posted *queue.Queue
		waits  []*fakeWait
		timers []*fakeTimer
		now    time.Duration
		seq    uint64
	}

	fakeWait struct {
		r      *Reactor
		fn     func(err error)
		fd     int
		events reactor.Events
		done   bool
	}

	fakeTimer struct {
		r    *Reactor
		fn   func(err error)
		when time.Duration
		seq  uint64
		done bool
	}
)

var _ muxbridge.Reactor = (*Reactor)(nil)

// NewReactor returns a new Reactor, at virtual time zero.
func NewReactor() *Reactor {
	return &Reactor{
		ready:  make(map[int]reactor.Events),
		posted: queue.New(),
	}
}

func (r *Reactor) WaitFD(fd int, events reactor.Events, fn func(err error)) (reactor.Op, error) {
	if r.FailWaitFD != nil {
		return nil, r.FailWaitFD
	}
	if fd < 0 {
		return nil, reactor.ErrFDOutOfRange
	}
	events &= reactor.EventRead | reactor.EventWrite
	if events == 0 {
		return nil, reactor.ErrInvalidEvents
	}
	w := &fakeWait{r: r, fn: fn, fd: fd, events: events}
	r.waits = append(r.waits, w)
	return w, nil
}

func (r *Reactor) AfterFunc(d time.Duration, fn func(err error)) (reactor.Op, error) {
	r.seq++
	t := &fakeTimer{r: r, fn: fn, when: r.now + d, seq: r.seq}
	r.timers = append(r.timers, t)
	return t, nil
}

// Now returns the virtual time elapsed.
func (r *Reactor) Now() time.Duration { return r.now }

// SetReady marks fd ready for events, until cleared.
func (r *Reactor) SetReady(fd int, events reactor.Events) {
	r.ready[fd] |= events
}

// ClearReady clears readiness for events on fd.
func (r *Reactor) ClearReady(fd int, events reactor.Events) {
	if v := r.ready[fd] &^ events; v != 0 {
		r.ready[fd] = v
	} else {
		delete(r.ready, fd)
	}
}

// Waiting returns the union of the events pending waits on fd are
// interested in.
func (r *Reactor) Waiting(fd int) (events reactor.Events) {
	for _, w := range r.waits {
		if w.fd == fd {
			events |= w.events
		}
	}
	return
}

// Waits returns the number of pending waits on fd.
func (r *Reactor) Waits(fd int) (n int) {
	for _, w := range r.waits {
		if w.fd == fd {
			n++
		}
	}
	return
}

// PendingWaits returns the number of pending waits, across all descriptors.
func (r *Reactor) PendingWaits() int { return len(r.waits) }

// PendingTimers returns the number of pending timers.
func (r *Reactor) PendingTimers() int { return len(r.timers) }

// NextTimer returns the time remaining until the earliest pending timer.
func (r *Reactor) NextTimer() (time.Duration, bool) {
	if len(r.timers) == 0 {
		return 0, false
	}
	next := r.timers[0].when
	for _, t := range r.timers[1:] {
		if t.when < next {
			next = t.when
		}
	}
	return next - r.now, true
}

// Advance moves virtual time forward by d, then runs everything pending.
func (r *Reactor) Advance(d time.Duration) int {
	r.now += d
	return r.RunPending()
}

// RunPending runs rounds until nothing is left to run, returning the number
// of callbacks called. Each round runs posted completions (cancellations),
// then ready waits, then expired timers.
func (r *Reactor) RunPending() (n int) {
	for i := 0; ; i++ {
		if i == maxRounds {
			panic(`muxtest: reactor did not quiesce`)
		}
		c := r.Step()
		if c == 0 {
			return
		}
		n += c
	}
}

// Step runs a single round, returning the number of callbacks called.
func (r *Reactor) Step() (n int) {
	for c := r.posted.Length(); c > 0; c-- {
		r.posted.Remove().(func())()
		n++
	}

	var fired []*fakeWait
	remaining := r.waits[:0]
	for _, w := range r.waits {
		if r.ready[w.fd]&w.events != 0 {
			w.done = true
			fired = append(fired, w)
		} else {
			remaining = append(remaining, w)
		}
	}
	for i := len(remaining); i < len(r.waits); i++ {
		r.waits[i] = nil
	}
	r.waits = remaining
	for _, w := range fired {
		w.fn(nil)
		n++
	}

	var expired []*fakeTimer
	pending := r.timers[:0]
	for _, t := range r.timers {
		if t.when <= r.now {
			t.done = true
			expired = append(expired, t)
		} else {
			pending = append(pending, t)
		}
	}
	for i := len(pending); i < len(r.timers); i++ {
		r.timers[i] = nil
	}
	r.timers = pending
	sort.Slice(expired, func(i, j int) bool {
		if expired[i].when == expired[j].when {
			return expired[i].seq < expired[j].seq
		}
		return expired[i].when < expired[j].when
	})
	for _, t := range expired {
		t.fn(nil)
		n++
	}

	return
}

func (x *fakeWait) Cancel() bool {
	if x.done {
		return false
	}
	x.done = true
	r := x.r
	for i, w := range r.waits {
		if w == x {
			r.waits = append(r.waits[:i], r.waits[i+1:]...)
			break
		}
	}
	r.posted.Add(func() { x.fn(reactor.ErrCanceled) })
	return true
}

func (x *fakeTimer) Cancel() bool {
	if x.done {
		return false
	}
	x.done = true
	r := x.r
	for i, t := range r.timers {
		if t == x {
			r.timers = append(r.timers[:i], r.timers[i+1:]...)
			break
		}
	}
	r.posted.Add(func() { x.fn(reactor.ErrCanceled) })
	return true
}
