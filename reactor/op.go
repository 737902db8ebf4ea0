package reactor

import (
	"container/heap"
	"time"
)

type (
	// Op is a pending one-shot operation, see Loop.WaitFD and Loop.AfterFunc.
	Op interface {
		// Cancel cancels the operation, if it is still pending, in which
		// case its callback will be called with ErrCanceled, on a later
		// iteration of the loop. Returns false if the operation had already
		// completed or been canceled. Must be called from the loop goroutine.
		Cancel() bool
	}

	opState uint8

	// ioWait is a one-shot readiness wait on a single descriptor.
	ioWait struct {
		loop   *Loop
		fn     func(err error)
		fd     int
		events Events
		state  opState
	}

	// fdEntry aggregates the pending waits for one descriptor, and the
	// interest currently registered with the poller.
	fdEntry struct {
		waits      []*ioWait
		fd         int
		registered Events
	}

	// timerOp is a one-shot timer, held in timerHeap while pending.
	timerOp struct {
		when  time.Time
		loop  *Loop
		fn    func(err error)
		seq   uint64
		index int
		state opState
	}

	// timerHeap is a min-heap of timers, ordered by deadline then sequence.
	timerHeap []*timerOp
)

const (
	opPending opState = iota
	opFired
	opCanceled
)

var (
	_ Op = (*ioWait)(nil)
	_ Op = (*timerOp)(nil)
)

func (x *ioWait) Cancel() bool {
	if x.state != opPending {
		return false
	}
	x.state = opCanceled
	if entry := x.loop.fds[x.fd]; entry != nil {
		entry.detach(x)
		if err := x.loop.updateInterest(entry); err != nil {
			x.loop.logger.Warning().
				Err(err).
				Int(`fd`, x.fd).
				Log(`reactor failed to update interest`)
		}
	}
	x.loop.post(func() { x.fn(ErrCanceled) })
	return true
}

// detach removes w from the pending waits, preserving order.
func (x *fdEntry) detach(w *ioWait) {
	for i, v := range x.waits {
		if v == w {
			copy(x.waits[i:], x.waits[i+1:])
			x.waits[len(x.waits)-1] = nil
			x.waits = x.waits[:len(x.waits)-1]
			return
		}
	}
}

// interest is the union of the pending waits.
func (x *fdEntry) interest() (events Events) {
	for _, w := range x.waits {
		events |= w.events
	}
	return
}

// take removes and returns the waits satisfied by ready, marking them fired.
func (x *fdEntry) take(ready Events) (fired []*ioWait) {
	remaining := x.waits[:0]
	for _, w := range x.waits {
		if w.events&ready != 0 {
			w.state = opFired
			fired = append(fired, w)
		} else {
			remaining = append(remaining, w)
		}
	}
	for i := len(remaining); i < len(x.waits); i++ {
		x.waits[i] = nil
	}
	x.waits = remaining
	return
}

func (x *timerOp) Cancel() bool {
	if x.state != opPending {
		return false
	}
	x.state = opCanceled
	if x.index >= 0 {
		heap.Remove(&x.loop.timers, x.index)
	}
	x.loop.post(func() { x.fn(ErrCanceled) })
	return true
}

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].seq < h[j].seq
	}
	return h[i].when.Before(h[j].when)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*timerOp)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
