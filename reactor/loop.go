package reactor

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/joeycumines/logiface"
)

const (
	stateAwake int32 = iota
	stateRunning
	stateTerminating
	stateTerminated
)

// Loop is a single-threaded reactor. Instances must be initialized using
// the New factory, and are not reusable once terminated.
type Loop struct {
	// Prevent copying
	_ [0]func()

	logger *logiface.Logger[logiface.Event]

	// submitted holds tasks from Submit, guarded by mu
	submitted *queue.Queue
	// posted holds loop-internal completions, loop goroutine only
	posted *queue.Queue

	fds    map[int]*fdEntry
	timers timerHeap

	done chan struct{}

	poller poller

	maxPollDelay time.Duration

	timerSeq uint64

	wakeFD      int
	wakeWriteFD int

	mu sync.Mutex

	state       atomic.Int32
	goroutineID atomic.Uint64
	wakePending atomic.Bool

	finalizeOnce sync.Once
}

// New initializes a new Loop, allocating its poller and wake-up descriptor.
// Close (or Shutdown) must be called to release them.
func New(opts ...Option) (*Loop, error) {
	cfg, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}

	wakeFD, wakeWriteFD, err := createWakeFd()
	if err != nil {
		return nil, err
	}

	l := &Loop{
		logger:       cfg.logger,
		maxPollDelay: cfg.maxPollDelay,
		submitted:    queue.New(),
		posted:       queue.New(),
		fds:          make(map[int]*fdEntry),
		done:         make(chan struct{}),
		wakeFD:       wakeFD,
		wakeWriteFD:  wakeWriteFD,
	}

	if err := l.poller.init(); err != nil {
		l.closeWakeFDs()
		return nil, err
	}

	if err := l.poller.add(wakeFD, EventRead); err != nil {
		_ = l.poller.close()
		l.closeWakeFDs()
		return nil, err
	}

	return l, nil
}

// Run runs the event loop on the calling goroutine, blocking until the loop
// terminates, via Shutdown, Close, or ctx cancellation (which returns the
// context's error).
func (l *Loop) Run(ctx context.Context) error {
	if l.isLoopGoroutine() {
		return ErrReentrantRun
	}

	if !l.state.CompareAndSwap(stateAwake, stateRunning) {
		if l.state.Load() >= stateTerminating {
			return ErrLoopTerminated
		}
		return ErrLoopAlreadyRunning
	}

	l.goroutineID.Store(getGoroutineID())
	defer l.goroutineID.Store(0)

	defer l.finalize()

	// wake the loop on cancellation
	ctxDone := make(chan struct{})
	defer close(ctxDone)
	go func() {
		select {
		case <-ctx.Done():
			l.wake()
		case <-ctxDone:
		}
	}()

	l.logger.Debug().Log(`reactor loop started`)

	for {
		if err := ctx.Err(); err != nil {
			l.state.Store(stateTerminating)
			l.logger.Debug().Err(err).Log(`reactor loop canceled`)
			return err
		}
		if l.state.Load() != stateRunning {
			l.logger.Debug().Log(`reactor loop stopped`)
			return nil
		}
		l.tick()
	}
}

// Shutdown stops the loop, waiting until it has fully terminated, or ctx is
// done. Tasks submitted prior to the call are run first. Pending operations
// are abandoned, without calling their callbacks.
func (l *Loop) Shutdown(ctx context.Context) error {
	switch l.state.Swap(stateTerminating) {
	case stateAwake:
		l.finalize()
	case stateTerminated:
		l.state.Store(stateTerminated)
		return ErrLoopTerminated
	default:
		l.wake()
	}
	if l.isLoopGoroutine() {
		// Run will return once the current tick completes
		return nil
	}
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the loop, without waiting for it to terminate.
func (l *Loop) Close() error {
	switch l.state.Swap(stateTerminating) {
	case stateAwake:
		l.finalize()
	case stateTerminated:
		l.state.Store(stateTerminated)
		return ErrLoopTerminated
	default:
		l.wake()
	}
	return nil
}

// Done returns a channel that is closed once the loop has terminated.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Submit schedules fn to run on the loop goroutine. It is safe to call from
// any goroutine, including the loop itself.
func (l *Loop) Submit(fn func()) error {
	if fn == nil {
		return nil
	}
	l.mu.Lock()
	if l.state.Load() == stateTerminated {
		l.mu.Unlock()
		return ErrLoopTerminated
	}
	l.submitted.Add(fn)
	l.mu.Unlock()
	l.wake()
	return nil
}

// WaitFD arms a one-shot wait for fd to become ready for any of events
// (EventRead and/or EventWrite). The callback receives nil on readiness, or
// ErrCanceled. Multiple waits may be pending on the same descriptor.
func (l *Loop) WaitFD(fd int, events Events, fn func(err error)) (Op, error) {
	if err := l.checkLoopAffine(); err != nil {
		return nil, err
	}
	if fd < 0 {
		return nil, ErrFDOutOfRange
	}
	events &= EventRead | EventWrite
	if events == 0 {
		return nil, ErrInvalidEvents
	}

	entry := l.fds[fd]
	if entry == nil {
		entry = &fdEntry{fd: fd}
		l.fds[fd] = entry
	}

	w := &ioWait{
		loop:   l,
		fn:     fn,
		fd:     fd,
		events: events,
	}
	entry.waits = append(entry.waits, w)

	if err := l.updateInterest(entry); err != nil {
		entry.detach(w)
		if len(entry.waits) == 0 && entry.registered == 0 {
			delete(l.fds, fd)
		}
		return nil, err
	}

	l.logger.Trace().
		Int(`fd`, fd).
		Stringer(`events`, events).
		Log(`reactor wait armed`)

	return w, nil
}

// AfterFunc arms a one-shot timer, calling fn with nil once d has elapsed,
// or with ErrCanceled. Timers with equal deadlines fire in the order they
// were armed.
func (l *Loop) AfterFunc(d time.Duration, fn func(err error)) (Op, error) {
	if err := l.checkLoopAffine(); err != nil {
		return nil, err
	}
	l.timerSeq++
	t := &timerOp{
		when: time.Now().Add(d),
		loop: l,
		fn:   fn,
		seq:  l.timerSeq,
	}
	heap.Push(&l.timers, t)
	return t, nil
}

func (l *Loop) checkLoopAffine() error {
	switch l.state.Load() {
	case stateAwake:
		return nil
	case stateRunning:
		if l.isLoopGoroutine() {
			return nil
		}
		return ErrNotLoopGoroutine
	default:
		return ErrLoopTerminated
	}
}

// tick is a single iteration of the event loop.
func (l *Loop) tick() {
	l.runTimers()
	l.runSubmitted()
	l.runPosted()
	l.poll()
}

// runTimers fires all expired timers.
func (l *Loop) runTimers() {
	now := time.Now()
	for len(l.timers) > 0 {
		if l.timers[0].when.After(now) {
			break
		}
		t := heap.Pop(&l.timers).(*timerOp)
		t.state = opFired
		t.fn(nil)
	}
}

func (l *Loop) runSubmitted() {
	l.mu.Lock()
	n := l.submitted.Length()
	if n == 0 {
		l.mu.Unlock()
		return
	}
	tasks := make([]func(), n)
	for i := range tasks {
		tasks[i] = l.submitted.Remove().(func())
	}
	l.mu.Unlock()
	for _, task := range tasks {
		task()
	}
}

// runPosted runs the completions posted prior to the call, leaving any
// posted while running for the next tick.
func (l *Loop) runPosted() {
	for n := l.posted.Length(); n > 0; n-- {
		l.posted.Remove().(func())()
	}
}

func (l *Loop) post(fn func()) {
	l.posted.Add(fn)
}

func (l *Loop) poll() {
	if l.state.Load() != stateRunning {
		return
	}
	if _, err := l.poller.wait(l.calculateTimeout(), l.dispatch); err != nil {
		l.logger.Err().Err(err).Log(`reactor poll failed, terminating loop`)
		l.state.CompareAndSwap(stateRunning, stateTerminating)
	}
}

// calculateTimeout determines how long to block in poll, in milliseconds.
func (l *Loop) calculateTimeout() int {
	if l.posted.Length() != 0 || l.wakePending.Load() {
		return 0
	}

	delay := l.maxPollDelay
	if len(l.timers) > 0 {
		if d := time.Until(l.timers[0].when); d < delay {
			delay = d
		}
	}

	if delay <= 0 {
		return 0
	}

	// round up, so a timer is never polled for early
	return int((delay + time.Millisecond - 1) / time.Millisecond)
}

func (l *Loop) dispatch(fd int, events Events) {
	if fd == l.wakeFD {
		l.wakePending.Store(false)
		drainFD(l.wakeFD)
		return
	}

	entry := l.fds[fd]
	if entry == nil {
		return
	}

	fired := entry.take(events.ready())
	if len(fired) == 0 {
		return
	}

	if err := l.updateInterest(entry); err != nil {
		l.logger.Warning().
			Err(err).
			Int(`fd`, fd).
			Log(`reactor failed to update interest`)
	}

	l.logger.Trace().
		Int(`fd`, fd).
		Stringer(`events`, events).
		Int(`fired`, len(fired)).
		Log(`reactor descriptor ready`)

	for _, w := range fired {
		w.fn(nil)
	}
}

// updateInterest syncs the poller registration for entry with its pending
// waits, dropping the entry once nothing is pending.
func (l *Loop) updateInterest(entry *fdEntry) error {
	want := entry.interest()
	if want == entry.registered {
		if want == 0 {
			delete(l.fds, entry.fd)
		}
		return nil
	}

	var err error
	switch {
	case entry.registered == 0:
		err = l.poller.add(entry.fd, want)
	case want == 0:
		err = l.poller.remove(entry.fd, entry.registered)
	default:
		err = l.poller.modify(entry.fd, entry.registered, want)
	}
	if err != nil {
		return err
	}

	entry.registered = want
	if want == 0 {
		delete(l.fds, entry.fd)
	}
	return nil
}

func (l *Loop) wake() {
	if !l.wakePending.CompareAndSwap(false, true) {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.Load() == stateTerminated {
		// descriptors are closed, and may have been reused
		return
	}
	if err := signalFD(l.wakeWriteFD); err != nil {
		l.wakePending.Store(false)
		l.logger.Debug().Err(err).Log(`reactor wake-up failed`)
	}
}

// finalize runs any remaining submitted tasks, then releases all
// descriptors. Pending operations are abandoned.
func (l *Loop) finalize() {
	l.finalizeOnce.Do(func() {
		l.mu.Lock()
		l.state.Store(stateTerminated)
		tasks := make([]func(), 0, l.submitted.Length())
		for l.submitted.Length() != 0 {
			tasks = append(tasks, l.submitted.Remove().(func()))
		}
		_ = l.poller.close()
		l.closeWakeFDs()
		l.mu.Unlock()

		for _, task := range tasks {
			task()
		}

		for fd, entry := range l.fds {
			for _, w := range entry.waits {
				w.state = opCanceled
			}
			delete(l.fds, fd)
		}
		for _, t := range l.timers {
			t.state = opCanceled
			t.index = -1
		}
		l.timers = nil
		for l.posted.Length() != 0 {
			l.posted.Remove()
		}

		close(l.done)
	})
}

func (l *Loop) closeWakeFDs() {
	_ = closeFD(l.wakeFD)
	if l.wakeWriteFD != l.wakeFD {
		_ = closeFD(l.wakeWriteFD)
	}
}

func (l *Loop) isLoopGoroutine() bool {
	id := l.goroutineID.Load()
	return id != 0 && id == getGoroutineID()
}
