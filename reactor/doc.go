// Package reactor provides a single-threaded event loop, offering one-shot,
// cancellable readiness waits on file descriptors, and one-shot, cancellable
// timers.
//
// # Execution Model
//
// All callbacks run on the goroutine executing [Loop.Run]. Each tick:
//  1. Expired timers fire (earliest deadline first)
//  2. Submitted tasks run ([Loop.Submit])
//  3. Posted completions run, e.g. cancellations
//  4. The poller blocks until a descriptor is ready, the next timer is due,
//     or the loop is woken
//
// # One-Shot Operations
//
// [Loop.WaitFD] and [Loop.AfterFunc] each complete exactly once. A completed
// wait is not re-armed automatically: callers that want further readiness
// must wait again. [Op.Cancel] on a pending operation completes it with
// [ErrCanceled], on a later iteration of the loop, never inline.
//
// Readiness is level-triggered. A descriptor that is still readable when a
// new wait is armed completes that wait on the next poll, so no edge is lost
// between a cancel and a subsequent wait.
//
// # Thread Safety
//
//   - [Loop.Submit], [Loop.Shutdown] and [Loop.Close] are safe to call from
//     any goroutine
//   - [Loop.WaitFD], [Loop.AfterFunc] and [Op.Cancel] must be called from the
//     loop goroutine, or before [Loop.Run]
//
// # Platform Support
//
//   - Linux: epoll, eventfd wake-up
//   - macOS: kqueue, self-pipe wake-up
package reactor
