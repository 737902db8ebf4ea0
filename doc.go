// Package muxbridge drives a callback-driven multi-transfer [Engine] on top
// of a single-threaded [Reactor].
//
// The engine manages the protocol side of many concurrent transfers, on a
// small set of sockets, but never waits itself. Instead it tells the
// [Bridge] which descriptors to watch, and when it next needs a tick. The
// Bridge translates those requests into one-shot reactor subscriptions,
// drives the engine when they complete, and dispatches each transfer's
// completion exactly once, to [Transfer.OnDone].
//
// # Usage
//
//	loop, err := reactor.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer loop.Close()
//
//	bridge, err := muxbridge.New(loop, engine)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	loop.Submit(func() {
//	    t := bridge.NewTransfer()
//	    t.OnData = func(b []byte) muxbridge.DataAction { ...; return muxbridge.DataAccept }
//	    t.OnDone = func(result muxbridge.Result) { ... }
//	    t.Start(`https://example.com`)
//	})
//
//	if err := loop.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Reentrancy
//
// Every method of Bridge and Transfer must be called from the reactor
// goroutine. There are no locks: correctness depends on call guards, which
// count nested engine and user callbacks. While a transfer's own callback is
// running, [Transfer.Start] is refused, and [Transfer.Stop] only marks the
// transfer stopped, leaving the engine to fail it once the callback returns
// (see [Transfer.Stop]). [Bridge.Terminate] may be called from any callback,
// with the engine released once the outermost callback returns.
//
// # Lifetime
//
// The Bridge's descriptor map and transfer set are the only things keeping
// socket and transfer state alive while the reactor holds pending operations
// on them: a socket's reactor waits are always canceled before it leaves the
// map, and canceled waits complete as no-ops.
package muxbridge
