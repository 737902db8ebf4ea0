// Package muxtest provides deterministic fakes for testing code built on
// muxbridge: a scriptable Engine, a virtual-time Reactor, and an Opener.
//
// None of the fakes are safe for concurrent use, matching the
// single-threaded model they stand in for.
package muxtest
