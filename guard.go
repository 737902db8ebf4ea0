package muxbridge

// callGuard counts nested callback frames. While active, structural changes
// that an outer frame may still depend on must be deferred, see later.
type callGuard struct {
	deferred []func()
	depth    int
}

// enter increments the depth, returning the func to decrement it, intended
// to be deferred: defer g.enter()()
func (x *callGuard) enter() func() {
	x.depth++
	return x.exit
}

func (x *callGuard) exit() {
	x.depth--
	if x.depth < 0 {
		panic(`muxbridge: call guard underflow`)
	}
	if x.depth == 0 && len(x.deferred) != 0 {
		deferred := x.deferred
		x.deferred = nil
		for _, fn := range deferred {
			fn()
		}
	}
}

func (x *callGuard) active() bool {
	return x.depth > 0
}

// later runs fn immediately if the guard is inactive, otherwise once the
// outermost frame exits.
func (x *callGuard) later(fn func()) {
	if x.depth == 0 {
		fn()
		return
	}
	x.deferred = append(x.deferred, fn)
}
