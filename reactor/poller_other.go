//go:build !linux && !darwin

package reactor

type poller struct{}

func (p *poller) init() error { return ErrUnsupportedPlatform }

func (p *poller) close() error { return nil }

func (p *poller) add(int, Events) error { return ErrUnsupportedPlatform }

func (p *poller) modify(int, Events, Events) error { return ErrUnsupportedPlatform }

func (p *poller) remove(int, Events) error { return nil }

func (p *poller) wait(int, func(int, Events)) (int, error) {
	return 0, ErrUnsupportedPlatform
}

func createWakeFd() (int, int, error) { return -1, -1, ErrUnsupportedPlatform }

func closeFD(int) error { return nil }

func drainFD(int) {}

func signalFD(int) error { return ErrUnsupportedPlatform }
