package muxbridge

import (
	"errors"
	"fmt"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// bridgeOptions holds configuration options for Bridge creation.
type bridgeOptions struct {
	logger   *logiface.Logger[logiface.Event]
	opener   SocketOpener
	failures *catrate.Limiter
}

// Option configures a Bridge instance.
type Option interface {
	applyBridge(*bridgeOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyBridgeFunc func(*bridgeOptions) error
}

func (x *optionImpl) applyBridge(opts *bridgeOptions) error {
	return x.applyBridgeFunc(opts)
}

// WithLogger configures structured logging. Callback flow is logged at
// trace level, socket setup failures at error level. A nil logger disables
// logging (the default).
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *bridgeOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithSocketOpener overrides how engine descriptors are probed and
// duplicated, defaulting to SystemOpener.
func WithSocketOpener(opener SocketOpener) Option {
	return &optionImpl{func(opts *bridgeOptions) error {
		if opener == nil {
			return errors.New(`muxbridge: nil socket opener`)
		}
		opts.opener = opener
		return nil
	}}
}

// WithFailureLogRates limits how often repeated failures (engine drive
// errors, failed waits) are logged, per failure kind and descriptor. See
// catrate.NewLimiter for the format of rates. By default, every failure is
// logged.
func WithFailureLogRates(rates map[time.Duration]int) Option {
	return &optionImpl{func(opts *bridgeOptions) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf(`muxbridge: invalid failure log rates: %v`, r)
			}
		}()
		opts.failures = catrate.NewLimiter(rates)
		return nil
	}}
}

// resolveBridgeOptions applies Option instances to bridgeOptions.
func resolveBridgeOptions(opts []Option) (*bridgeOptions, error) {
	cfg := &bridgeOptions{
		opener: SystemOpener{},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyBridge(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
