package looper

import (
	"errors"

	"github.com/joeycumines/logiface"

	"github.com/joeycumines/go-simlooper/vclock"
)

// registryOptions holds configuration options for Registry creation.
type registryOptions struct {
	clock  *vclock.Clock
	logger *logiface.Logger[logiface.Event]
}

// looperOptions holds configuration options for Looper creation.
type looperOptions struct {
	quitAllowed *bool
	name        string
}

// --- Registry Options ---

// Option configures a Registry instance.
type Option interface {
	applyRegistry(*registryOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyRegistryFunc func(*registryOptions) error
}

func (o *optionImpl) applyRegistry(opts *registryOptions) error {
	return o.applyRegistryFunc(opts)
}

// WithClock sets the virtual clock shared by every looper of the registry.
// Defaults to a new clock at uptime zero.
func WithClock(clock *vclock.Clock) Option {
	return &optionImpl{func(opts *registryOptions) error {
		if clock == nil {
			return errors.New("looper: nil clock")
		}
		opts.clock = clock
		return nil
	}}
}

// WithLogger sets the structured logger. A nil logger (the default) disables
// logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *registryOptions) error {
		opts.logger = logger
		return nil
	}}
}

// resolveRegistryOptions applies Option instances to registryOptions.
func resolveRegistryOptions(opts []Option) (*registryOptions, error) {
	cfg := &registryOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyRegistry(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.clock == nil {
		cfg.clock = vclock.New()
	}
	return cfg, nil
}

// --- Looper Options ---

// LooperOption configures a Looper instance.
type LooperOption interface {
	applyLooper(*looperOptions) error
}

// looperOptionImpl implements LooperOption.
type looperOptionImpl struct {
	applyLooperFunc func(*looperOptions) error
}

func (o *looperOptionImpl) applyLooper(opts *looperOptions) error {
	return o.applyLooperFunc(opts)
}

// WithName sets the looper's name, used in logs and String.
func WithName(name string) LooperOption {
	return &looperOptionImpl{func(opts *looperOptions) error {
		opts.name = name
		return nil
	}}
}

// WithQuitAllowed sets whether the looper may be quit, and therefore whether
// Registry.Reset quits it (true) or only drops its pending work (false).
// Defaults to true. Ignored for the main looper, which may never quit.
func WithQuitAllowed(allowed bool) LooperOption {
	return &looperOptionImpl{func(opts *looperOptions) error {
		opts.quitAllowed = &allowed
		return nil
	}}
}

// resolveLooperOptions applies LooperOption instances to looperOptions.
func resolveLooperOptions(opts []LooperOption) (*looperOptions, error) {
	cfg := &looperOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyLooper(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
