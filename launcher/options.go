package launcher

import (
	"github.com/joeycumines/logiface"
)

type options struct {
	defaultPoster Poster
	logger        *logiface.Logger[logiface.Event]
	user          UserHandle
}

// Option configures a LauncherApps instance.
type Option interface {
	apply(*options) error
}

type optionFunc func(*options) error

func (f optionFunc) apply(opts *options) error { return f(opts) }

// WithDefaultPoster sets the poster used for callbacks registered without
// one, e.g. a handler for the main looper.
func WithDefaultPoster(poster Poster) Option {
	return optionFunc(func(opts *options) error {
		opts.defaultPoster = poster
		return nil
	})
}

// WithUser sets the user the LauncherApps belongs to. Defaults to 0.
func WithUser(user UserHandle) Option {
	return optionFunc(func(opts *options) error {
		opts.user = user
		return nil
	})
}

// WithLogger sets the structured logger. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return optionFunc(func(opts *options) error {
		opts.logger = logger
		return nil
	})
}

func resolveOptions(opts []Option) (*options, error) {
	cfg := &options{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
