package vclock

import (
	"time"
)

// clockOptions holds configuration for Clock creation.
type clockOptions struct {
	epoch time.Time
	start time.Duration
}

// Option configures a Clock instance.
type Option interface {
	applyClock(*clockOptions)
}

// optionImpl implements Option.
type optionImpl struct {
	applyClockFunc func(*clockOptions)
}

func (o *optionImpl) applyClock(opts *clockOptions) {
	o.applyClockFunc(opts)
}

// WithStart sets the initial uptime. Negative values are treated as zero.
func WithStart(uptime time.Duration) Option {
	return &optionImpl{func(opts *clockOptions) {
		opts.start = max(uptime, 0)
	}}
}

// WithEpoch sets the wall time reported by Clock.WallTime at uptime zero.
func WithEpoch(epoch time.Time) Option {
	return &optionImpl{func(opts *clockOptions) {
		opts.epoch = epoch
	}}
}
