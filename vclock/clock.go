// Package vclock implements the virtual clock shared by every looper in a
// test run.
//
// Time only moves when the driving code calls [Clock.AdvanceBy]. Nothing in
// this module advances a clock implicitly, and the clock has no knowledge of
// the queues that read it: draining work that became due is the caller's job.
package vclock

import (
	"errors"
	"math"
	"sync/atomic"
	"time"
)

// ErrNegativeDuration is returned by [Clock.AdvanceBy] for a negative
// duration.
var ErrNegativeDuration = errors.New("vclock: cannot advance by a negative duration")

// ErrClockOverflow is returned by [Clock.AdvanceBy] if the uptime would
// exceed the maximum representable duration. The clock is left unchanged.
var ErrClockOverflow = errors.New("vclock: advance would overflow the clock")

// DefaultEpoch is the wall time corresponding to an uptime of zero, unless
// overridden using [WithEpoch].
var DefaultEpoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Source is the read side of a [Clock], accepted by consumers that only need
// "now".
type Source interface {
	// Now returns the current uptime.
	Now() time.Duration
}

// Clock is a monotonic virtual uptime clock.
//
// It is safe to read from any goroutine. AdvanceBy is expected to be called
// only by the goroutine driving the test.
type Clock struct {
	// Prevent copying
	_ [0]func()

	epoch time.Time
	now   atomic.Int64
}

var _ Source = (*Clock)(nil)

// New constructs a clock at uptime zero, or at the uptime given by
// [WithStart].
func New(opts ...Option) *Clock {
	cfg := clockOptions{epoch: DefaultEpoch}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyClock(&cfg)
	}
	c := &Clock{epoch: cfg.epoch}
	c.now.Store(int64(cfg.start))
	return c
}

// Now returns the current uptime.
func (c *Clock) Now() time.Duration {
	return time.Duration(c.now.Load())
}

// UptimeMillis returns the current uptime in whole milliseconds.
func (c *Clock) UptimeMillis() int64 {
	return c.Now().Milliseconds()
}

// WallTime returns the epoch offset by the current uptime.
func (c *Clock) WallTime() time.Time {
	return c.epoch.Add(c.Now())
}

// Since returns the uptime elapsed since the given uptime.
func (c *Clock) Since(uptime time.Duration) time.Duration {
	return c.Now() - uptime
}

// AdvanceBy moves the clock forward by exactly d. A zero duration is a
// no-op. It fails with [ErrClockOverflow], without moving the clock, if the
// uptime would overflow.
func (c *Clock) AdvanceBy(d time.Duration) error {
	if d < 0 {
		return ErrNegativeDuration
	}
	for {
		now := c.now.Load()
		if int64(d) > math.MaxInt64-now {
			return ErrClockOverflow
		}
		if c.now.CompareAndSwap(now, now+int64(d)) {
			return nil
		}
	}
}
