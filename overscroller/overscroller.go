// Package overscroller models a linear scroll animation driven by the
// virtual clock.
//
// An OverScroller has no scheduling logic of its own: its position is a pure
// function of the time elapsed on a [vclock.Source], so it advances exactly
// when a looper's IdleFor (or anything else) advances the shared clock.
package overscroller

import (
	"time"

	"github.com/joeycumines/go-simlooper/vclock"
)

// OverScroller tracks a single scroll from a start to a final position.
type OverScroller struct {
	clock     vclock.Source
	startTime time.Duration
	duration  time.Duration
	startX    int
	startY    int
	finalX    int
	finalY    int
	// begun is set by the first StartScroll.
	begun bool
	// started is cleared by ComputeScrollOffset, once the scroll ends.
	started bool
}

// New returns an OverScroller reading time from clock.
func New(clock vclock.Source) *OverScroller {
	if clock == nil {
		panic(`overscroller: nil clock`)
	}
	return &OverScroller{clock: clock}
}

// StartScroll begins a scroll from (startX, startY), moving by (dx, dy) over
// duration.
func (x *OverScroller) StartScroll(startX, startY, dx, dy int, duration time.Duration) {
	x.startX = startX
	x.startY = startY
	x.finalX = startX + dx
	x.finalY = startY + dy
	x.startTime = x.clock.Now()
	x.duration = duration
	x.begun = true
	x.started = true
}

// StartX returns the horizontal position the scroll started at.
func (x *OverScroller) StartX() int { return x.startX }

// StartY returns the vertical position the scroll started at.
func (x *OverScroller) StartY() int { return x.startY }

// FinalX returns the horizontal position the scroll ends at.
func (x *OverScroller) FinalX() int { return x.finalX }

// FinalY returns the vertical position the scroll ends at.
func (x *OverScroller) FinalY() int { return x.finalY }

// CurrX returns the current horizontal position.
func (x *OverScroller) CurrX() int {
	return x.interpolate(x.startX, x.finalX)
}

// CurrY returns the current vertical position.
func (x *OverScroller) CurrY() int {
	return x.interpolate(x.startY, x.finalY)
}

// TimePassed returns the time elapsed since the scroll started. It keeps
// growing after the scroll finishes.
func (x *OverScroller) TimePassed() time.Duration {
	if !x.begun {
		return 0
	}
	return x.clock.Now() - x.startTime
}

// IsFinished reports whether the scroll has run past its duration, or was
// never started.
func (x *OverScroller) IsFinished() bool {
	return !x.begun || x.TimePassed() > x.duration
}

// ComputeScrollOffset reports whether the animation is still running, as of
// the last time it was computed. The first call at or after the end of the
// duration still reports true, and every call after that reports false.
func (x *OverScroller) ComputeScrollOffset() bool {
	if !x.started {
		return false
	}
	x.started = x.TimePassed() < x.duration
	return true
}

// AbortAnimation jumps straight to the final position.
func (x *OverScroller) AbortAnimation() {
	x.duration = x.TimePassed() - 1
}

// ForceFinished stops the scroll where it currently is, if finished is true.
func (x *OverScroller) ForceFinished(finished bool) {
	if !finished {
		return
	}
	x.finalX = x.CurrX()
	x.finalY = x.CurrY()
	x.duration = x.TimePassed() - 1
}

// IsScrollingInDirection reports whether a scroll is in progress, moving in
// the direction of the given velocities.
func (x *OverScroller) IsScrollingInDirection(xvel, yvel float64) bool {
	return !x.IsFinished() &&
		sign(xvel) == sign(float64(x.finalX-x.startX)) &&
		sign(yvel) == sign(float64(x.finalY-x.startY))
}

// interpolate moves linearly from start to final, truncating towards start.
func (x *OverScroller) interpolate(start, final int) int {
	passed := x.TimePassed()
	if passed > x.duration || x.duration <= 0 {
		return final
	}
	// float64 keeps large deltas over long durations from overflowing
	return start + int(float64(final-start)*float64(passed)/float64(x.duration))
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
