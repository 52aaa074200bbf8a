package looper

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/joeycumines/logiface"

	"github.com/joeycumines/go-simlooper/internal/goid"
	"github.com/joeycumines/go-simlooper/vclock"
)

// Looper binds one [Queue] to one goroutine, its "thread". Work posted to a
// looper is only ever dispatched on that goroutine.
//
// Loopers are created by a [Registry], see [Registry.Prepare],
// [Registry.PrepareMainLooper] and [Registry.StartThread].
type Looper struct {
	// Prevent copying
	_ [0]func()

	registry *Registry
	queue    *Queue
	clock    *vclock.Clock
	logger   *logiface.Logger[logiface.Event]
	name     string

	// thread is the id of the goroutine the looper is bound to.
	thread atomic.Uint64

	// exited is closed when the current (or last) Loop call returns, nil if
	// Loop never ran.
	exited atomic.Pointer[chan struct{}]

	looping atomic.Bool
	main    bool
}

func newLooper(r *Registry, thread uint64, name string, main, quitAllowed bool) *Looper {
	l := &Looper{
		registry: r,
		queue:    newQueue(r.clock, quitAllowed),
		clock:    r.clock,
		logger:   r.logger,
		name:     name,
		main:     main,
	}
	l.thread.Store(thread)
	return l
}

// Queue returns the looper's message queue.
func (l *Looper) Queue() *Queue { return l.queue }

// Clock returns the virtual clock the looper reads.
func (l *Looper) Clock() *vclock.Clock { return l.clock }

// Name returns the looper's name.
func (l *Looper) Name() string { return l.name }

// IsMain reports whether this is the registry's main looper.
func (l *Looper) IsMain() bool { return l.main }

// IsCurrentThread reports whether the calling goroutine is the one the
// looper is bound to.
func (l *Looper) IsCurrentThread() bool {
	return goid.Current() == l.thread.Load()
}

// String implements fmt.Stringer.
func (l *Looper) String() string {
	return fmt.Sprintf("Looper (%s, goroutine %d)", l.name, l.thread.Load())
}

// Quit closes the looper's queue: pending messages are dropped, further
// inserts fail with [ErrQueueQuit], and a blocked [Looper.Loop] returns.
// Quitting twice is a no-op. Quit-disallowed loopers, including the main
// looper, fail with [ErrQuitNotAllowed].
func (l *Looper) Quit() error {
	if !l.queue.quitAllowed {
		return ErrQuitNotAllowed
	}
	l.quit()
	return nil
}

func (l *Looper) quit() {
	if l.queue.quit() {
		l.logger.Debug().
			Str(`looper`, l.name).
			Bool(`main`, l.main).
			Log(`looper quit`)
	}
}

// Loop dispatches due messages on the calling goroutine until the looper
// quits, or ctx is done. It must be called from the looper's own goroutine,
// and is not available for the main looper, which is always paused.
//
// Panics raised by message payloads are recovered and logged, and looping
// continues. Loop returns nil when the looper quits, after the message it
// was dispatching, if any, returns.
func (l *Looper) Loop(ctx context.Context) error {
	if l.main {
		return ErrMainLooperLoop
	}
	if !l.IsCurrentThread() {
		return ErrNotLooperThread
	}
	if !l.looping.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer l.looping.Store(false)

	exited := make(chan struct{})
	l.exited.Store(&exited)
	defer close(exited)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		m, err := l.queue.next(ctx)
		if err != nil {
			if errors.Is(err, ErrQueueQuit) {
				return nil
			}
			return err
		}
		if err := m.dispatch(); err != nil {
			l.logger.Err().
				Err(err).
				Str(`looper`, l.name).
				Dur(`uptime`, l.clock.Now()).
				Log(`recovered panic dispatching message`)
		}
	}
}

// drain dispatches due messages on the calling goroutine until the queue is
// idle, re-reading the clock for each message, so that due work posted while
// draining is also dispatched. It stops at the first payload panic.
func (l *Looper) drain() error {
	for {
		m := l.queue.NextDue(l.clock.Now())
		if m == nil {
			return nil
		}
		if err := m.dispatch(); err != nil {
			return err
		}
	}
}

// NextScheduledTaskTime returns the earliest target uptime among all pending
// messages, due or not. The boolean is false if there are none.
func (l *Looper) NextScheduledTaskTime() (time.Duration, bool) {
	return l.queue.NextScheduledTime()
}

// LastScheduledTaskTime returns the latest target uptime among all pending
// messages. The boolean is false if there are none.
func (l *Looper) LastScheduledTaskTime() (time.Duration, bool) {
	return l.queue.LastScheduledTime()
}
