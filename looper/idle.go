package looper

import (
	"context"
	"time"
)

// Idle dispatches every due message, including due messages posted by the
// messages it dispatches, returning once the queue is idle.
//
// Called from the looper's own goroutine, Idle drains the queue in place.
// From any other goroutine, a drain task is posted to the looper as an
// immediate message, and Idle blocks until the looper's goroutine has run it,
// which requires the looper to be looping (see [Looper.Loop] and
// [Registry.StartThread]). The main looper may only be idled from its own
// goroutine, and fails with [ErrMainLooperWrongThread] otherwise.
//
// If a payload panics, draining stops, and Idle returns a [*PanicError].
func (l *Looper) Idle() error {
	return l.IdleContext(context.Background())
}

// IdleContext is [Looper.Idle], bounding the cross-goroutine wait by ctx. If
// ctx is done first, the wait is abandoned: a warning is logged, and nil is
// returned. The drain task remains queued, and still runs, eventually.
//
// If the looper quits before the drain task runs, the wait ends once the
// looper's goroutine has returned from [Looper.Loop], so a payload that was
// being dispatched at the time has finished.
func (l *Looper) IdleContext(ctx context.Context) error {
	if l.IsCurrentThread() {
		return l.drain()
	}
	if l.main {
		return ErrMainLooperWrongThread
	}

	task := idleTask{
		looper: l,
		done:   make(chan struct{}),
	}
	if err := l.queue.Insert(NewImmediateMessage(task.run)); err != nil {
		return err
	}
	return task.wait(ctx)
}

// IdleFor advances the clock by d, then calls [Looper.Idle]. This is the only
// way virtual time passes for a looper.
func (l *Looper) IdleFor(d time.Duration) error {
	if l.main && !l.IsCurrentThread() {
		return ErrMainLooperWrongThread
	}
	if err := l.clock.AdvanceBy(d); err != nil {
		return err
	}
	return l.Idle()
}

// IdleIfPaused calls [Looper.Idle].
func (l *Looper) IdleIfPaused() error {
	return l.Idle()
}

// IsIdle reports whether the looper has no due work.
func (l *Looper) IsIdle() bool {
	return l.queue.IsIdle()
}

// RunPaused runs fn inline, then idles. Only available on the main looper,
// which is unconditionally paused.
func (l *Looper) RunPaused(fn func()) error {
	if !l.main {
		return ErrNotMainLooper
	}
	fn()
	return l.Idle()
}

// Pause is a no-op for the main looper, which is always paused. Any other
// looper fails with [ErrNotMainLooper].
func (l *Looper) Pause() error {
	if !l.main {
		return ErrNotMainLooper
	}
	return nil
}

// idleTask is the one-shot drain posted by a cross-goroutine Idle.
type idleTask struct {
	looper *Looper
	err    error
	// done is closed after run, publishing err.
	done chan struct{}
}

func (t *idleTask) run() {
	defer close(t.done)
	t.err = t.looper.drain()
}

func (t *idleTask) wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-t.looper.queue.done:
		return t.waitQuit(ctx)
	case <-ctx.Done():
		return t.interrupted(ctx)
	}
}

// waitQuit handles a quit before the task completed. The task will never run
// unless it is already running, but the looper's goroutine may still be
// dispatching, so the wait continues until Loop has returned.
func (t *idleTask) waitQuit(ctx context.Context) error {
	if exited := t.looper.exited.Load(); exited != nil {
		select {
		case <-t.done:
			return t.err
		case <-*exited:
		case <-ctx.Done():
			return t.interrupted(ctx)
		}
	}
	select {
	case <-t.done:
		return t.err
	default:
	}
	t.looper.logger.Debug().
		Str(`looper`, t.looper.name).
		Log(`looper quit while waiting till idle`)
	return nil
}

func (t *idleTask) interrupted(ctx context.Context) error {
	t.looper.logger.Warning().
		Err(ctx.Err()).
		Str(`looper`, t.looper.name).
		Log(`wait till idle interrupted`)
	return nil
}
