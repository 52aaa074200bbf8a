package looper

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdle_mainLooperDrainsInPlace(t *testing.T) {
	_, main := newTestMain(t)
	h := NewHandler(main)
	var rec recorder

	require.NoError(t, h.Post(rec.add(`a`)))
	require.NoError(t, h.Post(func() {
		rec.add(`b`)()
		// posted while draining, and due immediately
		require.NoError(t, h.Post(rec.add(`c`)))
		require.NoError(t, h.PostDelayed(rec.add(`later`), time.Second))
	}))

	assert.False(t, main.IsIdle())
	assert.Empty(t, rec.get(), `the main looper is always paused`)

	require.NoError(t, main.Idle())
	assert.Equal(t, []string{`a`, `b`, `c`}, rec.get())
	assert.True(t, main.IsIdle())
	assert.Equal(t, 1, main.Queue().Len())

	next, ok := main.NextScheduledTaskTime()
	require.True(t, ok)
	assert.Equal(t, time.Second, next)
}

func TestIdleFor_dispatchesExactlyDueWork(t *testing.T) {
	r, main := newTestMain(t)
	h := NewHandler(main)
	var rec recorder

	for _, d := range []time.Duration{300, 100, 200, 101, 100} {
		require.NoError(t, h.PostDelayed(rec.add(fmt.Sprint(int64(d))), d*time.Millisecond))
	}
	last, ok := main.LastScheduledTaskTime()
	require.True(t, ok)
	assert.Equal(t, 300*time.Millisecond, last)

	require.NoError(t, main.IdleFor(100*time.Millisecond))
	assert.Equal(t, []string{`100`, `100`}, rec.get())
	assert.True(t, main.IsIdle())

	require.NoError(t, main.IdleFor(100*time.Millisecond))
	assert.Equal(t, []string{`100`, `100`, `101`, `200`}, rec.get())

	require.NoError(t, main.IdleFor(0))
	assert.Len(t, rec.get(), 4)

	require.NoError(t, main.IdleFor(time.Hour))
	assert.Equal(t, []string{`100`, `100`, `101`, `200`, `300`}, rec.get())
	assert.Equal(t, time.Hour+200*time.Millisecond, r.Clock().Now())

	_, ok = main.NextScheduledTaskTime()
	assert.False(t, ok)
}

func TestIdleFor_negative(t *testing.T) {
	r, main := newTestMain(t)
	assert.Error(t, main.IdleFor(-time.Millisecond))
	assert.Equal(t, time.Duration(0), r.Clock().Now())
}

func TestIdle_convergence(t *testing.T) {
	r, main := newTestMain(t)
	h := NewHandler(main)
	require.NoError(t, h.PostDelayed(func() {}, time.Second))
	require.NoError(t, main.Idle())
	assert.True(t, main.IsIdle())

	require.NoError(t, r.Clock().AdvanceBy(999*time.Millisecond))
	assert.True(t, main.IsIdle())
	require.NoError(t, r.Clock().AdvanceBy(time.Millisecond))
	assert.False(t, main.IsIdle(), `the clock passed a previously future message`)
	require.NoError(t, main.Idle())
	assert.True(t, main.IsIdle())
}

func TestIdle_mainLooperFromOtherGoroutine(t *testing.T) {
	r, main := newTestMain(t)
	require.NoError(t, NewHandler(main).Post(func() { t.Error(`dispatched off the main goroutine`) }))

	onGoroutine(func() {
		err := main.Idle()
		assert.ErrorIs(t, err, ErrMainLooperWrongThread)
		assert.ErrorIs(t, err, ErrIllegalState)
		assert.EqualError(t, err, `looper: illegal state: main looper can only be idled from main thread`)
		assert.ErrorIs(t, main.IdleFor(time.Second), ErrMainLooperWrongThread)
	})

	assert.Equal(t, time.Duration(0), r.Clock().Now(), `a rejected IdleFor must not advance the clock`)
	assert.Equal(t, 1, main.Queue().Len())
	r.Reset()
}

func TestIdle_crossGoroutine(t *testing.T) {
	r := newTestRegistry(t)
	th := startTestThread(t, r, `worker`)
	l := th.Looper()
	h := NewHandler(l)

	// hold the worker, so nothing it has queued can run before Idle
	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, h.Post(func() {
		close(started)
		<-release
	}))
	<-started

	var fired int
	require.NoError(t, h.Post(func() {
		if !l.IsCurrentThread() {
			t.Error(`dispatched off the worker goroutine`)
		}
		fired++
	}))
	assert.Zero(t, fired)
	assert.False(t, l.IsIdle())

	close(release)
	idled := make(chan error, 1)
	go func() { idled <- l.Idle() }()
	select {
	case err := <-idled:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal(`idle did not complete`)
	}

	// Idle returning publishes everything the worker did while draining
	assert.Equal(t, 1, fired)
	assert.True(t, l.IsIdle())
}

func TestIdleFor_crossGoroutine(t *testing.T) {
	r := newTestRegistry(t)
	th := startTestThread(t, r, `worker`)
	l := th.Looper()
	h := NewHandler(l)
	var rec recorder

	require.NoError(t, h.PostDelayed(rec.add(`b`), 20*time.Millisecond))
	require.NoError(t, h.PostDelayed(rec.add(`a`), 10*time.Millisecond))
	require.NoError(t, h.PostDelayed(rec.add(`c`), 30*time.Millisecond))

	require.NoError(t, l.Idle())
	assert.Empty(t, rec.get())

	require.NoError(t, l.IdleFor(20*time.Millisecond))
	assert.Equal(t, []string{`a`, `b`}, rec.get())

	require.NoError(t, l.IdleFor(10*time.Millisecond))
	assert.Equal(t, []string{`a`, `b`, `c`}, rec.get())
}

// postScript posts the same pattern of work, including work posted from
// within dispatched work, and returns the dispatch order once idled.
func postScript(t *testing.T, l *Looper, idle func() error) []string {
	t.Helper()
	h := NewHandler(l)
	var rec recorder
	for i := range 5 {
		label := fmt.Sprintf(`m%d`, i)
		require.NoError(t, h.PostDelayed(func() {
			rec.add(label)()
			_ = h.Post(rec.add(label + `.child`))
			_ = h.PostAtFrontOfQueue(rec.add(label + `.front`))
		}, time.Duration(5-i%3)*time.Millisecond))
	}
	require.NoError(t, l.Clock().AdvanceBy(5*time.Millisecond))
	require.NoError(t, idle())
	assert.True(t, l.IsIdle())
	return rec.get()
}

func TestIdle_crossGoroutineEquivalence(t *testing.T) {
	_, main := newTestMain(t)
	same := postScript(t, main, main.Idle)

	r := newTestRegistry(t)
	th := startTestThread(t, r, `worker`)
	l := th.Looper()

	// keep the worker busy while posting, so it also only dispatches via Idle
	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, NewHandler(l).Post(func() {
		close(started)
		<-release
	}))
	<-started
	cross := postScript(t, l, func() error {
		close(release)
		return l.Idle()
	})

	assert.Len(t, same, 15)
	assert.Equal(t, same, cross)
}

func TestIdle_panicPropagates(t *testing.T) {
	_, main := newTestMain(t)
	h := NewHandler(main)
	var rec recorder
	require.NoError(t, h.Post(rec.add(`a`)))
	require.NoError(t, h.Post(func() { panic(`boom`) }))
	require.NoError(t, h.Post(rec.add(`b`)))

	var pe *PanicError
	require.ErrorAs(t, main.Idle(), &pe)
	assert.Equal(t, `boom`, pe.Value)
	assert.Equal(t, []string{`a`}, rec.get())

	require.NoError(t, main.Idle())
	assert.Equal(t, []string{`a`, `b`}, rec.get())
}

func TestIdle_panicPropagatesCrossGoroutine(t *testing.T) {
	r := newTestRegistry(t)
	th := startTestThread(t, r, `worker`)
	l := th.Looper()
	h := NewHandler(l)

	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, h.Post(func() {
		close(started)
		<-release
	}))
	<-started

	// queued ahead of the drain task, this posts the panicking message behind
	// it, so the drain task is what dispatches it
	require.NoError(t, h.Post(func() {
		_ = h.Post(func() { panic(`nested`) })
	}))
	idled := make(chan error, 1)
	go func() { idled <- l.Idle() }()
	require.Eventually(t, func() bool { return l.Queue().Len() == 2 }, 5*time.Second, time.Millisecond)
	close(release)

	select {
	case err := <-idled:
		var pe *PanicError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, `nested`, pe.Value)
	case <-time.After(5 * time.Second):
		t.Fatal(`idle did not complete`)
	}
}

func TestIdleContext_interrupted(t *testing.T) {
	var logs syncBuffer
	r := newTestRegistry(t, WithLogger(newTestLogger(&logs)))
	th := startTestThread(t, r, `worker`)
	l := th.Looper()
	h := NewHandler(l)

	release := make(chan struct{})
	require.NoError(t, h.Post(func() { <-release }))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.NoError(t, l.IdleContext(ctx), `an interrupted wait is not an error`)
	assert.Contains(t, logs.String(), `"lvl":"warning"`)
	assert.Contains(t, logs.String(), `"msg":"wait till idle interrupted"`)
	assert.Contains(t, logs.String(), `"looper":"worker"`)

	close(release)
	require.NoError(t, l.Idle())
}

func TestIdle_releasedByQuitOnceDispatchReturns(t *testing.T) {
	r := newTestRegistry(t)
	th := startTestThread(t, r, `worker`)
	l := th.Looper()

	var finished atomic.Bool
	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, NewHandler(l).PostDelayed(func() {
		close(started)
		<-release
		finished.Store(true)
	}, time.Second))

	idled := make(chan error, 1)
	go func() { idled <- l.IdleFor(time.Second) }()
	<-started
	require.Eventually(t, func() bool { return l.Queue().Len() == 1 }, 5*time.Second, time.Millisecond)

	// drops the drain task, while the payload is still running
	r.Reset()

	select {
	case err := <-idled:
		t.Fatalf(`idle returned while the worker was dispatching: %v`, err)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-idled:
		assert.NoError(t, err)
		assert.True(t, finished.Load())
	case <-time.After(5 * time.Second):
		t.Fatal(`idle was not released by quit`)
	}
	<-th.Done()
	assert.ErrorIs(t, l.Idle(), ErrQueueQuit)
}

func TestIdleContext_interruptedAfterQuit(t *testing.T) {
	var buf syncBuffer
	r := newTestRegistry(t, WithLogger(newTestLogger(&buf)))
	th := startTestThread(t, r, `worker`)
	l := th.Looper()

	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	require.NoError(t, NewHandler(l).Post(func() {
		close(started)
		<-release
	}))
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	idled := make(chan error, 1)
	go func() { idled <- l.IdleContext(ctx) }()
	require.Eventually(t, func() bool { return l.Queue().Len() == 1 }, 5*time.Second, time.Millisecond)
	r.Reset()
	cancel()

	select {
	case err := <-idled:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal(`idle was not released by its context`)
	}
	assert.Contains(t, buf.String(), `"msg":"wait till idle interrupted"`)
}

func TestRunPausedAndPause(t *testing.T) {
	r, main := newTestMain(t)
	assert.NoError(t, main.Pause())

	var rec recorder
	h := NewHandler(main)
	require.NoError(t, main.RunPaused(func() {
		rec.add(`inline`)()
		require.NoError(t, h.Post(rec.add(`posted`)))
		assert.Equal(t, []string{`inline`}, rec.get())
	}))
	assert.Equal(t, []string{`inline`, `posted`}, rec.get())
	require.NoError(t, main.IdleIfPaused())

	th := startTestThread(t, r, `worker`)
	assert.ErrorIs(t, th.Looper().Pause(), ErrNotMainLooper)
	err := th.Looper().RunPaused(func() { t.Error(`ran`) })
	assert.ErrorIs(t, err, ErrNotMainLooper)
	assert.EqualError(t, err, `looper: illegal state: only the main looper can be paused`)
}
