// Package loopertest wires a fresh virtual clock, looper registry and main
// looper into a test.
package loopertest

import (
	"testing"
	"time"

	"github.com/joeycumines/go-simlooper/looper"
	"github.com/joeycumines/go-simlooper/vclock"
)

// Env is the scheduling environment of a single test.
type Env struct {
	Clock    *vclock.Clock
	Registry *looper.Registry
	// Main is bound to the goroutine that called New.
	Main *looper.Looper
}

// New constructs an Env for t, closing it on cleanup. Any options are passed
// to looper.NewRegistry, after a fresh clock, which they may override.
func New(t testing.TB, opts ...looper.Option) *Env {
	t.Helper()

	clock := vclock.New()
	r, err := looper.NewRegistry(append([]looper.Option{looper.WithClock(clock)}, opts...)...)
	if err != nil {
		t.Fatalf("loopertest: new registry: %v", err)
	}
	t.Cleanup(r.Close)

	main, err := r.PrepareMainLooper()
	if err != nil {
		t.Fatalf("loopertest: prepare main looper: %v", err)
	}

	return &Env{
		Clock:    r.Clock(),
		Registry: r,
		Main:     main,
	}
}

// StartThread starts a looper thread, failing t on error, and waits for it to
// exit on cleanup.
func (x *Env) StartThread(t testing.TB, name string, opts ...looper.LooperOption) *looper.Thread {
	t.Helper()
	th, err := x.Registry.StartThread(name, opts...)
	if err != nil {
		t.Fatalf("loopertest: start thread %q: %v", name, err)
	}
	t.Cleanup(func() {
		x.Registry.Close()
		<-th.Done()
	})
	return th
}

// IdleFor idles the main looper for d, failing t on error.
func (x *Env) IdleFor(t testing.TB, d time.Duration) {
	t.Helper()
	if err := x.Main.IdleFor(d); err != nil {
		t.Fatalf("loopertest: idle for %s: %v", d, err)
	}
}

// Idle idles l, failing t on error.
func Idle(t testing.TB, l *looper.Looper) {
	t.Helper()
	if err := l.Idle(); err != nil {
		t.Fatalf("loopertest: idle %s: %v", l.Name(), err)
	}
}
