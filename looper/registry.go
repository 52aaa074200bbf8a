package looper

import (
	"fmt"
	"slices"
	"sync"

	"github.com/joeycumines/logiface"

	"github.com/joeycumines/go-simlooper/internal/goid"
	"github.com/joeycumines/go-simlooper/vclock"
)

// Registry owns every looper created through it, the shared virtual clock,
// and at most one main looper. A test harness constructs one per test, and
// tears it down with [Registry.Reset] or [Registry.Close].
type Registry struct {
	// Prevent copying
	_ [0]func()

	clock  *vclock.Clock
	logger *logiface.Logger[logiface.Event]

	// byThread maps goroutine ids to the looper bound to them.
	byThread map[uint64]*Looper

	main *Looper

	// loopers is every registered looper, in creation order.
	loopers []*Looper

	mu sync.Mutex

	created uint64
	closed  bool
}

// NewRegistry constructs an empty registry.
func NewRegistry(opts ...Option) (*Registry, error) {
	cfg, err := resolveRegistryOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Registry{
		clock:    cfg.clock,
		logger:   cfg.logger,
		byThread: make(map[uint64]*Looper),
	}, nil
}

// Clock returns the virtual clock shared by the registry's loopers.
func (r *Registry) Clock() *vclock.Clock { return r.clock }

// Prepare creates a looper bound to the calling goroutine. Each goroutine may
// have at most one looper, otherwise [ErrLooperExists] is returned.
//
// The caller is expected to call [Looper.Loop], or dispatch via
// [Looper.Idle] from the same goroutine. See also [Registry.StartThread].
func (r *Registry) Prepare(opts ...LooperOption) (*Looper, error) {
	return r.prepare(false, opts)
}

// PrepareMainLooper creates the main looper, bound to the calling goroutine.
// The main looper is always paused, may not quit, and survives
// [Registry.Reset].
func (r *Registry) PrepareMainLooper(opts ...LooperOption) (*Looper, error) {
	return r.prepare(true, opts)
}

func (r *Registry) prepare(main bool, opts []LooperOption) (*Looper, error) {
	cfg, err := resolveLooperOptions(opts)
	if err != nil {
		return nil, err
	}
	quitAllowed := !main
	if !main && cfg.quitAllowed != nil {
		quitAllowed = *cfg.quitAllowed
	}

	thread := goid.Current()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRegistryClosed
	}
	if _, ok := r.byThread[thread]; ok {
		return nil, ErrLooperExists
	}
	if main && r.main != nil {
		return nil, ErrMainLooperExists
	}

	r.created++
	name := cfg.name
	if name == `` {
		if main {
			name = `main`
		} else {
			name = fmt.Sprintf(`looper-%d`, r.created)
		}
	}

	l := newLooper(r, thread, name, main, quitAllowed)
	r.byThread[thread] = l
	r.loopers = append(r.loopers, l)
	if main {
		r.main = l
	}

	r.logger.Debug().
		Str(`looper`, name).
		Bool(`main`, main).
		Bool(`quit_allowed`, quitAllowed).
		Uint64(`goroutine`, thread).
		Log(`looper prepared`)

	return l, nil
}

// MainLooper returns the main looper, or nil if it has not been prepared.
func (r *Registry) MainLooper() *Looper {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.main
}

// MyLooper returns the looper bound to the calling goroutine, or nil.
func (r *Registry) MyLooper() *Looper {
	thread := goid.Current()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byThread[thread]
}

// BindMainThread rebinds the main looper to the calling goroutine, for when
// the goroutine driving the tests changes, e.g. between subtests. It fails if
// the calling goroutine already has a different looper.
func (r *Registry) BindMainThread() error {
	thread := goid.Current()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.main == nil {
		return ErrNoMainLooper
	}
	if l, ok := r.byThread[thread]; ok {
		if l == r.main {
			return nil
		}
		return ErrLooperExists
	}
	delete(r.byThread, r.main.thread.Load())
	r.main.thread.Store(thread)
	r.byThread[thread] = r.main
	return nil
}

// IsMainLooperIdle reports whether the main looper has no due work, or true
// if there is no main looper.
func (r *Registry) IsMainLooperIdle() bool {
	if l := r.MainLooper(); l != nil {
		return l.IsIdle()
	}
	return true
}

// Loopers returns every registered looper, in creation order.
func (r *Registry) Loopers() []*Looper {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.loopers)
}

// Len returns the number of registered loopers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.loopers)
}

// Reset tears down the registry between tests. Quit-allowed loopers are quit
// and forgotten, and their goroutines exit. Quit-disallowed loopers, like the
// main looper, stay registered, but have all pending work dropped, without
// dispatching it (see [Queue.Reset]).
//
// Reset is idempotent, and does not wait for looper goroutines to exit.
func (r *Registry) Reset() {
	for _, l := range r.Loopers() {
		if l.queue.quitAllowed {
			l.quit()
			r.remove(l)
			continue
		}
		if n := l.queue.Reset(); n != 0 {
			r.logger.Debug().
				Str(`looper`, l.name).
				Int(`dropped`, n).
				Log(`dropped pending messages on reset`)
		}
	}
}

// Close resets the registry, then forcibly quits every remaining looper,
// including the main looper. Subsequent calls to Prepare fail with
// [ErrRegistryClosed].
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.Reset()

	for _, l := range r.Loopers() {
		l.quit()
		r.remove(l)
	}
}

func (r *Registry) remove(l *Looper) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loopers = slices.DeleteFunc(r.loopers, func(v *Looper) bool { return v == l })
	if thread := l.thread.Load(); r.byThread[thread] == l {
		delete(r.byThread, thread)
	}
	if r.main == l {
		r.main = nil
	}
}
