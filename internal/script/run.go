package script

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/joeycumines/go-simlooper/looper"
	"github.com/joeycumines/go-simlooper/vclock"
	"github.com/joeycumines/logiface"
)

// Event records a single dispatch.
type Event struct {
	Looper string
	Label  string
	// At is the clock uptime at dispatch.
	At time.Duration
}

// Option configures Run.
type Option interface {
	applyRun(*runOptions) error
}

type runOptions struct {
	logger *logiface.Logger[logiface.Event]
	clock  *vclock.Clock
}

type runOptionFunc func(*runOptions) error

func (f runOptionFunc) applyRun(opts *runOptions) error { return f(opts) }

// WithLogger sets the logger passed to the looper registry.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return runOptionFunc(func(opts *runOptions) error {
		opts.logger = logger
		return nil
	})
}

// WithClock sets the clock the scenario runs against, defaulting to a new
// clock, starting at zero.
func WithClock(clock *vclock.Clock) Option {
	return runOptionFunc(func(opts *runOptions) error {
		if clock == nil {
			return errors.New("script: nil clock")
		}
		opts.clock = clock
		return nil
	})
}

type runner struct {
	registry *looper.Registry
	workers  []*looper.Thread

	// guarded by mu
	loopers map[string]*looper.Looper
	events  []Event
	err     error
	mu      sync.Mutex
}

// Run runs the scenario against a fresh registry, returning the dispatch
// trace. The calling goroutine becomes the main looper's thread, for the
// duration of the call.
//
// Worker loopers dispatch freely, so after every step, Run waits for each
// (still running) worker to be idle. Within a step, the events of different
// loopers may interleave in any order, but the trace is sorted per step by
// looper declaration order, keeping it deterministic.
func (x *Scenario) Run(ctx context.Context, opts ...Option) ([]Event, error) {
	var cfg runOptions
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyRun(&cfg); err != nil {
			return nil, err
		}
	}
	if cfg.clock == nil {
		cfg.clock = vclock.New()
	}

	registry, err := looper.NewRegistry(looper.WithClock(cfg.clock), looper.WithLogger(cfg.logger))
	if err != nil {
		return nil, err
	}
	defer registry.Close()

	r := &runner{
		registry: registry,
		loopers:  make(map[string]*looper.Looper, len(x.Threads)+1),
	}

	main, err := registry.PrepareMainLooper(looper.WithName(MainLooper))
	if err != nil {
		return nil, err
	}
	r.loopers[MainLooper] = main

	for _, name := range x.Threads {
		th, err := registry.StartThread(name)
		if err != nil {
			return nil, fmt.Errorf("script: start thread %q: %w", name, err)
		}
		r.workers = append(r.workers, th)
		r.loopers[name] = th.Looper()
	}

	order := append([]string{MainLooper}, x.Threads...)
	for i, step := range x.Steps {
		start := len(r.snapshot())
		if err := r.step(ctx, &step); err != nil {
			return r.snapshot(), fmt.Errorf("script: step %d: %w", i+1, err)
		}
		if err := r.settle(ctx); err != nil {
			return r.snapshot(), fmt.Errorf("script: step %d: %w", i+1, err)
		}
		r.sortFrom(start, order)
		if err := r.failed(); err != nil {
			return r.snapshot(), fmt.Errorf("script: step %d: %w", i+1, err)
		}
	}

	return r.snapshot(), nil
}

func (x *runner) step(ctx context.Context, step *Step) error {
	switch {
	case step.Post != nil:
		return x.post(step.Post)
	case step.Advance != nil:
		return x.registry.Clock().AdvanceBy(*step.Advance)
	case step.IdleFor != nil:
		l, err := x.looper(step.IdleFor.Looper)
		if err != nil {
			return err
		}
		if l.IsMain() {
			return l.IdleFor(step.IdleFor.Duration)
		}
		if err := x.registry.Clock().AdvanceBy(step.IdleFor.Duration); err != nil {
			return err
		}
		return l.IdleContext(ctx)
	case step.Idle != ``:
		l, err := x.looper(step.Idle)
		if err != nil {
			return err
		}
		return l.IdleContext(ctx)
	case step.Reset:
		x.registry.Reset()
		x.mu.Lock()
		defer x.mu.Unlock()
		for name, l := range x.loopers {
			if l.Queue().IsQuitting() {
				delete(x.loopers, name)
			}
		}
		return nil
	default:
		return errors.New("no action")
	}
}

func (x *runner) post(p *Post) error {
	l, err := x.looper(p.Looper)
	if err != nil {
		return err
	}
	name := l.Name()
	return looper.NewHandler(l).PostDelayed(func() {
		x.mu.Lock()
		x.events = append(x.events, Event{
			Looper: name,
			Label:  p.Label,
			At:     x.registry.Clock().Now(),
		})
		x.mu.Unlock()
		for i := range p.Then {
			if err := x.post(&p.Then[i]); err != nil {
				x.fail(fmt.Errorf("post %q: %w", p.Then[i].Label, err))
			}
		}
	}, p.Delay)
}

// settle waits for every running worker to be idle.
func (x *runner) settle(ctx context.Context) error {
	for _, th := range x.workers {
		l := th.Looper()
		if l.Queue().IsQuitting() {
			continue
		}
		if err := l.IdleContext(ctx); err != nil && !errors.Is(err, looper.ErrQueueQuit) {
			return fmt.Errorf("settle %s: %w", l.Name(), err)
		}
	}
	return nil
}

func (x *runner) looper(name string) (*looper.Looper, error) {
	if name == `` {
		name = MainLooper
	}
	x.mu.Lock()
	l, ok := x.loopers[name]
	x.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("looper %q is not running", name)
	}
	return l, nil
}

func (x *runner) fail(err error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.err == nil {
		x.err = err
	}
}

func (x *runner) failed() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.err
}

func (x *runner) snapshot() []Event {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]Event(nil), x.events...)
}

// sortFrom stably orders the events since start by looper, in order.
func (x *runner) sortFrom(start int, order []string) {
	rank := make(map[string]int, len(order))
	for i, name := range order {
		rank[name] = i
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	slices.SortStableFunc(x.events[start:], func(a, b Event) int {
		return cmp.Compare(rank[a.Looper], rank[b.Looper])
	})
}

// Format writes events as lines of uptime, looper and label.
func Format(w io.Writer, events []Event) error {
	for _, e := range events {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\n", e.At, e.Looper, e.Label); err != nil {
			return err
		}
	}
	return nil
}
