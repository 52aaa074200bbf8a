package looper

import (
	"context"
)

// Thread is a goroutine running a looper, created by
// [Registry.StartThread].
type Thread struct {
	looper *Looper
	err    error
	done   chan struct{}
}

// StartThread starts a goroutine, prepares a quit-allowed (by default)
// looper on it, and loops until the looper quits. It returns once the looper
// is ready to accept work.
func (r *Registry) StartThread(name string, opts ...LooperOption) (*Thread, error) {
	opts = append(opts[:len(opts):len(opts)], WithName(name))
	t := &Thread{done: make(chan struct{})}
	ready := make(chan error, 1)

	go func() {
		defer close(t.done)
		l, err := r.Prepare(opts...)
		if err != nil {
			ready <- err
			return
		}
		t.looper = l
		ready <- nil
		t.err = l.Loop(context.Background())
	}()

	if err := <-ready; err != nil {
		<-t.done
		return nil, err
	}
	return t, nil
}

// Looper returns the thread's looper.
func (t *Thread) Looper() *Looper { return t.looper }

// Quit quits the thread's looper. See [Looper.Quit].
func (t *Thread) Quit() error { return t.looper.Quit() }

// Done is closed once the thread's goroutine has exited.
func (t *Thread) Done() <-chan struct{} { return t.done }

// Err returns the error Loop exited with, only valid after Done is closed.
func (t *Thread) Err() error { return t.err }
