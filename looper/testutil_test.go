package looper

import (
	"bytes"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a bytes.Buffer safe for concurrent writes, e.g. from looper
// goroutines.
type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (x *syncBuffer) Write(p []byte) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.b.Write(p)
}

func (x *syncBuffer) String() string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.b.String()
}

func newTestLogger(w io.Writer) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w), stumpy.WithTimeField(``)),
		stumpy.L.WithLevel(logiface.LevelDebug),
	).Logger()
}

func newTestRegistry(t *testing.T, opts ...Option) *Registry {
	t.Helper()
	r, err := NewRegistry(opts...)
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r
}

func newTestMain(t *testing.T, opts ...Option) (*Registry, *Looper) {
	t.Helper()
	r := newTestRegistry(t, opts...)
	main, err := r.PrepareMainLooper()
	require.NoError(t, err)
	return r, main
}

func startTestThread(t *testing.T, r *Registry, name string, opts ...LooperOption) *Thread {
	t.Helper()
	th, err := r.StartThread(name, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		th.looper.quit()
		select {
		case <-th.Done():
		case <-time.After(5 * time.Second):
			t.Errorf("thread %s did not exit", name)
		}
	})
	return th
}

// onGoroutine runs fn on a new goroutine, and waits for it.
func onGoroutine(fn func()) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	<-done
}

// prepareOnGoroutine prepares a looper bound to a goroutine that has
// already exited, which is enough to exercise cross-goroutine behavior that
// does not need the looper to be looping.
func prepareOnGoroutine(t *testing.T, r *Registry, opts ...LooperOption) *Looper {
	t.Helper()
	var (
		l   *Looper
		err error
	)
	onGoroutine(func() { l, err = r.Prepare(opts...) })
	require.NoError(t, err)
	return l
}

// recorder collects labels, from any goroutine.
type recorder struct {
	mu     sync.Mutex
	labels []string
}

func (x *recorder) add(label string) func() {
	return func() {
		x.mu.Lock()
		defer x.mu.Unlock()
		x.labels = append(x.labels, label)
	}
}

func (x *recorder) get() []string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]string(nil), x.labels...)
}
