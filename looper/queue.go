package looper

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/joeycumines/go-simlooper/vclock"
)

// Queue is the ordered set of pending messages owned by one [Looper].
//
// Messages are ordered by target uptime, then by insertion order. A message
// is due once its target uptime is at or before the clock's now. All methods
// are safe for concurrent use.
type Queue struct {
	// Prevent copying
	_ [0]func()

	clock vclock.Source

	// wake holds at most one pending wake-up for a blocked next call.
	wake chan struct{}

	// done is closed on quit.
	done chan struct{}

	pending messageHeap
	seq     uint64
	mu      sync.Mutex

	quitAllowed bool
	quitting    bool
}

func newQueue(clock vclock.Source, quitAllowed bool) *Queue {
	return &Queue{
		clock:       clock,
		quitAllowed: quitAllowed,
		wake:        make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
}

// Insert adds a message, releasing the owning goroutine if it is blocked
// waiting for work. Inserting after quit fails with [ErrQueueQuit].
func (q *Queue) Insert(m *Message) error {
	if m == nil {
		return ErrNilPayload
	}
	// messages belong to whoever claims them first, and are never reused
	if !m.claimed.CompareAndSwap(false, true) {
		return ErrMessageInUse
	}
	if m.fn == nil {
		m.claimed.Store(false)
		return ErrNilPayload
	}

	q.mu.Lock()
	if q.quitting {
		q.mu.Unlock()
		m.claimed.Store(false)
		return ErrQueueQuit
	}
	if m.immediate {
		m.when = q.clock.Now()
	}
	q.seq++
	m.seq = q.seq
	heap.Push(&q.pending, m)
	q.mu.Unlock()

	q.signal()
	return nil
}

// NextDue removes and returns the earliest message due at now, or nil if
// there is none. It never blocks.
func (q *Queue) NextDue(now time.Duration) *Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popDueLocked(now)
}

// IsIdle reports whether no pending message is due, irrespective of any
// scheduled in the future.
func (q *Queue) IsIdle() bool {
	now := q.clock.Now()
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) == 0 || q.pending[0].when > now
}

// NextScheduledTime returns the earliest target uptime among all pending
// messages. The boolean is false if the queue is empty.
func (q *Queue) NextScheduledTime() (time.Duration, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return 0, false
	}
	return q.pending[0].when, true
}

// LastScheduledTime returns the latest target uptime among all pending
// messages. The boolean is false if the queue is empty.
func (q *Queue) LastScheduledTime() (time.Duration, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return 0, false
	}
	last := q.pending[0].when
	for _, m := range q.pending[1:] {
		last = max(last, m.when)
	}
	return last, true
}

// Len returns the number of pending messages, due or not.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// IsQuitAllowed reports whether the owning looper may be quit.
func (q *Queue) IsQuitAllowed() bool {
	return q.quitAllowed
}

// IsQuitting reports whether the queue has quit.
func (q *Queue) IsQuitting() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.quitting
}

// Reset drops every pending message without dispatching it, returning the
// number dropped. The queue stays usable.
//
// Dropped work is gone: anything it would have done, including assertions,
// never happens. Registry.Reset relies on this to stop work posted by one
// test from running in the next.
func (q *Queue) Reset() int {
	q.mu.Lock()
	dropped := q.takeAllLocked()
	q.mu.Unlock()
	for _, m := range dropped {
		m.consume()
	}
	return len(dropped)
}

// quit closes the queue, dropping any pending messages. It reports false if
// the queue had already quit.
func (q *Queue) quit() bool {
	q.mu.Lock()
	if q.quitting {
		q.mu.Unlock()
		return false
	}
	q.quitting = true
	close(q.done)
	dropped := q.takeAllLocked()
	q.mu.Unlock()
	for _, m := range dropped {
		m.consume()
	}
	return true
}

// next blocks until a message is due, returning it. It fails with
// ErrQueueQuit once the queue quits, or with the context's error.
//
// Only insertion wakes a blocked next: advancing the clock does not, so work
// that became due purely by the passage of virtual time is picked up on the
// next insertion, which Looper.Idle always performs for non-main loopers.
func (q *Queue) next(ctx context.Context) (*Message, error) {
	for {
		q.mu.Lock()
		if q.quitting {
			q.mu.Unlock()
			return nil, ErrQueueQuit
		}
		m := q.popDueLocked(q.clock.Now())
		q.mu.Unlock()
		if m != nil {
			return m, nil
		}

		select {
		case <-q.wake:
		case <-q.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) popDueLocked(now time.Duration) *Message {
	if len(q.pending) == 0 || q.pending[0].when > now {
		return nil
	}
	return heap.Pop(&q.pending).(*Message)
}

func (q *Queue) takeAllLocked() messageHeap {
	dropped := q.pending
	q.pending = nil
	for _, m := range dropped {
		m.index = -1
	}
	return dropped
}

// messageHeap is a min-heap of messages, ordered by (when, seq).
type messageHeap []*Message

func (h messageHeap) Len() int { return len(h) }

func (h messageHeap) Less(i, j int) bool {
	if h[i].when != h[j].when {
		return h[i].when < h[j].when
	}
	return h[i].seq < h[j].seq
}

func (h messageHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *messageHeap) Push(x any) {
	m := x.(*Message)
	m.index = len(*h)
	*h = append(*h, m)
}

func (h *messageHeap) Pop() any {
	old := *h
	n := len(old)
	m := old[n-1]
	old[n-1] = nil
	m.index = -1
	*h = old[:n-1]
	return m
}
