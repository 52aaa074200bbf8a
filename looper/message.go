package looper

import (
	"sync/atomic"
	"time"
)

// Message is one unit of deferred work, owned by a [Queue] from insertion
// until it is consumed.
//
// A message is consumed exactly once: either dispatched, or dropped by
// [Queue.Reset] or a quit. It is never dispatched twice, and may not be
// reinserted.
type Message struct {
	fn        func()
	when      time.Duration
	seq       uint64
	index     int
	// claimed is set by the first insert, and never cleared.
	claimed   atomic.Bool
	consumed  atomic.Bool
	immediate bool
}

// NewMessage returns a message due at the given clock uptime.
func NewMessage(when time.Duration, fn func()) *Message {
	return &Message{when: when, fn: fn, index: -1}
}

// NewImmediateMessage returns a message due at the clock's uptime at the
// moment it is inserted.
func NewImmediateMessage(fn func()) *Message {
	return &Message{fn: fn, immediate: true, index: -1}
}

// When returns the target uptime. For immediate messages it is only
// meaningful once inserted.
func (m *Message) When() time.Duration {
	return m.when
}

// IsConsumed reports whether the message was dispatched or dropped.
func (m *Message) IsConsumed() bool {
	return m.consumed.Load()
}

// dispatch runs the payload on the calling goroutine, then consumes the
// message, regardless of whether the payload panicked.
func (m *Message) dispatch() (err error) {
	fn := m.fn
	defer m.consume()
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	fn()
	return nil
}

// consume releases the payload. Consuming twice is a bug in this package.
func (m *Message) consume() {
	if m.consumed.Swap(true) {
		panic("looper: message consumed twice")
	}
	m.fn = nil
}
