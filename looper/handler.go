package looper

import (
	"math"
	"time"
)

// Handler posts work to a looper's queue.
type Handler struct {
	looper *Looper
}

// NewHandler returns a handler posting to l.
func NewHandler(l *Looper) *Handler {
	if l == nil {
		panic(`looper: nil looper`)
	}
	return &Handler{looper: l}
}

// Looper returns the looper the handler posts to.
func (h *Handler) Looper() *Looper { return h.looper }

// Post queues fn, due now.
func (h *Handler) Post(fn func()) error {
	return h.looper.queue.Insert(NewImmediateMessage(fn))
}

// PostDelayed queues fn, due once the clock has advanced by delay. Negative
// delays are treated as zero, and delays past the end of time saturate.
func (h *Handler) PostDelayed(fn func(), delay time.Duration) error {
	now := h.looper.clock.Now()
	when := time.Duration(math.MaxInt64)
	if delay = max(delay, 0); delay <= when-now {
		when = now + delay
	}
	return h.PostAtTime(fn, when)
}

// PostAtTime queues fn, due at the given uptime.
func (h *Handler) PostAtTime(fn func(), uptime time.Duration) error {
	return h.looper.queue.Insert(NewMessage(uptime, fn))
}

// PostAtFrontOfQueue queues fn ahead of all work that is already due.
func (h *Handler) PostAtFrontOfQueue(fn func()) error {
	return h.looper.queue.Insert(NewMessage(0, fn))
}
