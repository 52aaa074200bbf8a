package looper

import (
	"errors"
	"fmt"
)

// ErrIllegalState is wrapped by every error signalling misuse of the
// scheduling API. Such errors are returned synchronously, at the point of
// misuse, and are never deferred or swallowed.
var ErrIllegalState = errors.New("looper: illegal state")

// Standard errors.
var (
	// ErrQueueQuit is returned when sending a message to a looper that has quit.
	ErrQueueQuit = illegalState("sending message to a looper that has quit")

	// ErrMessageInUse is returned when inserting a message that is already
	// queued, or has already been consumed.
	ErrMessageInUse = illegalState("message is already in use")

	// ErrLooperExists is returned when preparing a second looper on a
	// goroutine that already has one.
	ErrLooperExists = illegalState("only one looper may be created per goroutine")

	// ErrMainLooperExists is returned when preparing a second main looper.
	ErrMainLooperExists = illegalState("the main looper has already been prepared")

	// ErrNoMainLooper is returned by operations requiring a main looper,
	// before one has been prepared.
	ErrNoMainLooper = illegalState("the main looper has not been prepared")

	// ErrMainLooperWrongThread is returned when idling the main looper from
	// any goroutine other than the one it is bound to.
	ErrMainLooperWrongThread = illegalState("main looper can only be idled from main thread")

	// ErrNotMainLooper is returned by Pause and RunPaused on any looper
	// other than the main looper.
	ErrNotMainLooper = illegalState("only the main looper can be paused")

	// ErrQuitNotAllowed is returned by Quit on a quit-disallowed looper.
	ErrQuitNotAllowed = illegalState("main thread not allowed to quit")

	// ErrNotLooperThread is returned when Loop is called from a goroutine
	// other than the one the looper is bound to.
	ErrNotLooperThread = illegalState("loop must be called from the looper's own goroutine")

	// ErrMainLooperLoop is returned when calling Loop on the main looper,
	// which is always paused.
	ErrMainLooperLoop = illegalState("the main looper is always paused and cannot loop")

	// ErrLoopRunning is returned when Loop is called re-entrantly.
	ErrLoopRunning = illegalState("loop is already running")

	// ErrRegistryClosed is returned when preparing a looper on a closed
	// registry.
	ErrRegistryClosed = illegalState("registry has been closed")
)

// ErrNilPayload is returned when inserting a message without a payload.
var ErrNilPayload = errors.New("looper: message has no payload")

func illegalState(msg string) error {
	return fmt.Errorf("%w: %s", ErrIllegalState, msg)
}

// PanicError wraps a panic recovered while dispatching a message.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("looper: message payload panicked: %v", e.Value)
}

// Unwrap returns the panic value if it is an error, enabling use with
// [errors.Is] and [errors.As].
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
