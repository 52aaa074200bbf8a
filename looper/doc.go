// Package looper simulates thread-bound message loops on a shared virtual
// clock, for deterministic tests.
//
// Each [Looper] owns a [Queue] of messages ordered by target uptime, and is
// bound to one goroutine, on which all of its work is dispatched. Virtual
// time, provided by a [vclock.Clock] shared through a [Registry], only moves
// when the test says so, e.g. via [Looper.IdleFor].
//
// The main looper is always paused: work posted to it only runs when the
// test idles it, from the goroutine it is bound to. Other loopers, typically
// started with [Registry.StartThread], dispatch due work as it arrives, and
// may be idled from any goroutine, in which case the caller blocks until the
// looper's own goroutine has drained its queue.
//
// Basic usage:
//
//	r, _ := looper.NewRegistry()
//	defer r.Close()
//	main, _ := r.PrepareMainLooper()
//	h := looper.NewHandler(main)
//	_ = h.PostDelayed(func() { fmt.Println("tick") }, time.Second)
//	_ = main.IdleFor(time.Second) // prints "tick"
package looper
