// Package goid resolves the runtime id of the calling goroutine.
//
// Loopers use it as their "thread" identity: a looper is bound to the
// goroutine that prepared it, and several operations behave differently
// depending on whether they are called from that goroutine.
package goid

import (
	"runtime"
)

// Current returns the id of the calling goroutine, or 0 if the stack header
// could not be parsed (which should never happen).
func Current() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parse(buf[:n])
}

// parse extracts the id from a stack header of the form
// "goroutine 123 [running]:".
func parse(b []byte) uint64 {
	const prefix = "goroutine "
	if len(b) < len(prefix) || string(b[:len(prefix)]) != prefix {
		return 0
	}
	var id uint64
	for _, c := range b[len(prefix):] {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + uint64(c-'0')
	}
	return id
}
