package task

import "time"

// Host is the adapter to the embedding event loop. The runtime needs
// exactly two capabilities from it: deferring a thunk to the next loop
// iteration, and driving the loop until a condition holds.
//
// The loop package provides a reference implementation.
type Host interface {
	// Defer schedules fn to run on the next iteration of the host loop.
	// It must not run fn on the calling stack.
	Defer(fn func())

	// Poll drives the host loop, pumping callbacks, until done reports
	// true or the timeout elapses. A timeout <= 0 means no limit. The
	// return value is the final result of done.
	Poll(done func() bool, timeout time.Duration) bool
}
