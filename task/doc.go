// Package task provides a structured-concurrency runtime for composing
// non-blocking operations over a single-threaded host loop. Tasks own the
// child tasks they spawn, errors propagate up the tree, cancellation
// propagates down, and externally-owned resources are released through
// the closable handle protocol.
package task
