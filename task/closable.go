package task

// Closable is an externally-owned resource the runtime may cancel. A
// builder passed to AwaitFunc may return one; the runtime then holds it
// as the task's current await until the task resumes.
//
// Close requests the resource to stop and to invoke onClosed (which may
// be nil) once it has. Close must tolerate being called after the
// resource's own callback already fired, and must be safe to call more
// than once.
type Closable interface {
	Close(onClosed func())
}

// closingReporter is the optional half of the closable protocol. A
// handle that does not implement it is treated as never closing.
type closingReporter interface {
	IsClosing() bool
}

func handleClosing(c Closable) bool {
	if r, ok := c.(closingReporter); ok {
		return r.IsClosing()
	}
	return false
}

// Callback resolves a suspended await with a value or an error. It must
// be invoked at most once; extra invocations are ignored by the runtime.
type Callback func(v any, err error)

// Builder starts a callback-style operation. It receives the resume
// callback for the suspension and may return a Closable the runtime can
// cancel, or nil.
type Builder func(cb Callback) Closable

// Wrap turns a builder into a reusable awaitable function, so a
// callback-style API can be called like a plain blocking one from inside
// a task body.
func Wrap(build Builder) func(co *Coro) (any, error) {
	return func(co *Coro) (any, error) {
		return co.AwaitFunc(build)
	}
}
