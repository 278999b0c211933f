package task

import "runtime/debug"

// Body is the function a task executes. It runs on the task's own
// coroutine and may suspend through the Coro await methods.
type Body func(co *Coro) (any, error)

// resumeMsg is what the scheduler feeds into a suspended coroutine.
type resumeMsg struct {
	value any
	err   error
}

// yieldMsg is what the coroutine hands back to the scheduler: either a
// suspension request carrying a builder, or the terminal result.
type yieldMsg struct {
	done  bool
	build Builder
	value any
	err   error
}

// coro is the yield/resume bridge between a task body and the scheduler.
// It is a goroutine whose execution strictly alternates with its
// resumer's: exactly one side runs at a time, handing off through
// unbuffered channels.
type coro struct {
	in  chan resumeMsg
	out chan yieldMsg
}

func startCoro(co *Coro, body Body) *coro {
	c := &coro{
		in:  make(chan resumeMsg),
		out: make(chan yieldMsg),
	}
	go func() {
		<-c.in // parked until the first step
		var v any
		var err error
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = &PanicError{Value: r, Stack: debug.Stack()}
				}
			}()
			v, err = body(co)
		}()
		c.out <- yieldMsg{done: true, value: v, err: err}
	}()
	return c
}

// resume runs the coroutine until its next suspension or until it dies.
// Called from the scheduler side only.
func (c *coro) resume(m resumeMsg) yieldMsg {
	c.in <- m
	return <-c.out
}

// yield suspends the coroutine with a suspension request. Called from
// the body side only, via the Coro await methods.
func (c *coro) yield(build Builder) (any, error) {
	c.out <- yieldMsg{build: build}
	m := <-c.in
	return m.value, m.err
}

// Coro is the in-body handle of a running task. A body receives its Coro
// as its argument; all suspension happens through its methods. A Coro
// must only be used by the body it was passed to, while that body is the
// running task.
type Coro struct {
	t *Task
}

// Task returns the task this coroutine belongs to.
func (co *Coro) Task() *Task { return co.t }

// Runtime returns the runtime that spawned this task.
func (co *Coro) Runtime() *Runtime { return co.t.rt }

// IsClosing reports whether cancellation has been requested for the
// running task.
func (co *Coro) IsClosing() bool { return co.t.closing }

// Run spawns a child task of the running task. The child begins
// executing before Run returns.
func (co *Coro) Run(name string, body Body) *Task {
	return co.t.rt.spawn(name, body, callerSite(2))
}

// Await suspends until target completes and returns its result. If
// target is already completed the result is delivered without passing
// control to the host loop. Awaiting reports ErrClosed immediately when
// the running task is closing, and delivers a buffered child error
// first if one is pending.
func (co *Coro) Await(target *Task) (any, error) {
	t := co.t
	if err := t.preYield(2); err != nil {
		return nil, err
	}
	if target == nil {
		return nil, errAwaitNil
	}
	if target == t {
		return nil, errAwaitSelf
	}
	return t.co.yield(func(cb Callback) Closable {
		if v, err, ok := target.TryResult(); ok {
			cb(v, err)
			return nil
		}
		t.awaitChild = target
		t.awaitCancel = target.OnComplete(cb)
		return nil
	})
}

// AwaitFunc suspends on a callback-style operation. The builder runs on
// the scheduler side under a protected-call boundary; a panic inside it
// fails the task. The builder may resolve the callback synchronously —
// arbitrarily deep chains of synchronous resolutions run in constant
// stack space.
func (co *Coro) AwaitFunc(build Builder) (any, error) {
	t := co.t
	if err := t.preYield(2); err != nil {
		return nil, err
	}
	if build == nil {
		return nil, errNilBuilder
	}
	return t.co.yield(build)
}

// Yield suspends until the next iteration of the host loop.
func (co *Coro) Yield() error {
	t := co.t
	if err := t.preYield(2); err != nil {
		return err
	}
	host := t.rt.host
	_, err := t.co.yield(func(cb Callback) Closable {
		host.Defer(func() { cb(nil, nil) })
		return nil
	})
	return err
}
