package task

import (
	"errors"
	"slices"
	"time"
)

// Status is the externally observable state of a task.
type Status int

const (
	// StatusRunning: the task's body is executing on top of the stack.
	StatusRunning Status = iota
	// StatusAwaiting: the task is suspended on its current await.
	StatusAwaiting
	// StatusActive: the task is live but not on top — it is running a
	// nested child step, or draining children before publishing its
	// result.
	StatusActive
	// StatusCompleted: the task's result is published. Terminal.
	StatusCompleted
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusAwaiting:
		return "awaiting"
	case StatusActive:
		return "active"
	case StatusCompleted:
		return "completed"
	}
	return "unknown"
}

type notifier struct {
	cb    Callback
	fired bool
}

// Task is the scheduled unit: a coroutine carrying user code plus the
// runtime metadata that links it into the ownership tree.
//
// All methods must be called from the host-loop goroutine.
type Task struct {
	rt   *Runtime
	name string
	site string

	co      *coro
	started time.Time

	state      Status
	completing bool
	coDead     bool

	value any
	err   error

	closing     bool
	closedFirst bool // close was requested before any user error surfaced
	errSeen     bool // a non-closed error was delivered into the body
	abandoned   bool // result fixed externally; coroutine is being unwound
	closedCbs   []func()

	parent   *Task
	children []*Task

	awaitChild  *Task
	awaitHandle Closable
	awaitCancel func()
	awaitSite   string
	resumeCb    *resumer

	notifiers []*notifier

	pendingChildErr error

	stepping      bool
	pendingResume *resumeMsg
}

func newTask(rt *Runtime, name, site string, body Body) *Task {
	if body == nil {
		panic(errNilBody)
	}
	t := &Task{
		rt:      rt,
		name:    name,
		site:    site,
		started: time.Now(),
	}
	t.co = startCoro(&Coro{t: t}, body)
	return t
}

// Name returns the task's debug name.
func (t *Task) Name() string { return t.name }

// Site returns the file:line where the task was created.
func (t *Task) Site() string { return t.site }

// Status returns the task's externally observable state.
func (t *Task) Status() Status { return t.state }

// Completed reports whether the task's result has been published.
func (t *Task) Completed() bool { return t.state == StatusCompleted }

// IsClosing reports whether cancellation has been requested.
func (t *Task) IsClosing() bool { return t.closing }

// Children returns the task's live children in creation order.
func (t *Task) Children() []*Task {
	return slices.Clone(t.children)
}

// TryResult returns the task's result if it is already completed.
func (t *Task) TryResult() (v any, err error, ok bool) {
	if t.state != StatusCompleted {
		return nil, nil, false
	}
	return t.value, t.err, true
}

// OnComplete registers cb on the task's notifier list. Notifiers fire in
// insertion order when the task completes; if the task is already
// completed, cb fires on the calling stack. The returned cancel function
// unregisters the notifier.
func (t *Task) OnComplete(cb Callback) (cancel func()) {
	if t.state == StatusCompleted {
		cb(t.value, t.err)
		return func() {}
	}
	n := &notifier{cb: cb}
	t.notifiers = append(t.notifiers, n)
	return func() {
		if n.fired {
			return
		}
		if i := slices.Index(t.notifiers, n); i >= 0 {
			t.notifiers = slices.Delete(t.notifiers, i, i+1)
		}
	}
}

// Wait drives the host loop until the task completes or timeout elapses
// (timeout <= 0 means no limit). It returns the task's result, or
// ErrTimeout without closing the task. Wait must not be called from
// inside a task body.
func (t *Task) Wait(timeout time.Duration) (any, error) {
	if t.rt.current != nil {
		return nil, errWaitInTask
	}
	start := time.Now()
	if t.state != StatusCompleted {
		t.rt.host.Poll(func() bool { return t.state == StatusCompleted }, timeout)
	}
	if obs := t.rt.obs; obs != nil {
		obs.WaitReturned(t.name, time.Since(start))
	}
	if t.state != StatusCompleted {
		return nil, ErrTimeout
	}
	return t.value, t.err
}

// Detach severs the parent→child link: the task becomes a root as far as
// error and cancellation propagation are concerned. It returns the task.
func (t *Task) Detach() *Task {
	if p := t.parent; p != nil {
		t.parent = nil
		p.removeChild(t)
		p.maybeFinalize()
	}
	return t
}

// Complete externally assigns the task a successful result. The first
// caller wins; later calls report ErrAlreadyCompleted, and any result the
// body produces afterwards is discarded. Children are closed, and the task reaches
// Completed once they and the coroutine have been drained.
func (t *Task) Complete(v any) error {
	if !t.settle(v, nil) {
		return ErrAlreadyCompleted
	}
	t.abandoned = true
	t.closeChildren()
	t.unwind()
	t.maybeFinalize()
	return nil
}

// Close requests cancellation. Idempotent: only the first call has
// effect, but every supplied callback fires once the task and its
// transitively closed descendants are completed. If the task is already
// completed, onClosed runs synchronously.
func (t *Task) Close(onClosed func()) {
	if t.state == StatusCompleted {
		if onClosed != nil {
			onClosed()
		}
		return
	}
	if onClosed != nil {
		t.closedCbs = append(t.closedCbs, onClosed)
	}
	if t.closing {
		return
	}
	t.closing = true
	if !t.errSeen {
		t.closedFirst = true
	}
	if obs := t.rt.obs; obs != nil {
		obs.TaskCloseRequested(t.name)
	}

	// The closing flag propagates monotonically to every descendant.
	t.closeChildren()

	if t.completing {
		t.maybeFinalize()
		return
	}
	if t.state == StatusAwaiting {
		t.interruptAwait()
	}
	// Running or nested: the next suspension point reports ErrClosed.
}

// interruptAwait cancels the current await of a suspended task and
// arranges for it to resume with ErrClosed.
func (t *Task) interruptAwait() {
	r := t.resumeCb
	switch {
	case t.awaitChild != nil:
		child := t.awaitChild
		if child.parent == t {
			// Close is recursive for an awaited child; resuming waits
			// for the acknowledgement.
			child.Close(func() { r.fire(nil, ErrClosed) })
		} else {
			// Awaiting a task we do not own: leave it alone.
			r.fire(nil, ErrClosed)
		}
	case t.awaitHandle != nil:
		h := t.awaitHandle
		if handleClosing(h) {
			// Already closing: wait for the originally scheduled
			// callback, which the closing flag turns into ErrClosed.
			return
		}
		h.Close(func() { r.fire(nil, ErrClosed) })
	default:
		r.fire(nil, ErrClosed)
	}
}

func (t *Task) closeChildren() {
	for _, c := range slices.Clone(t.children) {
		c.Close(nil)
	}
}

// unwind forces the coroutine of an externally settled task to run to
// its end so its goroutine exits. Every suspension point inside it
// reports ErrClosed.
func (t *Task) unwind() {
	if t.coDead || t.stepping {
		// A running task unwinds at its next suspension point via the
		// abandoned flag.
		return
	}
	if r := t.resumeCb; r != nil && !r.fired {
		r.fire(nil, ErrClosed)
	}
}

// preYield runs the checks shared by every suspension point, on the
// task's own coroutine, before control is handed to the scheduler.
func (t *Task) preYield(skip int) error {
	if t.rt.current != t {
		return errNotRunning
	}
	t.awaitSite = callerSite(skip + 1)
	if t.closing || t.abandoned {
		return ErrClosed
	}
	if pe := t.pendingChildErr; pe != nil {
		t.pendingChildErr = nil
		return pe
	}
	return nil
}

// resumer is the single-shot resume gate of one suspension. Stale
// callbacks from earlier suspensions, and callbacks fired more than
// once, are no-ops.
type resumer struct {
	t     *Task
	fired bool
}

func (r *resumer) callback() Callback {
	return func(v any, err error) { r.fire(v, err) }
}

// fire resumes the task with a result. It clears the current await
// (closing any closable that is not yet closing), applies the
// level-triggered closing override, and re-enters the step loop —
// iteratively when a step is already active on the stack.
func (r *resumer) fire(v any, err error) {
	if r.fired {
		return
	}
	r.fired = true
	t := r.t
	t.clearAwait()
	if err != nil && !errors.Is(err, ErrClosed) {
		t.errSeen = true
	}
	if t.closing || t.abandoned {
		v, err = nil, ErrClosed
	}
	m := resumeMsg{value: v, err: err}
	if t.stepping {
		t.pendingResume = &m
		return
	}
	t.step(m)
}

func (t *Task) clearAwait() {
	if h := t.awaitHandle; h != nil {
		t.awaitHandle = nil
		if !handleClosing(h) {
			h.Close(nil)
		}
	}
	if cancel := t.awaitCancel; cancel != nil {
		t.awaitCancel = nil
		cancel()
	}
	t.awaitChild = nil
}

// step drives the task's coroutine through resume/await cycles. The loop
// is the trampoline: awaits that resolve synchronously feed the next
// resume message back into it instead of growing the stack.
func (t *Task) step(m resumeMsg) {
	t.stepping = true
	for {
		prev := t.rt.current
		var prevState Status
		if prev != nil {
			prevState = prev.state
			prev.state = StatusActive
		}
		t.rt.current = t
		t.state = StatusRunning

		out := t.co.resume(m)

		t.rt.current = prev
		if prev != nil {
			prev.state = prevState
		}

		if out.done {
			t.coDead = true
			t.stepping = false
			t.finishBody(out.value, out.err)
			return
		}

		// Suspension request: invoke the builder under a protected-call
		// boundary, with a fresh single-shot resume gate.
		r := &resumer{t: t}
		t.resumeCb = r
		if perr := protect(func() {
			if h := out.build(r.callback()); h != nil {
				if t.pendingResume != nil || r.fired {
					// Resolved synchronously before the handle was
					// installed: the runtime still owns its closure.
					if !handleClosing(h) {
						h.Close(nil)
					}
				} else {
					t.awaitHandle = h
				}
			}
		}); perr != nil {
			// A failing builder fails the task.
			t.settle(nil, perr)
			t.abandoned = true
			t.closeChildren()
			t.pendingResume = nil
			m = resumeMsg{err: ErrClosed}
			continue
		}

		if t.pendingResume != nil {
			m = *t.pendingResume
			t.pendingResume = nil
			continue
		}

		t.state = StatusAwaiting

		// Cancellation or a buffered child error that arrived while the
		// builder ran is delivered at this suspension point.
		if t.closing || t.abandoned {
			r.fire(nil, ErrClosed)
		} else if pe := t.pendingChildErr; pe != nil {
			t.pendingChildErr = nil
			r.fire(nil, pe)
		}
		if t.pendingResume != nil {
			m = *t.pendingResume
			t.pendingResume = nil
			continue
		}

		t.stepping = false
		return
	}
}

func protect(f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if pe, ok := r.(*PanicError); ok {
				err = pe
				return
			}
			err = &PanicError{Value: r}
		}
	}()
	f()
	return nil
}

// finishBody handles the coroutine's terminal return: the result is
// chosen (unless Complete or a builder failure already fixed one) and
// the children are resolved before anything is published.
func (t *Task) finishBody(v any, err error) {
	if !t.completing {
		if t.closing && (err == nil || t.closedFirst) {
			// Close wins unless a user error surfaced strictly before
			// close was requested.
			v, err = nil, ErrClosed
		}
		if err == nil && t.pendingChildErr != nil {
			// A buffered, undelivered child error overrides a natural Ok.
			v, err = nil, t.pendingChildErr
			t.pendingChildErr = nil
		}
		t.settle(v, err)
	}
	if t.err != nil || t.closing {
		t.closeChildren()
	}
	t.maybeFinalize()

	if pe := (*PanicError)(nil); !t.rt.opts.PanicAsError && errors.As(err, &pe) {
		panic(pe.Value)
	}
}

// settle fixes the task's terminal result. The completing flag makes the
// first caller win; everything after is a no-op.
func (t *Task) settle(v any, err error) bool {
	if t.completing || t.state == StatusCompleted {
		return false
	}
	t.completing = true
	t.value, t.err = v, err
	t.state = StatusActive
	return true
}

// childCompleted is the propagation hook a child invokes on its parent
// when it publishes its result. delivered reports that the child had
// live notifiers at completion — its result reaches an observer (the
// awaiting parent, an iterator, …) through them, so the error-up path
// stays out of it.
func (t *Task) childCompleted(c *Task, delivered bool) {
	t.removeChild(c)
	cerr := c.err
	switch {
	case t.state == StatusCompleted:
		// Late completion of a detached-then-reattached child cannot
		// happen; nothing to do.
	case delivered:
	case cerr == nil || errors.Is(cerr, ErrClosed):
		// Ok children and cancelled children do not propagate.
	case t.completing:
		if t.err == nil {
			// A child error during the completion sweep replaces Ok.
			t.err = frameChildError(cerr)
			t.value = nil
			t.closeChildren()
		}
	case t.state == StatusAwaiting && t.resumeCb != nil && !t.resumeCb.fired:
		// Interrupt the current await: the error is the parent's next
		// resume.
		t.errSeen = true
		t.resumeCb.fire(nil, frameChildError(cerr))
	default:
		// Parent is running: buffer until its next suspension point.
		t.errSeen = true
		t.pendingChildErr = frameChildError(cerr)
	}
	t.maybeFinalize()
}

func (t *Task) removeChild(c *Task) {
	if i := slices.Index(t.children, c); i >= 0 {
		t.children = slices.Delete(t.children, i, i+1)
	}
}

func (t *Task) maybeFinalize() {
	if t.completing && t.coDead && len(t.children) == 0 && t.state != StatusCompleted {
		t.finalize()
	}
}

// finalize publishes the result: the task becomes Completed, the parent
// is notified, then the notifier list fires in insertion order, then the
// close acknowledgements.
func (t *Task) finalize() {
	t.state = StatusCompleted
	if obs := t.rt.obs; obs != nil {
		obs.TaskFinished(t.name, time.Since(t.started), t.err, t.closing)
	}
	if p := t.parent; p != nil {
		t.parent = nil
		p.childCompleted(t, len(t.notifiers) > 0)
	}
	ns := t.notifiers
	t.notifiers = nil
	for _, n := range ns {
		n.fired = true
		n.cb(t.value, t.err)
	}
	cbs := t.closedCbs
	t.closedCbs = nil
	for _, cb := range cbs {
		cb()
	}
}
