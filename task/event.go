package task

import "slices"

// Event is a level-triggered flag tasks can wait on. Set releases every
// waiter; waiters arriving while the event is set do not suspend.
//
// An Event must not be shared across runtimes.
type Event struct {
	set     bool
	waiters []*waiter
}

// NewEvent returns an unset event.
func NewEvent() *Event { return &Event{} }

// IsSet reports whether the event is set.
func (e *Event) IsSet() bool { return e.set }

// Set sets the event and resumes every waiting task.
func (e *Event) Set() {
	if e.set {
		return
	}
	e.set = true
	ws := e.waiters
	e.waiters = nil
	for _, w := range ws {
		w.resolve(nil, nil)
	}
}

// Clear resets the event.
func (e *Event) Clear() { e.set = false }

// Wait suspends the running task until the event is set.
func (e *Event) Wait(co *Coro) error {
	t := co.t
	if err := t.preYield(2); err != nil {
		return err
	}
	if e.set {
		return nil
	}
	_, err := t.co.yield(func(cb Callback) Closable {
		w := &waiter{cb: cb, drop: func(w *waiter) { removeWaiter(&e.waiters, w) }}
		e.waiters = append(e.waiters, w)
		return w
	})
	return err
}

// waiter is the closable registration shared by the synchronization
// primitives: resolving it resumes the task, closing it withdraws the
// registration.
type waiter struct {
	cb      Callback
	drop    func(*waiter)
	done    bool
	closing bool
}

func (w *waiter) resolve(v any, err error) {
	if w.done {
		return
	}
	w.done = true
	w.cb(v, err)
}

func (w *waiter) Close(onClosed func()) {
	if !w.done && !w.closing {
		w.closing = true
		if w.drop != nil {
			w.drop(w)
		}
	}
	if onClosed != nil {
		onClosed()
	}
}

func (w *waiter) IsClosing() bool { return w.closing }

func removeWaiter(ws *[]*waiter, w *waiter) {
	if i := slices.Index(*ws, w); i >= 0 {
		*ws = slices.Delete(*ws, i, i+1)
	}
}
