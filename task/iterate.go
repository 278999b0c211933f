package task

import "fmt"

type iterResult struct {
	idx int
	v   any
	err error
}

// Iterator yields the results of a set of tasks in completion order. It
// is built entirely on the notifier API; Stop withdraws every notifier
// so a dropped iterator leaves no callbacks behind on the tasks.
type Iterator struct {
	remaining int
	buf       []iterResult
	cancels   []func()
	pending   *waiter
	stopped   bool
}

// Iter registers on each task and returns an iterator over their
// results.
func Iter(tasks ...*Task) *Iterator {
	it := &Iterator{remaining: len(tasks)}
	it.cancels = make([]func(), 0, len(tasks))
	for i, tk := range tasks {
		idx := i
		it.cancels = append(it.cancels, tk.OnComplete(func(v any, err error) {
			it.push(iterResult{idx: idx, v: v, err: err})
		}))
	}
	return it
}

func (it *Iterator) push(r iterResult) {
	it.remaining--
	if w := it.pending; w != nil {
		it.pending = nil
		w.resolve(r, nil)
		return
	}
	it.buf = append(it.buf, r)
}

// Next returns the index and value of the next task to complete. A task
// failure is framed as "iter error[index:N]: …". ok is false once every
// task's result has been delivered or the iterator was stopped.
func (it *Iterator) Next(co *Coro) (idx int, v any, err error, ok bool) {
	t := co.t
	if perr := t.preYield(2); perr != nil {
		return 0, nil, perr, true
	}
	r, ok, err := it.take(co)
	if !ok || err != nil {
		return 0, nil, err, ok
	}
	if r.err != nil {
		return r.idx, nil, fmt.Errorf("iter error[index:%d]: %w", r.idx, r.err), true
	}
	return r.idx, r.v, nil, true
}

func (it *Iterator) take(co *Coro) (iterResult, bool, error) {
	if len(it.buf) > 0 {
		r := it.buf[0]
		it.buf = it.buf[1:]
		return r, true, nil
	}
	if it.stopped || it.remaining == 0 {
		return iterResult{}, false, nil
	}
	v, err := co.t.co.yield(func(cb Callback) Closable {
		w := &waiter{cb: cb, drop: func(*waiter) { it.pending = nil }}
		it.pending = w
		return w
	})
	if err != nil {
		return iterResult{}, true, err
	}
	return v.(iterResult), true, nil
}

// Stop unregisters the iterator from every task it still watches.
// Buffered results remain readable.
func (it *Iterator) Stop() {
	if it.stopped {
		return
	}
	it.stopped = true
	for _, cancel := range it.cancels {
		cancel()
	}
	it.cancels = nil
	if w := it.pending; w != nil {
		it.pending = nil
		w.resolve(nil, ErrClosed)
	}
}
