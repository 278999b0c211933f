package task

// Queue is an unbounded FIFO connecting producers and consumers on the
// same runtime. Pop suspends while the queue is empty.
type Queue struct {
	items   []any
	waiters []*waiter
}

// NewQueue returns an empty queue.
func NewQueue() *Queue { return &Queue{} }

// Len returns the number of buffered items.
func (q *Queue) Len() int { return len(q.items) }

// Push appends v, handing it directly to the oldest waiting consumer if
// there is one.
func (q *Queue) Push(v any) {
	for len(q.waiters) > 0 {
		w := q.waiters[0]
		q.waiters = q.waiters[1:]
		if !w.done && !w.closing {
			w.resolve(v, nil)
			return
		}
	}
	q.items = append(q.items, v)
}

// Pop removes and returns the oldest item, suspending until one is
// available.
func (q *Queue) Pop(co *Coro) (any, error) {
	t := co.t
	if err := t.preYield(2); err != nil {
		return nil, err
	}
	if len(q.items) > 0 {
		v := q.items[0]
		q.items = q.items[1:]
		return v, nil
	}
	return t.co.yield(func(cb Callback) Closable {
		w := &waiter{cb: cb, drop: func(w *waiter) { removeWaiter(&q.waiters, w) }}
		q.waiters = append(q.waiters, w)
		return w
	})
}
