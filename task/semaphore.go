package task

// Semaphore bounds concurrent access to a resource among tasks on the
// same runtime. Waiters are served in FIFO order.
type Semaphore struct {
	size    int
	cur     int
	waiters []*waiter
}

// NewSemaphore creates a semaphore admitting n concurrent holders.
func NewSemaphore(n int) *Semaphore {
	if n <= 0 {
		panic("task: semaphore size must be positive")
	}
	return &Semaphore{size: n}
}

// TryAcquire acquires a slot without suspending. It reports whether it
// succeeded.
func (s *Semaphore) TryAcquire() bool {
	if s.cur < s.size && len(s.waiters) == 0 {
		s.cur++
		return true
	}
	return false
}

// Acquire takes a slot, suspending the running task until one is free.
func (s *Semaphore) Acquire(co *Coro) error {
	t := co.t
	if err := t.preYield(2); err != nil {
		return err
	}
	if s.cur < s.size && len(s.waiters) == 0 {
		s.cur++
		return nil
	}
	_, err := t.co.yield(func(cb Callback) Closable {
		w := &waiter{cb: cb, drop: func(w *waiter) { removeWaiter(&s.waiters, w) }}
		s.waiters = append(s.waiters, w)
		return w
	})
	return err
}

// Release frees a slot, waking the oldest waiter if any.
func (s *Semaphore) Release() {
	if s.cur <= 0 {
		panic("task: semaphore released more than held")
	}
	for len(s.waiters) > 0 {
		w := s.waiters[0]
		s.waiters = s.waiters[1:]
		if !w.done && !w.closing {
			// The slot passes directly to the waiter.
			w.resolve(nil, nil)
			return
		}
	}
	s.cur--
}
