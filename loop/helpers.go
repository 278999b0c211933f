package loop

import (
	"time"

	"github.com/NetPo4ki/go-task/task"
)

// Sleep suspends the running task for d. It is the canonical
// callback-style await: the timer is the task's closable current await,
// so closing the task cancels the timer.
func (l *Loop) Sleep(co *task.Coro, d time.Duration) error {
	_, err := co.AwaitFunc(func(cb task.Callback) task.Closable {
		return l.After(d, func() { cb(nil, nil) })
	})
	return err
}

// Timeout closes t if it has not completed within d. The returned
// cancel function disarms the timeout; it is also disarmed when t
// completes first.
func (l *Loop) Timeout(t *task.Task, d time.Duration) (cancel func()) {
	tm := l.After(d, func() {
		if !t.Completed() {
			t.Close(nil)
		}
	})
	t.OnComplete(func(any, error) { tm.Close(nil) })
	return func() { tm.Close(nil) }
}
