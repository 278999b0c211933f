// Package loop provides the reference single-threaded host loop for the
// task runtime: a tick queue, timers, and the blocking Poll driver the
// runtime's Wait is built on.
package loop

import (
	"slices"
	"time"
)

// Loop is a minimal event loop implementing task.Host. Everything —
// scheduling, timer management, Poll — must happen on one goroutine.
type Loop struct {
	queue  []func()
	timers []*Timer
}

// New returns an empty loop.
func New() *Loop { return &Loop{} }

// Defer schedules fn to run on the next tick.
func (l *Loop) Defer(fn func()) {
	l.queue = append(l.queue, fn)
}

// Tick runs every thunk currently queued plus all due timers. It reports
// whether any work was performed.
func (l *Loop) Tick() bool {
	worked := false
	q := l.queue
	l.queue = nil
	for _, fn := range q {
		worked = true
		fn()
	}
	now := time.Now()
	for len(l.timers) > 0 && !l.timers[0].when.After(now) {
		tm := l.timers[0]
		l.timers = l.timers[1:]
		worked = true
		tm.fire()
	}
	return worked
}

// Poll drives the loop until done reports true or timeout elapses
// (timeout <= 0 means no limit). When the loop goes idle it sleeps until
// the next timer is due. Poll returns false early when nothing is queued,
// no timer is armed, and no timeout was given — nothing could ever make
// done true.
func (l *Loop) Poll(done func() bool, timeout time.Duration) bool {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		if done() {
			return true
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return done()
		}
		if l.Tick() {
			continue
		}
		// Idle: wait for the next timer, bounded by the deadline.
		sleep := 10 * time.Millisecond
		if len(l.timers) > 0 {
			sleep = time.Until(l.timers[0].when)
		} else if deadline.IsZero() {
			return done()
		}
		if !deadline.IsZero() {
			if until := time.Until(deadline); until < sleep {
				sleep = until
			}
		}
		if sleep > 0 {
			time.Sleep(sleep)
		}
	}
}

// After arms a timer invoking fn after d. The returned Timer is a
// closable handle the runtime may cancel.
func (l *Loop) After(d time.Duration, fn func()) *Timer {
	tm := &Timer{l: l, when: time.Now().Add(d), fn: fn}
	i, _ := slices.BinarySearchFunc(l.timers, tm, func(a, b *Timer) int {
		return a.when.Compare(b.when)
	})
	l.timers = slices.Insert(l.timers, i, tm)
	return tm
}

func (l *Loop) removeTimer(tm *Timer) {
	if i := slices.Index(l.timers, tm); i >= 0 {
		l.timers = slices.Delete(l.timers, i, i+1)
	}
}

// Timer is a pending After callback. It implements the task closable
// handle protocol.
type Timer struct {
	l       *Loop
	when    time.Time
	fn      func()
	fired   bool
	closing bool
}

func (tm *Timer) fire() {
	if tm.fired || tm.closing {
		return
	}
	tm.fired = true
	tm.fn()
}

// Close cancels the timer. onClosed, if non-nil, runs on the calling
// stack once the timer can no longer fire.
func (tm *Timer) Close(onClosed func()) {
	if !tm.fired && !tm.closing {
		tm.closing = true
		tm.l.removeTimer(tm)
	}
	if onClosed != nil {
		onClosed()
	}
}

// IsClosing reports whether the timer was cancelled.
func (tm *Timer) IsClosing() bool { return tm.closing }
