// Package errgroup provides an adapter that mimics golang.org/x/sync/errgroup
// semantics on top of the cooperative task runtime. It enables incremental
// migration of errgroup-shaped code onto a single-threaded host loop.
package errgroup

import (
	"time"

	"github.com/NetPo4ki/go-task/task"
)

// Group is an errgroup-like wrapper over a task runtime: the first
// failure closes the remaining tasks (fail-fast semantics).
type Group struct {
	rt       *task.Runtime
	tasks    []*task.Task
	firstErr error
	failed   bool
}

// New creates a Group on rt.
func New(rt *task.Runtime) *Group {
	return &Group{rt: rt}
}

// Go starts body as a task of the group. It should return a non-nil
// error to signal failure.
func (g *Group) Go(name string, body task.Body) {
	if body == nil {
		return
	}
	t := g.rt.Run(name, body)
	g.tasks = append(g.tasks, t)
	t.OnComplete(func(_ any, err error) {
		if err != nil {
			g.fail(err)
		}
	})
}

// Wait drives the host loop until every task has completed or timeout
// elapses (<= 0 means no limit). It returns the first non-nil error.
func (g *Group) Wait(timeout time.Duration) error {
	done := g.rt.Host().Poll(func() bool {
		for _, t := range g.tasks {
			if !t.Completed() {
				return false
			}
		}
		return true
	}, timeout)
	if !done {
		return task.ErrTimeout
	}
	return g.firstErr
}

func (g *Group) fail(err error) {
	if g.failed {
		return
	}
	g.failed = true
	g.firstErr = err
	for _, t := range g.tasks {
		if !t.Completed() {
			t.Close(nil)
		}
	}
}
