package task

import (
	"path/filepath"
	"runtime"
	"strconv"
	"time"
)

// Option configures a Runtime.
type Option func(*Options)

// Options holds runtime configuration.
type Options struct {
	PanicAsError bool
	Observer     Observer
}

func defaultOptions() Options { return Options{PanicAsError: true} }

// WithPanicAsError controls whether a panic in a task body becomes a
// *PanicError result (true, the default) or escapes the step loop.
func WithPanicAsError(v bool) Option { return func(o *Options) { o.PanicAsError = v } }

// WithObserver installs an observer receiving task lifecycle hooks.
func WithObserver(obs Observer) Option { return func(o *Options) { o.Observer = obs } }

// Observer receives task lifecycle notifications. Implementations live
// under observe/.
type Observer interface {
	TaskStarted(name, site string)
	TaskFinished(name string, dur time.Duration, err error, closed bool)
	TaskCloseRequested(name string)
	WaitReturned(name string, wait time.Duration)
}

// Runtime is a single-threaded cooperative task scheduler bound to a
// host loop. It never creates OS threads of its own; at any instant at
// most one task is executing code.
//
// A Runtime and its tasks must be driven from a single goroutine: the
// one that calls Run, Wait and the host loop. Resume callbacks handed to
// external APIs must be invoked from that same loop.
type Runtime struct {
	host    Host
	opts    Options
	obs     Observer
	current *Task
}

// NewRuntime creates a runtime bound to the given host loop.
func NewRuntime(host Host, optFns ...Option) *Runtime {
	r := &Runtime{host: host, opts: defaultOptions()}
	for _, fn := range optFns {
		fn(&r.opts)
	}
	r.obs = r.opts.Observer
	return r
}

// Host returns the host-loop adapter the runtime was built with.
func (r *Runtime) Host() Host { return r.host }

// Run creates a task executing body and steps it once on the calling
// stack. Called inside a task body it creates a child of the running
// task; otherwise it creates a root task. The new task may already be
// completed when Run returns.
func (r *Runtime) Run(name string, body Body) *Task {
	return r.spawn(name, body, callerSite(2))
}

func (r *Runtime) spawn(name string, body Body, site string) *Task {
	t := newTask(r, name, site, body)
	if p := r.current; p != nil && !p.completing {
		t.parent = p
		p.children = append(p.children, t)
	}
	if r.obs != nil {
		r.obs.TaskStarted(t.name, t.site)
	}
	t.step(resumeMsg{})
	return t
}

func callerSite(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	return filepath.Base(file) + ":" + strconv.Itoa(line)
}
