// Package prom provides a Prometheus-backed observer for the task
// runtime.
package prom

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/NetPo4ki/go-task/task"
)

// Observer implements task.Observer on top of Prometheus collectors.
type Observer struct {
	started  prometheus.Counter
	active   prometheus.Gauge
	finished *prometheus.CounterVec
	closes   prometheus.Counter
	duration prometheus.Histogram
	waits    prometheus.Histogram
}

// New registers the collectors with reg and returns the observer.
func New(reg prometheus.Registerer) *Observer {
	f := promauto.With(reg)
	return &Observer{
		started: f.NewCounter(prometheus.CounterOpts{
			Name: "task_started_total",
			Help: "Tasks created.",
		}),
		active: f.NewGauge(prometheus.GaugeOpts{
			Name: "task_active",
			Help: "Tasks created but not yet completed.",
		}),
		finished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "task_finished_total",
			Help: "Tasks completed, by result.",
		}, []string{"result"}),
		closes: f.NewCounter(prometheus.CounterOpts{
			Name: "task_close_requests_total",
			Help: "Cancellation requests.",
		}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "task_duration_seconds",
			Help:    "Time from task creation to completion.",
			Buckets: prometheus.DefBuckets,
		}),
		waits: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "task_wait_seconds",
			Help:    "Time spent blocked in Wait.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// TaskStarted records a task creation.
func (o *Observer) TaskStarted(name, site string) {
	o.started.Inc()
	o.active.Inc()
}

// TaskFinished records a completion with its result class.
func (o *Observer) TaskFinished(name string, dur time.Duration, err error, closed bool) {
	o.active.Dec()
	o.duration.Observe(dur.Seconds())
	switch {
	case err == nil:
		o.finished.WithLabelValues("ok").Inc()
	case closed && errors.Is(err, task.ErrClosed):
		o.finished.WithLabelValues("closed").Inc()
	default:
		o.finished.WithLabelValues("err").Inc()
	}
}

// TaskCloseRequested records a cancellation request.
func (o *Observer) TaskCloseRequested(name string) {
	o.closes.Inc()
}

// WaitReturned records a Wait call returning.
func (o *Observer) WaitReturned(name string, wait time.Duration) {
	o.waits.Observe(wait.Seconds())
}
