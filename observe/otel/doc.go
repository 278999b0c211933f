// Package otel provides an OpenTelemetry observer placeholder for the task
// runtime. Its Nop observer implements every hook as a no-op and emits
// no spans or span events.
package otel
