package core

import (
	"context"
	"time"
)

// Logger is the structured logging surface used across the jobs. It matches
// the method set of *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MetricsRecorder receives operation timings and per-command outcomes.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
	CountCommand(operation, outcome string)
}

// Tracer starts spans around job steps.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended exactly once with the step's error, if any.
type TraceSpan interface {
	End(err error)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}
func (noopMetrics) CountCommand(string, string)                          {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// NoopLogger returns a Logger that discards everything.
func NoopLogger() Logger { return noopLogger{} }

// NoopMetrics returns a MetricsRecorder that discards everything.
func NoopMetrics() MetricsRecorder { return noopMetrics{} }

// NoopTracer returns a Tracer whose spans do nothing.
func NoopTracer() Tracer { return noopTracer{} }

// Observability bundles the ambient collaborators handed to jobs.
type Observability struct {
	Logger  Logger
	Metrics MetricsRecorder
	Tracer  Tracer
}

// WithDefaults fills unset collaborators with no-op implementations.
func (o Observability) WithDefaults() Observability {
	if o.Logger == nil {
		o.Logger = noopLogger{}
	}
	if o.Metrics == nil {
		o.Metrics = noopMetrics{}
	}
	if o.Tracer == nil {
		o.Tracer = noopTracer{}
	}
	return o
}

// Step runs fn inside a span, records its duration and logs failures.
func (o Observability) Step(ctx context.Context, operation string, fn func(context.Context) error) error {
	o = o.WithDefaults()
	ctx, span := o.Tracer.Start(ctx, operation)
	started := time.Now()
	err := fn(ctx)
	o.Metrics.Observe(ctx, operation, err == nil, time.Since(started))
	span.End(err)
	if err != nil {
		o.Logger.Error("step failed", "operation", operation, "error", err)
		return err
	}
	o.Logger.Debug("step complete", "operation", operation, "duration", time.Since(started))
	return nil
}
