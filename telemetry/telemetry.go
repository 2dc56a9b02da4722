// Package telemetry defines the logging, metrics, and tracing interfaces
// threaded through every control plane component, plus no-op and
// clue/OpenTelemetry-backed implementations.
package telemetry

import (
	"context"
	"time"
)

type (
	// Logger emits structured, context-scoped log messages.
	Logger interface {
		Debug(ctx context.Context, msg string, keyvals ...any)
		Info(ctx context.Context, msg string, keyvals ...any)
		Warn(ctx context.Context, msg string, keyvals ...any)
		Error(ctx context.Context, msg string, keyvals ...any)
	}

	// Metrics records counters and timers for scheduler throughput, reconcile
	// outcomes, and workflow/network step latency.
	Metrics interface {
		IncCounter(name string, value float64, tags ...string)
		RecordTimer(name string, duration time.Duration, tags ...string)
	}

	// Tracer creates spans around reconciles, scheduler tasks, workflow
	// steps, and network hops.
	Tracer interface {
		Start(ctx context.Context, name string) (context.Context, Span)
	}

	// Span is a single unit of work within a trace.
	Span interface {
		End()
		SetError(err error)
		SetAttribute(key string, value any)
	}
)
