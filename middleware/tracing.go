package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/the-line/loyaltysync/job"
)

// tracerName is the instrumentation scope name for loyaltysync tracing.
const tracerName = "github.com/the-line/loyaltysync"

// Tracing returns middleware that wraps request execution in an
// OpenTelemetry span. If no TracerProvider is configured globally, the
// default noop tracer is used and this middleware becomes a pass-through
// with zero overhead.
//
// Span attributes include: loyaltysync.request.id, loyaltysync.job.id,
// loyaltysync.type_code, loyaltysync.attempt. On error, the span status
// is set to codes.Error with the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// This variant allows injecting a specific TracerProvider for testing or
// when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, r *job.Request, next Handler) error {
		ctx, span := tracer.Start(ctx, "loyaltysync.request.execute",
			trace.WithAttributes(
				attribute.String("loyaltysync.request.id", r.ID.String()),
				attribute.String("loyaltysync.job.id", r.JobID.String()),
				attribute.String("loyaltysync.type_code", r.TypeCode),
				attribute.Int("loyaltysync.attempt", r.Attempt),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
