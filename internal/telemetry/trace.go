package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartCommandSpan creates a span for a CLI command execution.
//
// Usage:
//
//	ctx, span := telemetry.StartCommandSpan(ctx, "run")
//	defer span.End()
func StartCommandSpan(ctx context.Context, cmdName string) (context.Context, trace.Span) {
	tracer := GetTracerProvider().Tracer("commands")
	ctx, span := tracer.Start(ctx, "command."+cmdName)

	span.SetAttributes(
		attribute.String("command", cmdName),
		attribute.String("component", "cli"),
	)

	return ctx, span
}

// StartRunSpan creates the root span of one feature run.
func StartRunSpan(ctx context.Context, featureID, runID string, resumed bool) (context.Context, trace.Span) {
	tracer := GetTracerProvider().Tracer("orchestrator")
	ctx, span := tracer.Start(ctx, "run."+featureID)

	span.SetAttributes(
		attribute.String("feature", featureID),
		attribute.String("run_id", runID),
		attribute.Bool("resumed", resumed),
		attribute.String("component", "orchestrator"),
	)

	return ctx, span
}

// StartItemSpan creates a span for one work item executing on an agent slot.
func StartItemSpan(ctx context.Context, itemID string) (context.Context, trace.Span) {
	tracer := GetTracerProvider().Tracer("pool")
	ctx, span := tracer.Start(ctx, "item."+itemID)

	span.SetAttributes(
		attribute.String("item", itemID),
		attribute.String("component", "pool"),
	)

	return ctx, span
}

// RecordSuccess marks a span as successful with optional result attributes.
func RecordSuccess(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
	span.SetStatus(codes.Ok, "")
}

// RecordError records an error in a span and sets error status.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(
		attribute.Bool("error", true),
	)
}
