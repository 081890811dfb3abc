// Package otel holds the span helpers shared by the fetch pipeline.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span names
const (
	SpanRun         = "tool-versions.Run"
	SpanFetchLatest = "tool-versions.FetchLatest"
	SpanPersist     = "tool-versions.Persist"
)

// Attribute keys recorded on pipeline spans
const (
	AttrToolID       = attribute.Key("tool.id")
	AttrSourceType   = attribute.Key("tool.source_type")
	AttrToolVersion  = attribute.Key("tool.version")
	AttrOutcome      = attribute.Key("tool.outcome")
	AttrErrorKind    = attribute.Key("error.kind")
	AttrToolCount    = attribute.Key("run.tool_count")
	AttrEntryCount   = attribute.Key("document.entries")
	AttrDocumentPath = attribute.Key("document.path")
)

// StartSpan starts a span on tracer. With a nil tracer the span already in ctx
// (usually a no-op) is returned so callers never have to check.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// ToolAttributes returns the identifying attributes of a tool fetch
func ToolAttributes(id, sourceType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrToolID.String(id),
		AttrSourceType.String(sourceType),
	}
}

// RecordError marks span as failed. The status description stays generic
// because upstream error text can include tokens or full URLs; the error
// itself is kept in the exception event.
func RecordError(span trace.Span, err error) {
	if err == nil || span == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "operation failed")
}
