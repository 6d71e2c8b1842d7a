package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the tracer used for all mailbot spans.
const TracerName = "github.com/teemow/mailbot"

// Span attribute keys.
const (
	SpanAttrTool      = "mcp.tool"
	SpanAttrService   = "upstream.service"
	SpanAttrOperation = "upstream.operation"
	SpanAttrLabelID   = "gmail.label_id"
	SpanAttrMessageID = "gmail.message_id"
	SpanAttrCount     = "gmail.count"
)

// LabelIDAttr tags a span with a Gmail label id.
func LabelIDAttr(id string) attribute.KeyValue {
	return attribute.String(SpanAttrLabelID, id)
}

// MessageIDAttr tags a span with a Gmail message id.
func MessageIDAttr(id string) attribute.KeyValue {
	return attribute.String(SpanAttrMessageID, id)
}

// CountAttr tags a span with a requested item count.
func CountAttr(n int) attribute.KeyValue {
	return attribute.Int(SpanAttrCount, n)
}

// StartToolSpan starts a server span for an MCP tool invocation.
func StartToolSpan(ctx context.Context, toolName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{attribute.String(SpanAttrTool, toolName)}, attrs...)
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, "tool."+toolName,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// StartUpstreamSpan starts a client span for a Gmail or digest backend call.
func StartUpstreamSpan(ctx context.Context, service, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{
		attribute.String(SpanAttrService, service),
		attribute.String(SpanAttrOperation, operation),
	}, attrs...)
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, service+"."+operation,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndSpan sets the span status from err and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// GetTraceID returns the trace ID of the span in ctx, or "".
func GetTraceID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if sc.IsValid() {
		return sc.TraceID().String()
	}
	return ""
}
