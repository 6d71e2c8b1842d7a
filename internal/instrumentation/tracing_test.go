package instrumentation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func TestStartUpstreamSpan(t *testing.T) {
	recorder := withRecorder(t)

	ctx, span := StartUpstreamSpan(context.Background(), ServiceGmail, OperationCreateLabel, LabelIDAttr("Label_1"))
	assert.NotEmpty(t, GetTraceID(ctx))
	EndSpan(span, nil)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "gmail.labels.create", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "gmail", attrs[SpanAttrService])
	assert.Equal(t, "labels.create", attrs[SpanAttrOperation])
	assert.Equal(t, "Label_1", attrs[SpanAttrLabelID])
}

func TestStartToolSpan_Error(t *testing.T) {
	recorder := withRecorder(t)

	_, span := StartToolSpan(context.Background(), "gmail_delete_label", MessageIDAttr("m1"), CountAttr(3))
	EndSpan(span, errors.New("boom"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "tool.gmail_delete_label", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "boom", spans[0].Status().Description)
}

func TestGetTraceID_NoSpan(t *testing.T) {
	assert.Equal(t, "", GetTraceID(context.Background()))
}
