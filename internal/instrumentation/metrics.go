package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys.
const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOperation = "operation"
	attrService   = "service"
	attrSource    = "source"
	attrResult    = "result"
	attrTool      = "tool"
)

// Metrics records mailbot's observability metrics. The zero value is a valid
// recorder that drops everything, which is what a disabled Provider hands out.
type Metrics struct {
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	upstreamOperationsTotal   metric.Int64Counter
	upstreamOperationDuration metric.Float64Histogram

	tokenResolutionsTotal metric.Int64Counter
	emailsFetched         metric.Int64Histogram

	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram
}

// NewMetrics creates all instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of gateway HTTP requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	if m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("Gateway HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	); err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	if m.upstreamOperationsTotal, err = meter.Int64Counter(
		"upstream_operations_total",
		metric.WithDescription("Total number of Gmail and digest backend calls"),
		metric.WithUnit("{operation}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create upstream_operations_total counter: %w", err)
	}

	if m.upstreamOperationDuration, err = meter.Float64Histogram(
		"upstream_operation_duration_seconds",
		metric.WithDescription("Gmail and digest backend call duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	); err != nil {
		return nil, fmt.Errorf("failed to create upstream_operation_duration_seconds histogram: %w", err)
	}

	if m.tokenResolutionsTotal, err = meter.Int64Counter(
		"token_resolutions_total",
		metric.WithDescription("Access token lookups by provider source and result"),
		metric.WithUnit("{lookup}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create token_resolutions_total counter: %w", err)
	}

	if m.emailsFetched, err = meter.Int64Histogram(
		"emails_fetched",
		metric.WithDescription("Number of messages fetched per email list call"),
		metric.WithUnit("{message}"),
		metric.WithExplicitBucketBoundaries(0, 1, 5, 10, 25, 50, 100, 250, 500),
	); err != nil {
		return nil, fmt.Errorf("failed to create emails_fetched histogram: %w", err)
	}

	if m.toolInvocationsTotal, err = meter.Int64Counter(
		"mcp_tool_invocations_total",
		metric.WithDescription("Total number of MCP tool invocations"),
		metric.WithUnit("{invocation}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_invocations_total counter: %w", err)
	}

	if m.toolDuration, err = meter.Float64Histogram(
		"mcp_tool_duration_seconds",
		metric.WithDescription("MCP tool execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	); err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records a gateway request. route must be a router
// pattern (see RouteLabel), not a raw path.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequestsTotal == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrPath, RouteLabel(route)),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	)
	m.httpRequestsTotal.Add(ctx, 1, attrs)
	m.httpRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordUpstreamOperation records one Gmail or digest backend call.
func (m *Metrics) RecordUpstreamOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	if m == nil || m.upstreamOperationsTotal == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	)
	m.upstreamOperationsTotal.Add(ctx, 1, attrs)
	m.upstreamOperationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordTokenResolution records a Token Provider lookup.
func (m *Metrics) RecordTokenResolution(ctx context.Context, source, result string) {
	if m == nil || m.tokenResolutionsTotal == nil {
		return
	}
	m.tokenResolutionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrSource, source),
		attribute.String(attrResult, result),
	))
}

// RecordEmailsFetched records the size of a message fan-out.
func (m *Metrics) RecordEmailsFetched(ctx context.Context, count int) {
	if m == nil || m.emailsFetched == nil {
		return
	}
	m.emailsFetched.Record(ctx, int64(count))
}

// RecordToolInvocation records an MCP tool invocation.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	)
	m.toolInvocationsTotal.Add(ctx, 1, attrs)
	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
}
