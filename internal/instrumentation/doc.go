// Package instrumentation provides OpenTelemetry metrics, tracing and audit
// logging for mailbot.
//
// Metrics:
//
//   - http_requests_total / http_request_duration_seconds: gateway HTTP traffic by
//     method, route pattern and status code
//   - upstream_operations_total / upstream_operation_duration_seconds: Gmail and
//     digest backend calls by service, operation and status
//   - token_resolutions_total: Token Provider lookups by source and result
//   - emails_fetched: size of each message fan-out
//   - mcp_tool_invocations_total / mcp_tool_duration_seconds: capability registry calls
//
// Spans are created for tool invocations (tool.<name>) and upstream calls
// (<service>.<operation>).
//
// Configuration is read from the environment by DefaultConfig:
//
//   - INSTRUMENTATION_ENABLED (default: true)
//   - METRICS_EXPORTER: prometheus, otlp or stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout or none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_INSECURE
//   - OTEL_TRACES_SAMPLER_ARG (default: 0.1)
//   - OTEL_SERVICE_NAME (default: mailbot)
//   - AUDIT_LOGGING_ENABLED, AUDIT_LOGGING_INCLUDE_PII
//
// Example:
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	provider.Metrics().RecordUpstreamOperation(ctx, instrumentation.ServiceGmail,
//		instrumentation.OperationListLabels, instrumentation.StatusSuccess, time.Since(start))
package instrumentation
