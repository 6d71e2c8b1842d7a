package common

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/mailbot/internal/google"
	"github.com/teemow/mailbot/internal/instrumentation"
	"github.com/teemow/mailbot/internal/server"
)

// ToolHandler is the signature of an MCP tool handler.
type ToolHandler = func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// InstrumentedToolHandler wraps a tool handler with metrics and audit logging.
//
// Usage:
//
//	s.AddTool(myTool, common.InstrumentedToolHandler("my_tool", sc, handler))
func InstrumentedToolHandler(toolName string, sc *server.ServerContext, handler ToolHandler) ToolHandler {
	return instrument(toolName, "", "", sc, handler)
}

// InstrumentedToolHandlerWithService is like InstrumentedToolHandler but also
// records the upstream service and operation the tool drives in the audit
// record. Upstream call metrics are recorded by the gateway itself.
//
// Usage:
//
//	s.AddTool(myTool, common.InstrumentedToolHandlerWithService("gmail_list_labels", instrumentation.ServiceGmail, instrumentation.OperationListLabels, sc, handler))
func InstrumentedToolHandlerWithService(toolName, serviceName, operation string, sc *server.ServerContext, handler ToolHandler) ToolHandler {
	return instrument(toolName, serviceName, operation, sc, handler)
}

func instrument(toolName, serviceName, operation string, sc *server.ServerContext, handler ToolHandler) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		metrics := sc.Metrics()
		auditLogger := sc.AuditLogger()

		if metrics == nil && auditLogger == nil {
			return handler(ctx, request)
		}

		ctx, span := instrumentation.StartToolSpan(ctx, toolName)
		start := time.Now()
		invocation := instrumentation.NewToolInvocation(toolName).
			WithSpanContext(ctx).
			WithSubject(SubjectFromContext(ctx)).
			WithRequestID(middleware.GetReqID(ctx))
		if serviceName != "" {
			invocation.WithService(serviceName, operation)
		}

		result, err := handler(ctx, request)
		duration := time.Since(start)

		status := instrumentation.StatusSuccess
		success := err == nil && (result == nil || !result.IsError)
		if !success {
			status = instrumentation.StatusError
		}
		invocation.Complete(success, err)
		instrumentation.EndSpan(span, err)

		metrics.RecordToolInvocation(ctx, toolName, status, duration)
		auditLogger.LogToolInvocation(invocation)

		return result, err
	}
}

// SubjectFromContext returns the audit subject of a tool call: the session
// id the token was resolved for, or "" for bearer and static tokens.
func SubjectFromContext(ctx context.Context) string {
	return google.SessionIDFromContext(ctx)
}
