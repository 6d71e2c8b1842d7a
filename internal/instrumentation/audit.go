package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"github.com/teemow/mailbot/internal/logging"
)

// ToolInvocation is the audit record for one capability registry call.
type ToolInvocation struct {
	Tool string

	// Subject identifies the session that supplied the token (a session id
	// or mailbox address). It is hashed unless PII logging is enabled.
	Subject string

	ServiceName string
	Operation   string
	RequestID   string

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
}

// NewToolInvocation creates a new ToolInvocation with timing started.
func NewToolInvocation(tool string) *ToolInvocation {
	return &ToolInvocation{
		Tool:      tool,
		StartTime: time.Now(),
	}
}

// WithSubject records the session subject.
func (ti *ToolInvocation) WithSubject(subject string) *ToolInvocation {
	ti.Subject = subject
	return ti
}

// WithService sets the upstream service and operation.
func (ti *ToolInvocation) WithService(serviceName, operation string) *ToolInvocation {
	ti.ServiceName = serviceName
	ti.Operation = operation
	return ti
}

// WithRequestID records the request id the call arrived with.
func (ti *ToolInvocation) WithRequestID(id string) *ToolInvocation {
	ti.RequestID = id
	return ti
}

// WithSpanContext copies the trace id from the span in ctx.
func (ti *ToolInvocation) WithSpanContext(ctx context.Context) *ToolInvocation {
	ti.TraceID = GetTraceID(ctx)
	return ti
}

// Complete marks the invocation as completed and calculates duration.
func (ti *ToolInvocation) Complete(success bool, err error) *ToolInvocation {
	ti.Duration = time.Since(ti.StartTime)
	ti.Success = success
	if err != nil {
		ti.Error = err.Error()
	}
	return ti
}

// Status returns "success" or "error" based on the Success field.
func (ti *ToolInvocation) Status() string {
	if ti.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns the structured attributes for the record. The subject is
// hashed unless includePII is set.
func (ti *ToolInvocation) LogAttrs(includePII bool) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("tool", ti.Tool),
		slog.Duration("duration", ti.Duration),
		slog.Bool("success", ti.Success),
	}

	if ti.Subject != "" {
		if includePII {
			attrs = append(attrs, slog.String("subject", ti.Subject))
		} else {
			attrs = append(attrs, logging.UserHash(ti.Subject))
		}
	}
	if ti.ServiceName != "" {
		attrs = append(attrs, slog.String("service", ti.ServiceName))
	}
	if ti.Operation != "" {
		attrs = append(attrs, slog.String("operation", ti.Operation))
	}
	if ti.RequestID != "" {
		attrs = append(attrs, slog.String("request_id", ti.RequestID))
	}
	if ti.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ti.TraceID))
	}
	if ti.Error != "" {
		attrs = append(attrs, slog.String("error", ti.Error))
	}
	return attrs
}

// AuditLogger writes tool invocation records.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates an AuditLogger. A nil logger means slog.Default().
func NewAuditLogger(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// LogToolInvocation writes the record at info level on success and warn on failure.
func (al *AuditLogger) LogToolInvocation(ti *ToolInvocation) {
	if al == nil || !al.enabled {
		return
	}

	attrs := ti.LogAttrs(al.includePII)
	level := slog.LevelInfo
	msg := "tool_executed"
	if !ti.Success {
		level = slog.LevelWarn
		msg = "tool_failed"
	}
	al.logger.LogAttrs(context.Background(), level, msg, attrs...)
}
