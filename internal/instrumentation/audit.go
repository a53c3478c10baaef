package instrumentation

import (
	"context"
	"log/slog"
	"time"
)

// ToolInvocation captures one MCP tool call for audit logging.
//
// # Privacy Considerations
//
// Recipient is PII. General logs only carry RecipientDomain(); the full
// address is written by the audit stream when IncludePII is set.
type ToolInvocation struct {
	Tool string

	// Message details
	Recipient     string
	HasAttachment bool

	// Gmail call
	ServiceName string
	Operation   string
	ResultID    string

	// Execution details
	StartTime time.Time
	Duration  time.Duration
	Success   bool
	ErrorKind string
	Error     string

	// Tracing context
	TraceID string
	SpanID  string
}

// RecipientDomain returns the recipient's domain for lower-cardinality logging.
func (ti *ToolInvocation) RecipientDomain() string {
	return ExtractRecipientDomain(ti.Recipient)
}

// Status returns "success" or "error" based on the Success field.
func (ti *ToolInvocation) Status() string {
	if ti.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns slog attributes without the full recipient address.
func (ti *ToolInvocation) LogAttrs() []slog.Attr {
	return ti.attrs(false)
}

// LogAuditAttrs returns slog attributes including the full recipient address
// and span ID. The result contains PII.
func (ti *ToolInvocation) LogAuditAttrs() []slog.Attr {
	return ti.attrs(true)
}

func (ti *ToolInvocation) attrs(full bool) []slog.Attr {
	attrs := make([]slog.Attr, 0, 12)
	attrs = append(attrs, slog.String("tool", ti.Tool))
	if full {
		attrs = append(attrs, slog.String("recipient", ti.Recipient))
	} else {
		attrs = append(attrs, slog.String("recipient_domain", ti.RecipientDomain()))
	}
	attrs = append(attrs,
		slog.Duration("duration", ti.Duration),
		slog.Bool("success", ti.Success),
		slog.Bool("attachment", ti.HasAttachment),
	)

	optional := []struct {
		key, value string
		keep       bool
	}{
		{"service", ti.ServiceName, true},
		{"operation", ti.Operation, true},
		{"result_id", ti.ResultID, true},
		{"trace_id", ti.TraceID, true},
		{"span_id", ti.SpanID, full},
		{"error_kind", ti.ErrorKind, true},
		{"error", ti.Error, true},
	}
	for _, o := range optional {
		if o.keep && o.value != "" {
			attrs = append(attrs, slog.String(o.key, o.value))
		}
	}
	return attrs
}

// NewToolInvocation creates a new ToolInvocation with timing started.
// Call Complete() when the tool operation finishes.
func NewToolInvocation(tool string) *ToolInvocation {
	return &ToolInvocation{
		Tool:      tool,
		StartTime: time.Now(),
	}
}

// WithRecipient sets the recipient address and whether an attachment is sent.
func (ti *ToolInvocation) WithRecipient(address string, hasAttachment bool) *ToolInvocation {
	ti.Recipient = address
	ti.HasAttachment = hasAttachment
	return ti
}

// WithService sets the Google service and operation.
func (ti *ToolInvocation) WithService(serviceName, operation string) *ToolInvocation {
	ti.ServiceName = serviceName
	ti.Operation = operation
	return ti
}

// WithSpanContext extracts trace context from the current span.
func (ti *ToolInvocation) WithSpanContext(ctx context.Context) *ToolInvocation {
	ti.TraceID, ti.SpanID = SpanIDs(ctx)
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

// CompleteWithError marks the invocation as failed with the given kind and error.
func (ti *ToolInvocation) CompleteWithError(kind string, err error) *ToolInvocation {
	ti.ErrorKind = kind
	return ti.Complete(false, err)
}

// CompleteSuccess marks the invocation as successful with the Gmail result ID.
func (ti *ToolInvocation) CompleteSuccess(resultID string) *ToolInvocation {
	ti.ResultID = resultID
	return ti.Complete(true, nil)
}

// AuditLogger writes tool invocations to a dedicated slog stream.
type AuditLogger struct {
	logger     *slog.Logger
	level      slog.Level
	includePII bool
	enabled    bool
}

// NewAuditLogger creates an enabled AuditLogger that anonymizes recipients.
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: true})
}

// NewAuditLoggerWithConfig creates a new AuditLogger with the given configuration.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	if config.LogLevel != "" {
		if err := level.UnmarshalText([]byte(config.LogLevel)); err != nil {
			level = slog.LevelInfo
		}
	}
	return &AuditLogger{
		logger:     logger.With("component", "audit"),
		level:      level,
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// Enabled reports whether invocations are logged.
func (al *AuditLogger) Enabled() bool {
	return al != nil && al.enabled
}

// LogToolInvocation logs a tool invocation. Full recipient addresses are
// only included when the logger was configured with IncludePII.
func (al *AuditLogger) LogToolInvocation(ti *ToolInvocation) {
	if !al.Enabled() {
		return
	}

	var attrs []slog.Attr
	if al.includePII {
		attrs = ti.LogAuditAttrs()
	} else {
		attrs = ti.LogAttrs()
	}

	if ti.Success {
		al.logger.LogAttrs(context.Background(), al.level, "tool_executed", attrs...)
	} else {
		al.logger.LogAttrs(context.Background(), slog.LevelWarn, "tool_failed", attrs...)
	}
}
