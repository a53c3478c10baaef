package instrumentation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
)

const (
	testRecipient = "jane@example.com"
	testDomain    = "example.com"
	testTraceID   = "abc123def456"
	testSpanID    = "span789"
	testToolSend  = "sendEmail"
	testToolDraft = "createDraft"
	testMessageID = "18c2f0a1b2c3d4e5"
)

func attrMap(attrs []slog.Attr) map[string]slog.Value {
	m := make(map[string]slog.Value, len(attrs))
	for _, a := range attrs {
		m[a.Key] = a.Value
	}
	return m
}

func TestToolInvocation_NewAndComplete(t *testing.T) {
	ti := NewToolInvocation(testToolSend)

	if ti.Tool != testToolSend {
		t.Errorf("Tool = %q, want %q", ti.Tool, testToolSend)
	}
	if ti.StartTime.IsZero() {
		t.Error("StartTime should not be zero")
	}

	ti.CompleteSuccess(testMessageID)

	if !ti.Success {
		t.Error("Success should be true")
	}
	if ti.ResultID != testMessageID {
		t.Errorf("ResultID = %q, want %q", ti.ResultID, testMessageID)
	}
	if ti.Duration < 0 {
		t.Error("Duration should not be negative")
	}
	if ti.Error != "" {
		t.Errorf("Error should be empty, got %q", ti.Error)
	}
}

func TestToolInvocation_CompleteWithError(t *testing.T) {
	ti := NewToolInvocation(testToolDraft)

	ti.CompleteWithError("ProviderRejected", errors.New("Invalid To header"))

	if ti.Success {
		t.Error("Success should be false")
	}
	if ti.ErrorKind != "ProviderRejected" {
		t.Errorf("ErrorKind = %q, want %q", ti.ErrorKind, "ProviderRejected")
	}
	if ti.Error != "Invalid To header" {
		t.Errorf("Error = %q, want %q", ti.Error, "Invalid To header")
	}
	if ti.Status() != StatusError {
		t.Errorf("Status() = %q, want %q", ti.Status(), StatusError)
	}
}

func TestToolInvocation_RecipientDomain(t *testing.T) {
	ti := NewToolInvocation(testToolSend).WithRecipient("Jane@Example.COM", true)

	if got := ti.RecipientDomain(); got != testDomain {
		t.Errorf("RecipientDomain() = %q, want %q", got, testDomain)
	}
	if !ti.HasAttachment {
		t.Error("HasAttachment should be true")
	}
}

func TestToolInvocation_LogAttrs(t *testing.T) {
	ti := NewToolInvocation(testToolSend).
		WithRecipient(testRecipient, false).
		WithService(ServiceGmail, OperationSend).
		CompleteSuccess(testMessageID)
	ti.TraceID = testTraceID
	ti.SpanID = testSpanID

	attrs := attrMap(ti.LogAttrs())

	if _, ok := attrs["recipient"]; ok {
		t.Error("LogAttrs must not contain the full recipient")
	}
	if got := attrs["recipient_domain"].String(); got != testDomain {
		t.Errorf("recipient_domain = %q, want %q", got, testDomain)
	}
	if got := attrs["operation"].String(); got != OperationSend {
		t.Errorf("operation = %q, want %q", got, OperationSend)
	}
	if got := attrs["result_id"].String(); got != testMessageID {
		t.Errorf("result_id = %q, want %q", got, testMessageID)
	}
	if got := attrs["trace_id"].String(); got != testTraceID {
		t.Errorf("trace_id = %q, want %q", got, testTraceID)
	}
	if _, ok := attrs["span_id"]; ok {
		t.Error("LogAttrs should not include span_id")
	}
	if _, ok := attrs["error"]; ok {
		t.Error("error should be absent on success")
	}
}

func TestToolInvocation_LogAuditAttrs(t *testing.T) {
	ti := NewToolInvocation(testToolDraft).
		WithRecipient(testRecipient, true).
		WithService(ServiceGmail, OperationCreateDraft).
		CompleteWithError("TransportTimeout", errors.New("request to Gmail timed out"))
	ti.SpanID = testSpanID

	attrs := attrMap(ti.LogAuditAttrs())

	if got := attrs["recipient"].String(); got != testRecipient {
		t.Errorf("recipient = %q, want %q", got, testRecipient)
	}
	if got := attrs["span_id"].String(); got != testSpanID {
		t.Errorf("span_id = %q, want %q", got, testSpanID)
	}
	if got := attrs["error_kind"].String(); got != "TransportTimeout" {
		t.Errorf("error_kind = %q, want %q", got, "TransportTimeout")
	}
	if !attrs["attachment"].Bool() {
		t.Error("attachment should be true")
	}
}

func TestToolInvocation_WithSpanContext_NoSpan(t *testing.T) {
	ti := NewToolInvocation(testToolSend).WithSpanContext(context.Background())
	if ti.TraceID != "" || ti.SpanID != "" {
		t.Errorf("expected empty trace context, got %q/%q", ti.TraceID, ti.SpanID)
	}
}

func TestAuditLogger_PII(t *testing.T) {
	tests := []struct {
		name          string
		includePII    bool
		wantRecipient bool
	}{
		{name: "anonymized", includePII: false, wantRecipient: false},
		{name: "with pii", includePII: true, wantRecipient: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))
			al := NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: true, IncludePII: tt.includePII})

			al.LogToolInvocation(NewToolInvocation(testToolSend).
				WithRecipient(testRecipient, false).
				CompleteSuccess(testMessageID))

			var entry map[string]any
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("failed to decode log entry: %v", err)
			}
			if entry["msg"] != "tool_executed" {
				t.Errorf("msg = %v, want tool_executed", entry["msg"])
			}
			if entry["component"] != "audit" {
				t.Errorf("component = %v, want audit", entry["component"])
			}
			_, hasRecipient := entry["recipient"]
			if hasRecipient != tt.wantRecipient {
				t.Errorf("recipient present = %v, want %v", hasRecipient, tt.wantRecipient)
			}
			if entry["recipient_domain"] == nil && !tt.wantRecipient {
				t.Error("anonymized entry should carry recipient_domain")
			}
		})
	}
}

func TestAuditLogger_Failure(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	al.LogToolInvocation(NewToolInvocation(testToolDraft).
		WithRecipient(testRecipient, false).
		CompleteWithError("ProviderRejected", errors.New("Invalid To header")))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to decode log entry: %v", err)
	}
	if entry["level"] != "WARN" {
		t.Errorf("level = %v, want WARN", entry["level"])
	}
	if entry["msg"] != "tool_failed" {
		t.Errorf("msg = %v, want tool_failed", entry["msg"])
	}
}

func TestAuditLogger_Disabled(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLoggerWithConfig(slog.New(slog.NewJSONHandler(&buf, nil)), AuditLoggingConfig{Enabled: false})

	al.LogToolInvocation(NewToolInvocation(testToolSend).CompleteSuccess(testMessageID))

	if buf.Len() != 0 {
		t.Errorf("disabled audit logger wrote %q", buf.String())
	}

	var nilLogger *AuditLogger
	if nilLogger.Enabled() {
		t.Error("nil audit logger should report disabled")
	}
	nilLogger.LogToolInvocation(NewToolInvocation(testToolSend))
}

func TestAuditLogger_Level(t *testing.T) {
	tests := []struct {
		level     string
		wantLevel string
		wantLine  bool
	}{
		{level: "", wantLevel: "INFO", wantLine: true},
		{level: "warn", wantLevel: "WARN", wantLine: true},
		{level: "debug", wantLine: false}, // below the handler's info threshold
		{level: "loud", wantLevel: "INFO", wantLine: true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			al := NewAuditLoggerWithConfig(slog.New(slog.NewJSONHandler(&buf, nil)),
				AuditLoggingConfig{Enabled: true, LogLevel: tt.level})

			al.LogToolInvocation(NewToolInvocation(testToolSend).CompleteSuccess(testMessageID))

			if !tt.wantLine {
				if buf.Len() != 0 {
					t.Errorf("expected no output, got %q", buf.String())
				}
				return
			}
			var entry map[string]any
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("failed to decode log entry: %v", err)
			}
			if entry["level"] != tt.wantLevel {
				t.Errorf("level = %v, want %s", entry["level"], tt.wantLevel)
			}
		})
	}
}
