// Package instrumentation provides OpenTelemetry metrics, tracing and audit
// logging for the gmail-sender MCP server.
//
// # Metrics
//
// Authorization listener:
//   - http_requests_total: requests by method, path, and status
//   - http_request_duration_seconds: request durations
//
// Gmail API:
//   - google_api_operations_total: calls by service, operation (send,
//     create_draft), and status
//   - google_api_operation_duration_seconds: call durations
//   - mail_attachment_bytes: attachment sizes
//
// OAuth:
//   - oauth_auth_total: authorization code exchanges by result
//   - oauth_token_refresh_total: refresh attempts by result
//
// MCP tools:
//   - mcp_tool_invocations_total: invocations by tool, status, and error kind
//   - mcp_tool_duration_seconds: tool durations
//
// Recipient addresses never become labels. With METRICS_DETAILED_LABELS the
// recipient domain is added to tool metrics.
//
// # Tracing
//
// Spans are created for MCP tool invocations (tool.<name>), Gmail API calls
// (google.gmail.send, google.gmail.create_draft) and the authorization code
// exchange (google.oauth.exchange).
//
// # Configuration
//
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: prometheus, otlp, stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout, none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: gmail-sender)
//   - AUDIT_LOGGING_ENABLED, AUDIT_LOGGING_INCLUDE_PII: audit stream settings
//
// The stdout exporters write to stderr because stdout carries the MCP
// protocol.
package instrumentation
