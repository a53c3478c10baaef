package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	attrMethod          = "method"
	attrPath            = "path"
	attrStatus          = "status"
	attrOperation       = "operation"
	attrService         = "service"
	attrResult          = "result"
	attrTool            = "tool"
	attrErrorKind       = "error_kind"
	attrRecipientDomain = "recipient_domain"
	attrAttachment      = "attachment"
)

// Metrics provides methods for recording observability metrics.
type Metrics struct {
	// Authorization listener
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	// Gmail API
	googleAPIOperationsTotal   metric.Int64Counter
	googleAPIOperationDuration metric.Float64Histogram
	attachmentBytes            metric.Int64Histogram

	// OAuth
	oauthAuthTotal         metric.Int64Counter
	oauthTokenRefreshTotal metric.Int64Counter

	// MCP tools
	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	// detailedLabels adds the recipient domain to tool metrics.
	detailedLabels bool
}

// Histogram bucket boundaries.
var (
	httpBuckets  = []float64{0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0}
	apiBuckets   = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0}
	bytesBuckets = []float64{1 << 10, 64 << 10, 1 << 20, 5 << 20, 10 << 20, 25 << 20}
)

// NewMetrics creates every instrument on meter. detailedLabels adds the
// recipient domain to tool metrics.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	b := &instrumentBuilder{meter: meter}
	m := &Metrics{
		httpRequestsTotal: b.counter("http_requests_total",
			"Total number of HTTP requests served by the authorization listener", "{request}"),
		httpRequestDuration: b.seconds("http_request_duration_seconds",
			"HTTP request duration in seconds", httpBuckets),

		googleAPIOperationsTotal: b.counter("google_api_operations_total",
			"Total number of Gmail API calls", "{operation}"),
		googleAPIOperationDuration: b.seconds("google_api_operation_duration_seconds",
			"Gmail API call duration in seconds", apiBuckets),
		attachmentBytes: b.bytes("mail_attachment_bytes",
			"Size of attachments added to outgoing messages", bytesBuckets),

		oauthAuthTotal: b.counter("oauth_auth_total",
			"Total number of OAuth authorization code exchanges", "{attempt}"),
		oauthTokenRefreshTotal: b.counter("oauth_token_refresh_total",
			"Total number of OAuth token refresh attempts", "{attempt}"),

		toolInvocationsTotal: b.counter("mcp_tool_invocations_total",
			"Total number of MCP tool invocations", "{invocation}"),
		toolDuration: b.seconds("mcp_tool_duration_seconds",
			"MCP tool execution duration in seconds", apiBuckets),

		detailedLabels: detailedLabels,
	}
	if b.err != nil {
		return nil, b.err
	}
	return m, nil
}

// instrumentBuilder keeps the first creation error so NewMetrics can declare
// all instruments in one literal.
type instrumentBuilder struct {
	meter metric.Meter
	err   error
}

func (b *instrumentBuilder) fail(kind, name string, err error) {
	if b.err == nil && err != nil {
		b.err = fmt.Errorf("failed to create %s %s: %w", name, kind, err)
	}
}

func (b *instrumentBuilder) counter(name, desc, unit string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	b.fail("counter", name, err)
	return c
}

func (b *instrumentBuilder) seconds(name, desc string, buckets []float64) metric.Float64Histogram {
	h, err := b.meter.Float64Histogram(name,
		metric.WithDescription(desc),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(buckets...))
	b.fail("histogram", name, err)
	return h
}

func (b *instrumentBuilder) bytes(name, desc string, buckets []float64) metric.Int64Histogram {
	h, err := b.meter.Int64Histogram(name,
		metric.WithDescription(desc),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(buckets...))
	b.fail("histogram", name, err)
	return h
}

// RecordHTTPRequest records a request to the authorization listener.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordGoogleAPIOperation records one call to Google, labelled by service,
// operation and status.
func (m *Metrics) RecordGoogleAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	if m == nil || m.googleAPIOperationsTotal == nil || m.googleAPIOperationDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.googleAPIOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.googleAPIOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordAttachment records the size of an attachment added to a message.
func (m *Metrics) RecordAttachment(ctx context.Context, operation string, size int64) {
	if m == nil || m.attachmentBytes == nil {
		return
	}

	m.attachmentBytes.Record(ctx, size, metric.WithAttributes(
		attribute.String(attrOperation, operation),
	))
}

// RecordOAuthAuth records an authorization code exchange with an
// OAuthResult value.
func (m *Metrics) RecordOAuthAuth(ctx context.Context, result string) {
	if m == nil || m.oauthAuthTotal == nil {
		return
	}

	m.oauthAuthTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrResult, result),
	))
}

// RecordOAuthTokenRefresh records a refresh attempt; "expired" means no
// refresh token was available.
func (m *Metrics) RecordOAuthTokenRefresh(ctx context.Context, result string) {
	if m == nil || m.oauthTokenRefreshTotal == nil {
		return
	}

	m.oauthTokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrResult, result),
	))
}

// RecordToolInvocation records an MCP tool invocation with tool name, status, and duration.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	m.RecordToolResult(ctx, ToolResult{Tool: toolName, Status: status}, duration)
}

// ToolResult describes the outcome of one tool call for metrics.
type ToolResult struct {
	Tool      string
	Status    string
	ErrorKind string

	// RecipientDomain is only used when detailed labels are enabled.
	RecipientDomain string
	Attachment      bool
}

// RecordToolResult records an MCP tool invocation with its error kind and,
// when detailed labels are enabled, the recipient domain.
func (m *Metrics) RecordToolResult(ctx context.Context, r ToolResult, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, r.Tool),
		attribute.String(attrStatus, r.Status),
		attribute.Bool(attrAttachment, r.Attachment),
	}
	if r.ErrorKind != "" {
		attrs = append(attrs, attribute.String(attrErrorKind, r.ErrorKind))
	}
	if m.detailedLabels && r.RecipientDomain != "" {
		attrs = append(attrs, attribute.String(attrRecipientDomain, r.RecipientDomain))
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
