package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the tracer used for all spans of this module.
const TracerName = "github.com/teemow/gmail-sender"

// Span attribute keys for operations.
const (
	// SpanAttrTool is the MCP tool name attribute.
	SpanAttrTool = "mcp.tool"

	// SpanAttrService is the Google service name attribute.
	SpanAttrService = "google.service"

	// SpanAttrOperation is the operation type attribute.
	SpanAttrOperation = "google.operation"

	// SpanAttrStatus is the operation status attribute.
	SpanAttrStatus = "mcp.status"

	// SpanAttrRecipientDomain is the recipient's domain. Full addresses are
	// never put on spans.
	SpanAttrRecipientDomain = "mail.recipient_domain"

	// SpanAttrAttachment reports whether the message carries an attachment.
	SpanAttrAttachment = "mail.attachment"

	// SpanAttrResultType is "message" or "draft".
	SpanAttrResultType = "mail.result_type"

	// SpanAttrResultID is the Gmail message or draft ID.
	SpanAttrResultID = "mail.result_id"

	// SpanAttrErrorKind is the classified failure kind.
	SpanAttrErrorKind = "mail.error_kind"
)

// SpanAttributeBuilder collects span attributes under the keys above.
//
//	attrs := NewSpanAttributeBuilder().WithOperation(OperationSend).WithAttachment(true).Build()
type SpanAttributeBuilder struct {
	attrs []attribute.KeyValue
}

// NewSpanAttributeBuilder creates a new SpanAttributeBuilder.
func NewSpanAttributeBuilder() *SpanAttributeBuilder {
	return &SpanAttributeBuilder{
		attrs: make([]attribute.KeyValue, 0, 8),
	}
}

// WithTool adds the MCP tool name attribute.
func (b *SpanAttributeBuilder) WithTool(tool string) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.String(SpanAttrTool, tool))
	return b
}

// WithService adds the Google service name attribute.
func (b *SpanAttributeBuilder) WithService(service string) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.String(SpanAttrService, service))
	return b
}

// WithOperation adds the operation type attribute.
func (b *SpanAttributeBuilder) WithOperation(operation string) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.String(SpanAttrOperation, operation))
	return b
}

// WithRecipientDomain adds the recipient domain derived from address.
func (b *SpanAttributeBuilder) WithRecipientDomain(address string) *SpanAttributeBuilder {
	if address != "" {
		b.attrs = append(b.attrs, attribute.String(SpanAttrRecipientDomain, ExtractRecipientDomain(address)))
	}
	return b
}

// WithAttachment adds the attachment indicator.
func (b *SpanAttributeBuilder) WithAttachment(hasAttachment bool) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.Bool(SpanAttrAttachment, hasAttachment))
	return b
}

// WithResult adds the result type and ID.
func (b *SpanAttributeBuilder) WithResult(resultType, resultID string) *SpanAttributeBuilder {
	if resultType != "" {
		b.attrs = append(b.attrs, attribute.String(SpanAttrResultType, resultType))
	}
	if resultID != "" {
		b.attrs = append(b.attrs, attribute.String(SpanAttrResultID, resultID))
	}
	return b
}

// WithErrorKind adds the classified failure kind.
func (b *SpanAttributeBuilder) WithErrorKind(kind string) *SpanAttributeBuilder {
	if kind != "" {
		b.attrs = append(b.attrs, attribute.String(SpanAttrErrorKind, kind))
	}
	return b
}

// Build returns the constructed attributes.
func (b *SpanAttributeBuilder) Build() []attribute.KeyValue {
	return b.attrs
}

// StartToolSpan starts the server span of an MCP tool call, named
// "tool.<name>". The caller ends it.
func StartToolSpan(ctx context.Context, toolName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+1)
	allAttrs = append(allAttrs, attribute.String(SpanAttrTool, toolName))
	allAttrs = append(allAttrs, attrs...)

	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, "tool."+toolName,
		trace.WithAttributes(allAttrs...),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// StartGoogleAPISpan starts a client span named "google.<service>.<operation>"
// for one call to Google.
func StartGoogleAPISpan(ctx context.Context, service, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+2)
	allAttrs = append(allAttrs,
		attribute.String(SpanAttrService, service),
		attribute.String(SpanAttrOperation, operation),
	)
	allAttrs = append(allAttrs, attrs...)

	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, "google."+service+"."+operation,
		trace.WithAttributes(allAttrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// SetSpanError records an error on the span and sets the status to error.
func SetSpanError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess sets the span status to OK.
func SetSpanSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// AddEvent records a named event on the span carried by ctx. It is a
// no-op when ctx holds no recording span.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SpanIDs returns the trace and span IDs of the span in ctx, or two empty
// strings when there is none.
func SpanIDs(ctx context.Context) (traceID, spanID string) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return "", ""
	}
	return sc.TraceID().String(), sc.SpanID().String()
}
