package common

import (
	"context"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/gmail-sender/internal/instrumentation"
	"github.com/teemow/gmail-sender/internal/server"
)

// Argument names shared by the mail tools and read by the instrumentation.
const (
	ArgRecipient      = "recipient"
	ArgSubject        = "subject"
	ArgBody           = "body"
	ArgAttachmentPath = "attachmentPath"
)

var errErrorResult = errors.New("tool returned an error result")

// Outcome is what a handler reports about its call beyond the MCP result:
// the Gmail ID on success, the error kind on failure.
type Outcome struct {
	ResultID  string
	ErrorKind string
	Err       error
}

type outcomeKey struct{}

// ReportSuccess records the provider-assigned ID for the current call.
// It is a no-op outside an instrumented handler.
func ReportSuccess(ctx context.Context, resultID string) {
	if o, ok := ctx.Value(outcomeKey{}).(*Outcome); ok {
		o.ResultID = resultID
	}
}

// ReportFailure records a classified failure for the current call. Handlers
// call it also when the failure is rendered as plain guidance text, so the
// call is still counted as failed.
func ReportFailure(ctx context.Context, kind string, err error) {
	if o, ok := ctx.Value(outcomeKey{}).(*Outcome); ok {
		o.ErrorKind = kind
		o.Err = err
	}
}

// InstrumentedToolHandler wraps a mail tool handler with a span, metrics and
// audit logging. The recipient and attachment are read from the request
// arguments; the result ID and error kind come from ReportSuccess and
// ReportFailure.
//
// Usage:
//
//	s.AddTool(tool, common.InstrumentedToolHandler("sendEmail", instrumentation.OperationSend, sc, handler))
func InstrumentedToolHandler(
	toolName string,
	operation string,
	sc *server.ServerContext,
	handler mcpserver.ToolHandlerFunc,
) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		recipient := request.GetString(ArgRecipient, "")
		hasAttachment := request.GetString(ArgAttachmentPath, "") != ""

		ctx, span := instrumentation.StartToolSpan(ctx, toolName,
			instrumentation.NewSpanAttributeBuilder().
				WithOperation(operation).
				WithRecipientDomain(recipient).
				WithAttachment(hasAttachment).
				Build()...)
		defer span.End()

		outcome := &Outcome{}
		ctx = context.WithValue(ctx, outcomeKey{}, outcome)

		start := time.Now()
		invocation := instrumentation.NewToolInvocation(toolName).
			WithSpanContext(ctx).
			WithService(instrumentation.ServiceGmail, operation).
			WithRecipient(recipient, hasAttachment)

		result, err := handler(ctx, request)
		duration := time.Since(start)

		failed := err != nil || (result != nil && result.IsError) || outcome.ErrorKind != ""

		status := instrumentation.StatusSuccess
		if failed {
			status = instrumentation.StatusError
			cause := err
			if cause == nil {
				cause = outcome.Err
			}
			if cause == nil {
				cause = errErrorResult
			}
			invocation.CompleteWithError(outcome.ErrorKind, cause)
			span.SetAttributes(instrumentation.NewSpanAttributeBuilder().
				WithErrorKind(outcome.ErrorKind).
				Build()...)
			instrumentation.SetSpanError(span, cause)
		} else {
			invocation.CompleteSuccess(outcome.ResultID)
			span.SetAttributes(instrumentation.NewSpanAttributeBuilder().
				WithResult(resultType(operation), outcome.ResultID).
				Build()...)
			instrumentation.SetSpanSuccess(span)
		}

		sc.Metrics().RecordToolResult(ctx, instrumentation.ToolResult{
			Tool:            toolName,
			Status:          status,
			ErrorKind:       outcome.ErrorKind,
			RecipientDomain: instrumentation.ExtractRecipientDomain(recipient),
			Attachment:      hasAttachment,
		}, duration)
		sc.AuditLogger().LogToolInvocation(invocation)

		return result, err
	}
}

// resultType names the kind of ID a mail operation returns.
func resultType(operation string) string {
	if operation == instrumentation.OperationCreateDraft {
		return "draft"
	}
	return "message"
}
