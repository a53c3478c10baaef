package mail_tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/gmail-sender/internal/gmail"
	"github.com/teemow/gmail-sender/internal/instrumentation"
	"github.com/teemow/gmail-sender/internal/logging"
	"github.com/teemow/gmail-sender/internal/server"
	"github.com/teemow/gmail-sender/internal/tools/common"
)

// Tool names exposed over MCP.
const (
	ToolSendEmail   = "sendEmail"
	ToolCreateDraft = "createDraft"
)

// mailFunc is Mailer.SendMessage or Mailer.CreateDraft.
type mailFunc func(m *gmail.Mailer, ctx context.Context, req gmail.SendRequest) (string, error)

// RegisterMailTools registers sendEmail and createDraft with the MCP server
func RegisterMailTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	if sc == nil {
		return fmt.Errorf("server context is required")
	}

	sendEmailTool := mcp.NewTool(ToolSendEmail,
		append([]mcp.ToolOption{mcp.WithDescription("Send an email through Gmail. Requires OAuth authentication.")}, mailArguments()...)...,
	)
	s.AddTool(sendEmailTool, common.InstrumentedToolHandler(
		ToolSendEmail, instrumentation.OperationSend, sc,
		newMailHandler(sc, (*gmail.Mailer).SendMessage, "Email sent successfully! Message ID: %s"),
	))

	createDraftTool := mcp.NewTool(ToolCreateDraft,
		append([]mcp.ToolOption{mcp.WithDescription("Create an email draft in Gmail. Requires OAuth authentication.")}, mailArguments()...)...,
	)
	s.AddTool(createDraftTool, common.InstrumentedToolHandler(
		ToolCreateDraft, instrumentation.OperationCreateDraft, sc,
		newMailHandler(sc, (*gmail.Mailer).CreateDraft, "Draft created successfully! Draft ID: %s"),
	))

	return nil
}

// mailArguments is the argument schema shared by both tools.
func mailArguments() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString(common.ArgRecipient,
			mcp.Required(),
			mcp.Description("Email address of the recipient"),
		),
		mcp.WithString(common.ArgSubject,
			mcp.Required(),
			mcp.Description("Subject line of the email"),
		),
		mcp.WithString(common.ArgBody,
			mcp.Required(),
			mcp.Description("Body content of the email"),
		),
		mcp.WithString(common.ArgAttachmentPath,
			mcp.Description("Optional: Absolute path to a file to attach"),
		),
	}
}

// authRequiredText is returned, as a normal result, when no credential is
// stored.
func authRequiredText(authURL string) string {
	return fmt.Sprintf("Authentication required. Please visit %s to authenticate with your Gmail account.", authURL)
}

func newMailHandler(sc *server.ServerContext, send mailFunc, successFormat string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		req, err := parseSendRequest(request)
		if err != nil {
			common.ReportFailure(ctx, string(gmail.KindInvalidMessage), err)
			return mcp.NewToolResultError("Error: " + err.Error()), nil
		}

		id, err := send(sc.Mailer(), ctx, req)
		if err != nil {
			kind := gmail.KindOf(err)
			common.ReportFailure(ctx, string(kind), err)

			if kind == gmail.KindNotAuthenticated {
				return mcp.NewToolResultText(authRequiredText(sc.AuthURL())), nil
			}

			logging.WithTool(sc.Logger(), request.Params.Name).Debug("Tool call failed",
				logging.ErrorKind(string(kind)), logging.Err(err))
			return mcp.NewToolResultError("Error: " + err.Error()), nil
		}

		common.ReportSuccess(ctx, id)
		return mcp.NewToolResultText(fmt.Sprintf(successFormat, id)), nil
	}
}

// parseSendRequest reads the tool arguments. recipient, subject and body must
// be present as strings; attachmentPath is optional.
func parseSendRequest(request mcp.CallToolRequest) (gmail.SendRequest, error) {
	recipient, err := request.RequireString(common.ArgRecipient)
	if err != nil {
		return gmail.SendRequest{}, err
	}
	subject, err := request.RequireString(common.ArgSubject)
	if err != nil {
		return gmail.SendRequest{}, err
	}
	body, err := request.RequireString(common.ArgBody)
	if err != nil {
		return gmail.SendRequest{}, err
	}

	return gmail.SendRequest{
		Recipient:      recipient,
		Subject:        subject,
		Body:           body,
		AttachmentPath: request.GetString(common.ArgAttachmentPath, ""),
	}, nil
}
