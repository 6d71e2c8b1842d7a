package gmail_tools

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/mailbot/internal/gateway"
	"github.com/teemow/mailbot/internal/google"
	"github.com/teemow/mailbot/internal/instrumentation"
	"github.com/teemow/mailbot/internal/server"
	"github.com/teemow/mailbot/internal/tools/batch"
	"github.com/teemow/mailbot/internal/tools/common"
)

type emailsResult struct {
	Emails any `json:"emails"`
}

// RegisterEmailTools registers the email fetch and label mutation tools.
func RegisterEmailTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	fetchEmailsTool := mcp.NewTool("gmail_fetch_emails",
		mcp.WithDescription("Fetch the most recent emails with subject, sender, date, plain-text body and label ids"),
		mcp.WithNumber("count",
			mcp.Description("Number of emails to fetch (default: 10, max: 500)"),
		),
	)
	s.AddTool(fetchEmailsTool, common.InstrumentedToolHandlerWithService("gmail_fetch_emails",
		instrumentation.ServiceGmail, instrumentation.OperationFetchEmails, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleFetchEmails(ctx, request, sc)
		}))

	if readOnly {
		return nil
	}

	applyLabelsTool := mcp.NewTool("gmail_apply_labels",
		mcp.WithDescription("Add labels to one or more emails"),
		mcp.WithString("emailId",
			mcp.Required(),
			mcp.Description("Email ID, or an array or comma-separated list of email IDs"),
		),
		mcp.WithString("labelIds",
			mcp.Required(),
			mcp.Description("Label ID (string), comma-separated label IDs or an array of label IDs to add"),
		),
	)
	s.AddTool(applyLabelsTool, common.InstrumentedToolHandlerWithService("gmail_apply_labels",
		instrumentation.ServiceGmail, instrumentation.OperationApplyLabels, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleModifyLabels(ctx, request, sc, true)
		}))

	removeLabelsTool := mcp.NewTool("gmail_remove_labels",
		mcp.WithDescription("Remove labels from one or more emails"),
		mcp.WithString("emailId",
			mcp.Required(),
			mcp.Description("Email ID, or an array or comma-separated list of email IDs"),
		),
		mcp.WithString("labelIds",
			mcp.Required(),
			mcp.Description("Label ID (string), comma-separated label IDs or an array of label IDs to remove"),
		),
	)
	s.AddTool(removeLabelsTool, common.InstrumentedToolHandlerWithService("gmail_remove_labels",
		instrumentation.ServiceGmail, instrumentation.OperationRemoveLabels, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleModifyLabels(ctx, request, sc, false)
		}))

	return nil
}

func handleFetchEmails(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	count := common.IntArg(request.GetArguments(), "count", gateway.DefaultEmailCount)

	emails, err := sc.Gateway().ListEmails(ctx, google.TokenFromContext(ctx), count)
	if err != nil {
		return common.GatewayError(err, server.MsgFetchEmailsFailed), nil
	}
	return common.JSONResult(emailsResult{Emails: emails})
}

// handleModifyLabels serves gmail_apply_labels and gmail_remove_labels. A
// single email id yields {"success": true}; several ids yield a per-email
// batch report. Arguments that do not parse are passed on empty so the
// gateway reports authentication before validation, as the HTTP API does.
func handleModifyLabels(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext, add bool) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	emailIDs, err := batch.ParseIDs(args["emailId"], "emailId")
	if err != nil || len(emailIDs) == 0 {
		emailIDs = []string{""}
	}
	labelIDs, err := batch.ParseIDs(args["labelIds"], "labelIds")
	if err != nil {
		labelIDs = nil
	}

	svc := sc.Gateway()
	token := google.TokenFromContext(ctx)
	fallback := server.MsgRemoveLabelsFailed
	modify := svc.RemoveLabels
	if add {
		fallback = server.MsgApplyLabelsFailed
		modify = svc.ApplyLabels
	}

	if len(emailIDs) == 1 {
		if err := modify(ctx, token, emailIDs[0], labelIDs); err != nil {
			return common.GatewayError(err, fallback), nil
		}
		return common.JSONResult(successResult{Success: true})
	}

	results := batch.Process(emailIDs, func(id string) error {
		if err := modify(ctx, token, id, labelIDs); err != nil {
			return errors.New(gateway.PublicMessage(err, fallback))
		}
		return nil
	})
	summary := batch.Summarize(results)
	if summary.Successful == 0 {
		return mcp.NewToolResultError(batch.FormatResults(results)), nil
	}
	return mcp.NewToolResultText(batch.FormatResults(results)), nil
}
