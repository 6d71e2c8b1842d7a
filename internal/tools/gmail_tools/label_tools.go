package gmail_tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/mailbot/internal/google"
	"github.com/teemow/mailbot/internal/instrumentation"
	"github.com/teemow/mailbot/internal/server"
	"github.com/teemow/mailbot/internal/tools/common"
)

type labelsResult struct {
	Labels any `json:"labels"`
}

type labelResult struct {
	Label any `json:"label"`
}

type successResult struct {
	Success bool `json:"success"`
}

// RegisterLabelTools registers the label management tools.
func RegisterLabelTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	listLabelsTool := mcp.NewTool("gmail_list_labels",
		mcp.WithDescription("List all Gmail labels, system and user, with their ids. Use the ids with gmail_apply_labels."),
	)
	s.AddTool(listLabelsTool, common.InstrumentedToolHandlerWithService("gmail_list_labels",
		instrumentation.ServiceGmail, instrumentation.OperationListLabels, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListLabels(ctx, request, sc)
		}))

	if readOnly {
		return nil
	}

	createLabelTool := mcp.NewTool("gmail_create_label",
		mcp.WithDescription("Create a user label. Creating a label whose name already exists fails."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Name of the new label"),
		),
	)
	s.AddTool(createLabelTool, common.InstrumentedToolHandlerWithService("gmail_create_label",
		instrumentation.ServiceGmail, instrumentation.OperationCreateLabel, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCreateLabel(ctx, request, sc)
		}))

	updateLabelTool := mcp.NewTool("gmail_update_label",
		mcp.WithDescription("Rename a user label. System labels cannot be renamed."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("ID of the label to rename (from gmail_list_labels)"),
		),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("New label name"),
		),
	)
	s.AddTool(updateLabelTool, common.InstrumentedToolHandlerWithService("gmail_update_label",
		instrumentation.ServiceGmail, instrumentation.OperationUpdateLabel, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleUpdateLabel(ctx, request, sc)
		}))

	deleteLabelTool := mcp.NewTool("gmail_delete_label",
		mcp.WithDescription("Delete a user label. The label is removed from every message. System labels cannot be deleted."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("ID of the label to delete (from gmail_list_labels)"),
		),
	)
	s.AddTool(deleteLabelTool, common.InstrumentedToolHandlerWithService("gmail_delete_label",
		instrumentation.ServiceGmail, instrumentation.OperationDeleteLabel, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleDeleteLabel(ctx, request, sc)
		}))

	return nil
}

func handleListLabels(ctx context.Context, _ mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	labels, err := sc.Gateway().ListLabels(ctx, google.TokenFromContext(ctx))
	if err != nil {
		return common.GatewayError(err, server.MsgFetchLabelsFailed), nil
	}
	return common.JSONResult(labelsResult{Labels: labels})
}

func handleCreateLabel(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	name := common.StringArg(request.GetArguments(), "name")

	label, err := sc.Gateway().CreateLabel(ctx, google.TokenFromContext(ctx), name)
	if err != nil {
		return common.GatewayError(err, server.MsgCreateLabelFailed), nil
	}
	return common.JSONResult(labelResult{Label: label})
}

func handleUpdateLabel(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	label, err := sc.Gateway().UpdateLabel(ctx, google.TokenFromContext(ctx), common.StringArg(args, "id"), common.StringArg(args, "name"))
	if err != nil {
		return common.GatewayError(err, server.MsgUpdateLabelFailed), nil
	}
	return common.JSONResult(labelResult{Label: label})
}

func handleDeleteLabel(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	id := common.StringArg(request.GetArguments(), "id")

	if err := sc.Gateway().DeleteLabel(ctx, google.TokenFromContext(ctx), id); err != nil {
		return common.GatewayError(err, server.MsgDeleteLabelFailed), nil
	}
	return common.JSONResult(successResult{Success: true})
}
