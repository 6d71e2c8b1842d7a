package digest_tools

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/mailbot/internal/digest"
	"github.com/teemow/mailbot/internal/gateway"
	"github.com/teemow/mailbot/internal/google"
	"github.com/teemow/mailbot/internal/instrumentation"
	"github.com/teemow/mailbot/internal/server"
	"github.com/teemow/mailbot/internal/tools/common"
)

// Fallback messages for digest failures that carry no backend status.
const (
	MsgGetDigestFailed         = "Failed to fetch daily digest"
	MsgSummarizeFailed         = "Failed to summarize emails"
	MsgUpdatePreferencesFailed = "Failed to update preferences"
	MsgSendNotificationFailed  = "Failed to send notification"
	MsgSaveSettingsFailed      = "Failed to save digest settings"
)

// RegisterDigestTools registers the digest tools with the MCP server.
func RegisterDigestTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	getDailyTool := mcp.NewTool("digest_get_daily",
		mcp.WithDescription("Get today's daily digest: overview, important updates, action items and key discussions"),
	)
	s.AddTool(getDailyTool, common.InstrumentedToolHandlerWithService("digest_get_daily",
		instrumentation.ServiceDigest, instrumentation.OperationGetDigest, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetDaily(ctx, request, sc)
		}))

	summarizeTool := mcp.NewTool("digest_summarize_emails",
		mcp.WithDescription("Fetch the most recent emails and have the digest backend categorize and summarize them"),
		mcp.WithNumber("count",
			mcp.Description("Number of emails to summarize (default: 10)"),
		),
	)
	s.AddTool(summarizeTool, common.InstrumentedToolHandlerWithService("digest_summarize_emails",
		instrumentation.ServiceDigest, instrumentation.OperationSummarizeEmails, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSummarize(ctx, request, sc)
		}))

	if readOnly {
		return nil
	}

	updatePreferencesTool := mcp.NewTool("digest_update_preferences",
		mcp.WithDescription("Update when and whether the daily digest is delivered"),
		mcp.WithString("timezone",
			mcp.Description("IANA timezone, e.g. Europe/Berlin (default: UTC)"),
		),
		mcp.WithString("digest_time",
			mcp.Description("Delivery time as HH:MM (default: 08:00)"),
		),
		mcp.WithBoolean("digest_enabled",
			mcp.Description("Whether the digest is delivered (default: true)"),
		),
	)
	s.AddTool(updatePreferencesTool, common.InstrumentedToolHandlerWithService("digest_update_preferences",
		instrumentation.ServiceDigest, instrumentation.OperationUpdatePreferences, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleUpdatePreferences(ctx, request, sc)
		}))

	sendNotificationTool := mcp.NewTool("digest_send_notification",
		mcp.WithDescription("Register an address for digest notifications and send one now"),
		mcp.WithString("email_address",
			mcp.Required(),
			mcp.Description("Address that receives the digest"),
		),
		mcp.WithNumber("count",
			mcp.Description("Number of recent emails to include (default: 0, none)"),
		),
	)
	s.AddTool(sendNotificationTool, common.InstrumentedToolHandlerWithService("digest_send_notification",
		instrumentation.ServiceDigest, instrumentation.OperationSendNotification, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSendNotification(ctx, request, sc)
		}))

	saveSettingsTool := mcp.NewTool("digest_save_settings",
		mcp.WithDescription("Save digest preferences and register the notification address in one step"),
		mcp.WithString("email_address",
			mcp.Required(),
			mcp.Description("Address that receives the digest"),
		),
		mcp.WithString("digest_time",
			mcp.Description("Delivery time as HH:MM (default: 08:00)"),
		),
		mcp.WithString("timezone",
			mcp.Description("IANA timezone (default: UTC)"),
		),
		mcp.WithBoolean("digest_enabled",
			mcp.Description("Whether the digest is delivered (default: true)"),
		),
	)
	s.AddTool(saveSettingsTool, common.InstrumentedToolHandlerWithService("digest_save_settings",
		instrumentation.ServiceDigest, instrumentation.OperationUpdatePreferences, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSaveSettings(ctx, request, sc)
		}))

	return nil
}

// accessToken returns the caller's access token, or ok=false when the
// request carries no usable credential.
func accessToken(ctx context.Context) (string, bool) {
	tok := google.TokenFromContext(ctx)
	if !google.Valid(tok) {
		return "", false
	}
	return tok.AccessToken, true
}

func notAuthenticated() *mcp.CallToolResult {
	return mcp.NewToolResultError(gateway.MsgNotAuthenticated)
}

// backendError renders a digest failure. Backend status errors and settings
// validation errors are safe to show; anything else becomes fallback.
func backendError(err error, fallback string) *mcp.CallToolResult {
	var derr *digest.Error
	switch {
	case errors.As(err, &derr):
		return mcp.NewToolResultError(derr.Error())
	case errors.Is(err, digest.ErrInvalidSettings):
		return mcp.NewToolResultError(err.Error())
	default:
		return mcp.NewToolResultError(fallback)
	}
}

func handleGetDaily(ctx context.Context, _ mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	token, ok := accessToken(ctx)
	if !ok {
		return notAuthenticated(), nil
	}

	daily, err := sc.Digest().GetDailyDigest(ctx, token)
	if err != nil {
		return backendError(err, MsgGetDigestFailed), nil
	}
	return common.JSONResult(map[string]any{"daily_digest": daily})
}

func handleSummarize(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	token, ok := accessToken(ctx)
	if !ok {
		return notAuthenticated(), nil
	}
	count := common.IntArg(request.GetArguments(), "count", gateway.DefaultEmailCount)

	emails, err := sc.Gateway().ListEmails(ctx, google.TokenFromContext(ctx), count)
	if err != nil {
		return common.GatewayError(err, server.MsgFetchEmailsFailed), nil
	}

	summary, err := sc.Digest().SummarizeEmails(ctx, token, emails)
	if err != nil {
		return backendError(err, MsgSummarizeFailed), nil
	}
	return common.JSONResult(summary)
}

func settingsFromArgs(args map[string]any) digest.Settings {
	s := digest.DefaultSettings()
	s.EmailAddress = common.StringArg(args, "email_address")
	if v := common.StringArg(args, "digest_time"); v != "" {
		s.DigestTime = v
	}
	if v := common.StringArg(args, "timezone"); v != "" {
		s.Timezone = v
	}
	s.Enabled = common.BoolArg(args, "digest_enabled", s.Enabled)
	return s
}

func handleUpdatePreferences(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	token, ok := accessToken(ctx)
	if !ok {
		return notAuthenticated(), nil
	}
	settings := settingsFromArgs(request.GetArguments())
	if err := settings.ValidateSchedule(); err != nil {
		return backendError(err, MsgUpdatePreferencesFailed), nil
	}

	resp, err := sc.Digest().UpdatePreferences(ctx, token, settings.Preferences())
	if err != nil {
		return backendError(err, MsgUpdatePreferencesFailed), nil
	}
	return common.JSONResult(resp)
}

func handleSendNotification(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	token, ok := accessToken(ctx)
	if !ok {
		return notAuthenticated(), nil
	}
	args := request.GetArguments()
	address := common.StringArg(args, "email_address")
	if address == "" {
		return backendError(digest.ErrEmailRequired, MsgSendNotificationFailed), nil
	}

	req := digest.NotificationRequest{Token: token, EmailAddress: address}
	if count := common.IntArg(args, "count", 0); count > 0 {
		emails, err := sc.Gateway().ListEmails(ctx, google.TokenFromContext(ctx), count)
		if err != nil {
			return common.GatewayError(err, server.MsgFetchEmailsFailed), nil
		}
		req.EmailData.Emails = emails
	}

	resp, err := sc.Digest().SendEmailNotification(ctx, token, req)
	if err != nil {
		return backendError(err, MsgSendNotificationFailed), nil
	}
	return common.JSONResult(resp)
}

func handleSaveSettings(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	token, ok := accessToken(ctx)
	if !ok {
		return notAuthenticated(), nil
	}

	resp, err := sc.Digest().SaveSettings(ctx, token, settingsFromArgs(request.GetArguments()))
	if err != nil {
		return backendError(err, MsgSaveSettingsFailed), nil
	}
	return common.JSONResult(resp)
}
