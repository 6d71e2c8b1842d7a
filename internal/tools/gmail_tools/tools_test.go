package gmail_tools

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/teemow/mailbot/internal/gateway"
	"github.com/teemow/mailbot/internal/gmail"
	"github.com/teemow/mailbot/internal/gmail/gmailtest"
	"github.com/teemow/mailbot/internal/google"
	"github.com/teemow/mailbot/internal/instrumentation"
	"github.com/teemow/mailbot/internal/server"
	"github.com/teemow/mailbot/internal/tools/batch"
)

func newTestContext(t *testing.T) (*gmailtest.Server, *server.ServerContext) {
	t.Helper()

	fake := gmailtest.NewServer(t)
	logger := slog.New(slog.DiscardHandler)
	sc, err := server.NewServerContext(context.Background(), server.Options{
		Gateway: gateway.NewService(gateway.Config{
			ClientFactory: gateway.NewClientFactory(fake.Options()...),
			Logger:        logger,
		}),
		Logger:      logger,
		AllowWrites: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })
	return fake, sc
}

func authed() context.Context {
	return google.WithToken(context.Background(), &oauth2.Token{AccessToken: "tok"})
}

func call(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: args}}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])
	return text.Text
}

func textMessage(id, subject string, labels ...string) *gmailapi.Message {
	return &gmailapi.Message{
		Id:       id,
		LabelIds: labels,
		Payload: &gmailapi.MessagePart{
			MimeType: "text/plain",
			Headers:  []*gmailapi.MessagePartHeader{{Name: "Subject", Value: subject}},
			Body:     &gmailapi.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte("body"))},
		},
	}
}

func TestRegisterGmailTools(t *testing.T) {
	tests := []struct {
		name     string
		readOnly bool
		want     []string
	}{
		{
			name:     "read only",
			readOnly: true,
			want:     []string{"gmail_fetch_emails", "gmail_list_labels"},
		},
		{
			name:     "writes allowed",
			readOnly: false,
			want: []string{
				"gmail_apply_labels",
				"gmail_create_label",
				"gmail_delete_label",
				"gmail_fetch_emails",
				"gmail_list_labels",
				"gmail_remove_labels",
				"gmail_update_label",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, sc := newTestContext(t)
			s := mcpserver.NewMCPServer("test-server", "1.0.0", mcpserver.WithToolCapabilities(true))
			require.NoError(t, RegisterGmailTools(s, sc, tt.readOnly))

			var names []string
			for name := range s.ListTools() {
				names = append(names, name)
			}
			sort.Strings(names)
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestLabelTools_Lifecycle(t *testing.T) {
	fake, sc := newTestContext(t)
	ctx := authed()

	result, err := handleCreateLabel(ctx, call(map[string]any{"name": "Receipts"}), sc)
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var created struct {
		Label gmail.Label `json:"label"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &created))
	assert.Equal(t, "Receipts", created.Label.Name)
	assert.Equal(t, "user", created.Label.Type)

	result, err = handleUpdateLabel(ctx, call(map[string]any{"id": created.Label.ID, "name": "Invoices"}), sc)
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	stored, ok := fake.Label(created.Label.ID)
	require.True(t, ok)
	assert.Equal(t, "Invoices", stored.Name)

	result, err = handleListLabels(ctx, call(nil), sc)
	require.NoError(t, err)
	var listed struct {
		Labels []gmail.Label `json:"labels"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &listed))
	assert.Len(t, listed.Labels, 2)

	result, err = handleDeleteLabel(ctx, call(map[string]any{"id": created.Label.ID}), sc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success": true}`, resultText(t, result))
	_, ok = fake.Label(created.Label.ID)
	assert.False(t, ok)
}

func TestLabelTools_Errors(t *testing.T) {
	_, sc := newTestContext(t)

	tests := []struct {
		name    string
		ctx     context.Context
		handler func(context.Context, mcp.CallToolRequest, *server.ServerContext) (*mcp.CallToolResult, error)
		args    map[string]any
		want    string
	}{
		{"list without token", context.Background(), handleListLabels, nil, "Not authenticated"},
		{"create without token", context.Background(), handleCreateLabel, map[string]any{"name": "x"}, "Not authenticated"},
		{"create without name", authed(), handleCreateLabel, map[string]any{"name": "  "}, "Label name is required"},
		{"update without id", authed(), handleUpdateLabel, map[string]any{"name": "x"}, gateway.MsgLabelIDRequired},
		{"delete system label", authed(), handleDeleteLabel, map[string]any{"id": "INBOX"}, server.MsgDeleteLabelFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.handler(tt.ctx, call(tt.args), sc)
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Equal(t, tt.want, resultText(t, result))
		})
	}
}

func TestEmailTools_FetchAndLabel(t *testing.T) {
	fake, sc := newTestContext(t)
	fake.AddUserLabel("L1", "Work")
	fake.AddMessage(textMessage("M1", "First", "INBOX"))
	fake.AddMessage(textMessage("M2", "Second", "INBOX"))
	ctx := authed()

	result, err := handleFetchEmails(ctx, call(map[string]any{"count": float64(1)}), sc)
	require.NoError(t, err)
	var fetched struct {
		Emails []gmail.Email `json:"emails"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &fetched))
	require.Len(t, fetched.Emails, 1)
	assert.Equal(t, "M2", fetched.Emails[0].ID)

	result, err = handleModifyLabels(ctx, call(map[string]any{"emailId": "M1", "labelIds": []any{"L1"}}), sc, true)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success": true}`, resultText(t, result))
	assert.Equal(t, []string{"INBOX", "L1"}, fake.MessageLabels("M1"))

	result, err = handleModifyLabels(ctx, call(map[string]any{"emailId": "M1", "labelIds": "L1"}), sc, false)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success": true}`, resultText(t, result))
	assert.Equal(t, []string{"INBOX"}, fake.MessageLabels("M1"))
}

func TestEmailTools_Batch(t *testing.T) {
	fake, sc := newTestContext(t)
	fake.AddUserLabel("L1", "Work")
	fake.AddMessage(textMessage("M1", "First"))
	fake.AddMessage(textMessage("M2", "Second"))
	fake.FailMessage("M2", http.StatusInternalServerError)

	result, err := handleModifyLabels(authed(), call(map[string]any{
		"emailId":  "M1, M2",
		"labelIds": []any{"L1"},
	}), sc, true)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var summary batch.BatchResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &summary))
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Successful)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Results, 2)
	assert.Equal(t, batch.StatusSuccess, summary.Results[0].Status)
	assert.Equal(t, batch.StatusError, summary.Results[1].Status)
	assert.Equal(t, server.MsgApplyLabelsFailed, summary.Results[1].Error)
	assert.Equal(t, []string{"L1"}, fake.MessageLabels("M1"))
}

func TestEmailTools_Errors(t *testing.T) {
	fake, sc := newTestContext(t)

	tests := []struct {
		name string
		ctx  context.Context
		args map[string]any
		add  bool
		want string
	}{
		{"apply without token", context.Background(), map[string]any{"emailId": "M1", "labelIds": "L1"}, true, "Not authenticated"},
		{"malformed args without token", context.Background(), map[string]any{"emailId": 42}, false, "Not authenticated"},
		{"missing email id", authed(), map[string]any{"labelIds": "L1"}, true, gateway.MsgInvalidMutation},
		{"missing label ids", authed(), map[string]any{"emailId": "M1"}, false, gateway.MsgInvalidMutation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := handleModifyLabels(tt.ctx, call(tt.args), sc, tt.add)
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Equal(t, tt.want, resultText(t, result))
		})
	}

	result, err := handleFetchEmails(context.Background(), call(nil), sc)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, "Not authenticated", resultText(t, result))
	assert.Zero(t, fake.Requests())
}

func TestGmailTools_AuditServiceLabel(t *testing.T) {
	fake := gmailtest.NewServer(t)
	fake.AddUserLabel("L1", "Work")
	fake.AddMessage(textMessage("M1", "Hello", "INBOX"))

	var buf bytes.Buffer
	logger := slog.New(slog.DiscardHandler)
	sc, err := server.NewServerContext(context.Background(), server.Options{
		Gateway: gateway.NewService(gateway.Config{
			ClientFactory: gateway.NewClientFactory(fake.Options()...),
			Logger:        logger,
		}),
		AuditLogger: instrumentation.NewAuditLogger(
			slog.New(slog.NewJSONHandler(&buf, nil)),
			instrumentation.AuditLoggingConfig{Enabled: true},
		),
		Logger:      logger,
		AllowWrites: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })

	s := mcpserver.NewMCPServer("test-server", "1.0.0", mcpserver.WithToolCapabilities(true))
	require.NoError(t, RegisterGmailTools(s, sc, false))

	calls := map[string]map[string]any{
		"gmail_list_labels":   {},
		"gmail_create_label":  {"name": "Receipts"},
		"gmail_update_label":  {"id": "L1", "name": "Office"},
		"gmail_delete_label":  {"id": "L1"},
		"gmail_fetch_emails":  {"count": 1},
		"gmail_apply_labels":  {"emailId": "M1", "labelIds": "INBOX"},
		"gmail_remove_labels": {"emailId": "M1", "labelIds": "INBOX"},
	}
	tools := s.ListTools()
	for name, args := range calls {
		tool, ok := tools[name]
		require.True(t, ok, name)
		_, err := tool.Handler(authed(), call(args))
		require.NoError(t, err, name)
	}

	services := map[string]string{}
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var record struct {
			Tool    string `json:"tool"`
			Service string `json:"service"`
		}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &record))
		services[record.Tool] = record.Service
	}

	require.Len(t, services, len(calls))
	for name, service := range services {
		assert.Equal(t, instrumentation.ServiceGmail, service, name)
	}
}
