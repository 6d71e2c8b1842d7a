package gmail

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"

	"github.com/teemow/mailbot/internal/gmail/gmailtest"
)

func newTestClient(t *testing.T) (*Client, *gmailtest.Server) {
	t.Helper()
	srv := gmailtest.NewServer(t)
	client, err := NewClient(context.Background(), &oauth2.Token{AccessToken: "test-token"}, srv.Options()...)
	require.NoError(t, err)
	return client, srv
}

func TestNewClient_RequiresToken(t *testing.T) {
	_, err := NewClient(context.Background(), nil)
	assert.Error(t, err)

	_, err = NewClient(context.Background(), &oauth2.Token{})
	assert.Error(t, err)
}

func TestClient_LabelLifecycle(t *testing.T) {
	ctx := context.Background()
	client, srv := newTestClient(t)
	srv.AddUserLabel("L1", "Work")

	labels, err := client.ListLabels(ctx)
	require.NoError(t, err)
	require.Len(t, labels, 2)
	assert.Equal(t, "INBOX", labels[0].Id)
	assert.Equal(t, "Work", labels[1].Name)

	created, err := client.CreateLabel(ctx, "Receipts")
	require.NoError(t, err)
	assert.Equal(t, "Receipts", created.Name)
	assert.Equal(t, LabelListVisibilityShow, created.LabelListVisibility)
	assert.Equal(t, MessageListVisibilityShow, created.MessageListVisibility)

	patched, err := client.PatchLabel(ctx, "L1", "Work Stuff")
	require.NoError(t, err)
	assert.Equal(t, "Work Stuff", patched.Name)

	require.NoError(t, client.DeleteLabel(ctx, "L1"))
	_, ok := srv.Label("L1")
	assert.False(t, ok)
}

func TestClient_DeleteSystemLabelFails(t *testing.T) {
	client, _ := newTestClient(t)

	err := client.DeleteLabel(context.Background(), "INBOX")
	require.Error(t, err)

	var apiErr *googleapi.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Code)
}

func TestClient_Messages(t *testing.T) {
	ctx := context.Background()
	client, srv := newTestClient(t)
	srv.AddUserLabel("L1", "Work")
	srv.AddMessage(&gmail.Message{Id: "M1", LabelIds: []string{"INBOX"}})
	srv.AddMessage(&gmail.Message{Id: "M2", LabelIds: []string{"INBOX"}})

	ids, err := client.ListMessageIDs(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"M2", "M1"}, ids)

	ids, err = client.ListMessageIDs(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"M2"}, ids)

	msg, err := client.GetMessage(ctx, "M1")
	require.NoError(t, err)
	assert.Equal(t, "M1", msg.Id)

	require.NoError(t, client.ModifyMessage(ctx, "M1", []string{"L1"}, []string{"INBOX"}))
	assert.Equal(t, []string{"L1"}, srv.MessageLabels("M1"))
}

func TestClient_GetMessageNotFound(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.GetMessage(context.Background(), "missing")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get message missing")
}
