package gateway

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/teemow/mailbot/internal/gmail/gmailtest"
	"github.com/teemow/mailbot/internal/logging"
)

var testToken = &oauth2.Token{AccessToken: "test-token"}

func newTestService(t *testing.T) (*Service, *gmailtest.Server) {
	t.Helper()
	srv := gmailtest.NewServer(t)
	svc := NewService(Config{
		ClientFactory: NewClientFactory(srv.Options()...),
		Logger:        logging.NewLogger(&discard{}, logging.FormatText, true),
	})
	return svc, srv
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func message(id, subject, body string, labels ...string) *gmailapi.Message {
	return &gmailapi.Message{
		Id:       id,
		LabelIds: labels,
		Payload: &gmailapi.MessagePart{
			MimeType: "text/plain",
			Headers: []*gmailapi.MessagePartHeader{
				{Name: "Subject", Value: subject},
				{Name: "From", Value: "sender@example.com"},
				{Name: "Date", Value: "Mon, 1 Jan 2024 10:00:00 +0000"},
			},
			Body: &gmailapi.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte(body))},
		},
	}
}

func TestService_UnauthenticatedMakesNoUpstreamCall(t *testing.T) {
	svc, srv := newTestService(t)
	ctx := context.Background()

	calls := map[string]func(tok *oauth2.Token) error{
		"ListLabels": func(tok *oauth2.Token) error { _, err := svc.ListLabels(ctx, tok); return err },
		"CreateLabel": func(tok *oauth2.Token) error {
			_, err := svc.CreateLabel(ctx, tok, "")
			return err
		},
		"UpdateLabel": func(tok *oauth2.Token) error {
			_, err := svc.UpdateLabel(ctx, tok, "", "")
			return err
		},
		"DeleteLabel":  func(tok *oauth2.Token) error { return svc.DeleteLabel(ctx, tok, "L1") },
		"ListEmails":   func(tok *oauth2.Token) error { _, err := svc.ListEmails(ctx, tok, 5); return err },
		"ApplyLabels":  func(tok *oauth2.Token) error { return svc.ApplyLabels(ctx, tok, "", nil) },
		"RemoveLabels": func(tok *oauth2.Token) error { return svc.RemoveLabels(ctx, tok, "M1", []string{"L1"}) },
	}

	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			for _, tok := range []*oauth2.Token{nil, {AccessToken: ""}} {
				err := call(tok)
				require.Error(t, err)
				assert.Equal(t, KindUnauthenticated, KindOf(err))
			}
		})
	}
	assert.Equal(t, 0, srv.Requests())
}

func TestService_ValidationMakesNoUpstreamCall(t *testing.T) {
	svc, srv := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		call    func() error
		wantMsg string
	}{
		{
			name:    "create with blank name",
			call:    func() error { _, err := svc.CreateLabel(ctx, testToken, "   "); return err },
			wantMsg: MsgLabelNameRequired,
		},
		{
			name:    "update without id",
			call:    func() error { _, err := svc.UpdateLabel(ctx, testToken, "", "Name"); return err },
			wantMsg: MsgLabelIDRequired,
		},
		{
			name:    "update without name",
			call:    func() error { _, err := svc.UpdateLabel(ctx, testToken, "L1", ""); return err },
			wantMsg: MsgLabelNameRequired,
		},
		{
			name:    "delete without id",
			call:    func() error { return svc.DeleteLabel(ctx, testToken, "") },
			wantMsg: MsgLabelIDRequired,
		},
		{
			name:    "apply with empty label ids",
			call:    func() error { return svc.ApplyLabels(ctx, testToken, "M1", []string{}) },
			wantMsg: MsgInvalidMutation,
		},
		{
			name:    "apply with only blank label ids",
			call:    func() error { return svc.ApplyLabels(ctx, testToken, "M1", []string{"", " "}) },
			wantMsg: MsgInvalidMutation,
		},
		{
			name:    "remove without email id",
			call:    func() error { return svc.RemoveLabels(ctx, testToken, "", []string{"L1"}) },
			wantMsg: MsgInvalidMutation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.Equal(t, KindInvalidArgument, KindOf(err))
			assert.Equal(t, tt.wantMsg, PublicMessage(err, "fallback"))
		})
	}
	assert.Equal(t, 0, srv.Requests())
}

func TestService_LabelRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateLabel(ctx, testToken, "  Urgent  ")
	require.NoError(t, err)
	assert.Equal(t, "Urgent", created.Name)
	assert.Equal(t, "user", created.Type)

	labels, err := svc.ListLabels(ctx, testToken)
	require.NoError(t, err)
	assert.Contains(t, labels, created)

	updated, err := svc.UpdateLabel(ctx, testToken, created.ID, "Very Urgent")
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Very Urgent", updated.Name)

	require.NoError(t, svc.DeleteLabel(ctx, testToken, created.ID))

	labels, err = svc.ListLabels(ctx, testToken)
	require.NoError(t, err)
	for _, l := range labels {
		assert.NotEqual(t, created.ID, l.ID)
	}
}

func TestService_CreateLabelNotIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateLabel(ctx, testToken, "Dup")
	require.NoError(t, err)

	_, err = svc.CreateLabel(ctx, testToken, "Dup")
	require.Error(t, err)
	assert.Equal(t, KindUpstream, KindOf(err))
}

func TestService_DeleteSystemLabelIsUpstreamError(t *testing.T) {
	svc, srv := newTestService(t)

	err := svc.DeleteLabel(context.Background(), testToken, "INBOX")
	require.Error(t, err)
	assert.Equal(t, KindUpstream, KindOf(err))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(KindOf(err)))

	code, _, ok := GoogleAPIStatus(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, code)

	_, ok = srv.Label("INBOX")
	assert.True(t, ok)
}

func TestService_ApplyAndRemoveReflectedInFetch(t *testing.T) {
	svc, srv := newTestService(t)
	ctx := context.Background()
	srv.AddMessage(message("M1", "Hello", "body", "INBOX"))

	label, err := svc.CreateLabel(ctx, testToken, "Urgent")
	require.NoError(t, err)

	require.NoError(t, svc.ApplyLabels(ctx, testToken, "M1", []string{label.ID}))

	emails, err := svc.ListEmails(ctx, testToken, 5)
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.True(t, emails[0].HasLabel(label.ID))
	assert.True(t, emails[0].HasLabel("INBOX"))

	require.NoError(t, svc.RemoveLabels(ctx, testToken, "M1", []string{label.ID}))

	emails, err = svc.ListEmails(ctx, testToken, 5)
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.False(t, emails[0].HasLabel(label.ID))
}

func TestService_ListEmails(t *testing.T) {
	svc, srv := newTestService(t)
	ctx := context.Background()
	for _, id := range []string{"M1", "M2", "M3", "M4", "M5"} {
		srv.AddMessage(message(id, "Subject "+id, "Body "+id))
	}

	t.Run("order follows messages.list", func(t *testing.T) {
		emails, err := svc.ListEmails(ctx, testToken, 3)
		require.NoError(t, err)
		require.Len(t, emails, 3)
		assert.Equal(t, "M5", emails[0].ID)
		assert.Equal(t, "M4", emails[1].ID)
		assert.Equal(t, "M3", emails[2].ID)
		assert.Equal(t, "Subject M5", emails[0].Subject)
		assert.Equal(t, "Body M5", emails[0].Body)
		assert.Equal(t, "sender@example.com", emails[0].From)
		assert.NotNil(t, emails[0].LabelIDs)
	})

	t.Run("non-positive count defaults", func(t *testing.T) {
		emails, err := svc.ListEmails(ctx, testToken, 0)
		require.NoError(t, err)
		assert.Len(t, emails, 5)
	})

	t.Run("empty mailbox", func(t *testing.T) {
		empty, _ := newTestService(t)
		emails, err := empty.ListEmails(ctx, testToken, 10)
		require.NoError(t, err)
		assert.NotNil(t, emails)
		assert.Empty(t, emails)
	})
}

func TestService_ListEmailsFirstFailureFailsAll(t *testing.T) {
	svc, srv := newTestService(t)
	for _, id := range []string{"M1", "M2", "M3"} {
		srv.AddMessage(message(id, id, id))
	}
	srv.FailMessage("M2", http.StatusInternalServerError)

	emails, err := svc.ListEmails(context.Background(), testToken, 10)
	require.Error(t, err)
	assert.Nil(t, emails)
	assert.Equal(t, KindUpstream, KindOf(err))
}

func TestService_ClientFactoryError(t *testing.T) {
	svc := NewService(Config{
		ClientFactory: func(context.Context, *oauth2.Token) (GmailAPI, error) {
			return nil, errors.New("no client")
		},
		Logger: logging.NewLogger(&discard{}, logging.FormatText, false),
	})

	_, err := svc.ListLabels(context.Background(), testToken)
	require.Error(t, err)
	assert.Equal(t, KindUpstream, KindOf(err))
}

type countingAPI struct {
	GmailAPI
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (c *countingAPI) ListMessageIDs(context.Context, int64) ([]string, error) {
	ids := make([]string, 20)
	for i := range ids {
		ids[i] = string(rune('a' + i))
	}
	return ids, nil
}

func (c *countingAPI) GetMessage(ctx context.Context, id string) (*gmailapi.Message, error) {
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		peak := c.peak.Load()
		if n <= peak || c.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	return &gmailapi.Message{Id: id}, nil
}

func TestService_FetchConcurrencyBound(t *testing.T) {
	api := &countingAPI{}
	svc := NewService(Config{
		ClientFactory: func(context.Context, *oauth2.Token) (GmailAPI, error) {
			return api, nil
		},
		Logger:           logging.NewLogger(&discard{}, logging.FormatText, false),
		FetchConcurrency: 3,
	})

	emails, err := svc.ListEmails(context.Background(), testToken, 20)
	require.NoError(t, err)
	require.Len(t, emails, 20)
	assert.Equal(t, "a", emails[0].ID)
	assert.Equal(t, "t", emails[19].ID)
	assert.LessOrEqual(t, api.peak.Load(), int32(3))
}

func TestNormalizeCount(t *testing.T) {
	assert.Equal(t, DefaultEmailCount, NormalizeCount(0))
	assert.Equal(t, DefaultEmailCount, NormalizeCount(-4))
	assert.Equal(t, 7, NormalizeCount(7))
	assert.Equal(t, MaxEmailCount, NormalizeCount(10000))
}

func TestCleanIDs(t *testing.T) {
	assert.Equal(t, []string{"A", "B"}, CleanIDs([]string{" A ", "", "B", "A"}))
	assert.Empty(t, CleanIDs(nil))
}
