package gmail

import (
	"context"
	"fmt"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
	"golang.org/x/oauth2"
)

// userID is the Gmail alias for the authenticated user.
const userID = "me"

// Label visibility values applied to labels created through mailbot.
const (
	LabelListVisibilityShow   = "labelShow"
	MessageListVisibilityShow = "show"
)

// Client wraps the Gmail Users service for one access token.
type Client struct {
	svc *gmail.UsersService
}

// NewClient creates a Gmail client that authenticates every call with token.
// Extra options are appended after the token source, so tests can redirect
// the client with option.WithEndpoint and option.WithHTTPClient.
func NewClient(ctx context.Context, token *oauth2.Token, opts ...option.ClientOption) (*Client, error) {
	if token == nil || token.AccessToken == "" {
		return nil, fmt.Errorf("access token is required")
	}

	all := append([]option.ClientOption{
		option.WithTokenSource(oauth2.StaticTokenSource(token)),
	}, opts...)

	svc, err := gmail.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return &Client{svc: svc.Users}, nil
}

// ListLabels lists all labels in the mailbox.
func (c *Client) ListLabels(ctx context.Context) ([]*gmail.Label, error) {
	resp, err := c.svc.Labels.List(userID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list labels: %w", err)
	}
	return resp.Labels, nil
}

// CreateLabel creates a user label visible in both the label and message lists.
func (c *Client) CreateLabel(ctx context.Context, name string) (*gmail.Label, error) {
	label, err := c.svc.Labels.Create(userID, &gmail.Label{
		Name:                  name,
		LabelListVisibility:   LabelListVisibilityShow,
		MessageListVisibility: MessageListVisibilityShow,
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create label %q: %w", name, err)
	}
	return label, nil
}

// PatchLabel renames a label. Only the name is sent.
func (c *Client) PatchLabel(ctx context.Context, id, name string) (*gmail.Label, error) {
	label, err := c.svc.Labels.Patch(userID, id, &gmail.Label{Name: name}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to update label %s: %w", id, err)
	}
	return label, nil
}

// DeleteLabel permanently deletes a label.
func (c *Client) DeleteLabel(ctx context.Context, id string) error {
	if err := c.svc.Labels.Delete(userID, id).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete label %s: %w", id, err)
	}
	return nil
}

// ListMessageIDs returns the ids of the most recent messages, newest first,
// in the order Gmail returned them.
func (c *Client) ListMessageIDs(ctx context.Context, maxResults int64) ([]string, error) {
	resp, err := c.svc.Messages.List(userID).MaxResults(maxResults).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		if m == nil || m.Id == "" {
			continue
		}
		ids = append(ids, m.Id)
	}
	return ids, nil
}

// GetMessage retrieves a full Gmail message.
func (c *Client) GetMessage(ctx context.Context, messageID string) (*gmail.Message, error) {
	msg, err := c.svc.Messages.Get(userID, messageID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", messageID, err)
	}
	return msg, nil
}

// ModifyMessage adds and removes labels on a single message.
func (c *Client) ModifyMessage(ctx context.Context, messageID string, add, remove []string) error {
	_, err := c.svc.Messages.Modify(userID, messageID, &gmail.ModifyMessageRequest{
		AddLabelIds:    add,
		RemoveLabelIds: remove,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to modify labels on message %s: %w", messageID, err)
	}
	return nil
}
